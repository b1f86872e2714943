package tests

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	integrationBinaryNameConstant  = "rex"
	integrationBuildTimeout        = 2 * time.Minute
	integrationCommandTimeout      = 30 * time.Second
	integrationConfigFileName      = "config.yaml"
	integrationSubtestNameTemplate = "%d_%s"
)

// buildIntegrationBinary compiles the CLI once per test and returns the
// binary path.
func buildIntegrationBinary(testInstance *testing.T, repositoryRootDirectory string) string {
	testInstance.Helper()

	binaryPath := filepath.Join(testInstance.TempDir(), integrationBinaryNameConstant)

	buildContext, cancelFunction := context.WithTimeout(context.Background(), integrationBuildTimeout)
	defer cancelFunction()

	buildCommand := exec.CommandContext(buildContext, "go", "build", "-o", binaryPath, ".")
	buildCommand.Dir = repositoryRootDirectory
	buildCommand.Env = os.Environ()

	outputBytes, buildError := buildCommand.CombinedOutput()
	require.NoError(testInstance, buildError, string(outputBytes))

	return binaryPath
}

// runBinaryIntegrationCommand executes the built binary and returns its
// combined output along with the execution error.
func runBinaryIntegrationCommand(
	testInstance *testing.T,
	binaryPath string,
	workingDirectory string,
	environmentOverrides map[string]string,
	timeout time.Duration,
	arguments []string,
) (string, error) {
	testInstance.Helper()

	executionContext, cancelFunction := context.WithTimeout(context.Background(), timeout)
	defer cancelFunction()

	command := exec.CommandContext(executionContext, binaryPath, arguments...)
	command.Dir = workingDirectory
	environment := append([]string{}, os.Environ()...)
	for overrideName, overrideValue := range environmentOverrides {
		environment = append(environment, overrideName+"="+overrideValue)
	}
	command.Env = environment

	outputBytes, runError := command.CombinedOutput()
	return string(outputBytes), runError
}

// repositoryRoot resolves the module root from the tests directory.
func repositoryRoot(testInstance *testing.T) string {
	testInstance.Helper()

	currentWorkingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)
	return filepath.Dir(currentWorkingDirectory)
}
