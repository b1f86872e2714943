package tests

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	cleanIntegrationStaleDirectoryName = "rex-workspace-stale"
	cleanIntegrationFreshDirectoryName = "rex-workspace-fresh"
)

func TestCleanIntegrationRemovesStaleWorkspaces(testInstance *testing.T) {
	binaryPath := buildIntegrationBinary(testInstance, repositoryRoot(testInstance))

	parentDirectory := testInstance.TempDir()
	stalePath := filepath.Join(parentDirectory, cleanIntegrationStaleDirectoryName)
	freshPath := filepath.Join(parentDirectory, cleanIntegrationFreshDirectoryName)
	require.NoError(testInstance, os.Mkdir(stalePath, 0o700))
	require.NoError(testInstance, os.Mkdir(freshPath, 0o700))

	staleTimestamp := time.Now().Add(-48 * time.Hour)
	require.NoError(testInstance, os.Chtimes(stalePath, staleTimestamp, staleTimestamp))

	outputText, runError := runBinaryIntegrationCommand(
		testInstance,
		binaryPath,
		testInstance.TempDir(),
		map[string]string{},
		integrationCommandTimeout,
		[]string{"clean", "--parent", parentDirectory},
	)
	require.NoError(testInstance, runError, outputText)
	require.Contains(testInstance, outputText, stalePath)

	_, staleStatError := os.Stat(stalePath)
	require.True(testInstance, os.IsNotExist(staleStatError))
	_, freshStatError := os.Stat(freshPath)
	require.NoError(testInstance, freshStatError)
}

func TestCleanIntegrationDryRunPreviewsRemovals(testInstance *testing.T) {
	binaryPath := buildIntegrationBinary(testInstance, repositoryRoot(testInstance))

	parentDirectory := testInstance.TempDir()
	stalePath := filepath.Join(parentDirectory, cleanIntegrationStaleDirectoryName)
	require.NoError(testInstance, os.Mkdir(stalePath, 0o700))
	staleTimestamp := time.Now().Add(-48 * time.Hour)
	require.NoError(testInstance, os.Chtimes(stalePath, staleTimestamp, staleTimestamp))

	outputText, runError := runBinaryIntegrationCommand(
		testInstance,
		binaryPath,
		testInstance.TempDir(),
		map[string]string{},
		integrationCommandTimeout,
		[]string{"clean", "--parent", parentDirectory, "--dry-run"},
	)
	require.NoError(testInstance, runError, outputText)
	require.Contains(testInstance, outputText, "would remove 1 stale workspace(s)")

	_, staleStatError := os.Stat(stalePath)
	require.NoError(testInstance, staleStatError)
}
