package run_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	runcmd "github.com/temirov/rex/cmd/cli/run"
	"github.com/temirov/rex/internal/execshell"
)

const (
	runTestExecutableNameConstant   = "exporter"
	runTestWorkspaceVariableName    = "REX_WORKSPACE"
	runTestSinkOutputContent        = "exported 42 records\n"
	runTestEnvironmentVariableName  = "EXPORT_TARGET"
	runTestEnvironmentVariableValue = "s3://bucket/prefix"
)

type recordingRunner struct {
	exitCodes        []int
	stdoutContent    string
	recordedCommands []execshell.ShellCommand
}

func (runner *recordingRunner) Run(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	runner.recordedCommands = append(runner.recordedCommands, command)
	if len(runner.stdoutContent) > 0 && command.Details.StandardOutputSink != nil {
		_, _ = command.Details.StandardOutputSink.Write([]byte(runner.stdoutContent))
	}
	commandIndex := len(runner.recordedCommands) - 1
	if commandIndex >= len(runner.exitCodes) {
		commandIndex = len(runner.exitCodes) - 1
	}
	return execshell.ExecutionResult{ExitCode: runner.exitCodes[commandIndex]}, nil
}

func buildRunCommand(testInstance *testing.T, runner *recordingRunner) (*bytes.Buffer, func(arguments ...string) error) {
	testInstance.Helper()

	builder := runcmd.CommandBuilder{Runner: runner}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(&bytes.Buffer{})

	execute := func(arguments ...string) error {
		command.SetArgs(arguments)
		return command.Execute()
	}

	return outputBuffer, execute
}

func TestRunCommandRetriesUntilSuccess(testInstance *testing.T) {
	runner := &recordingRunner{exitCodes: []int{1, 1, 0}}
	_, execute := buildRunCommand(testInstance, runner)

	executionError := execute("--tries", "3", "--base-delay", "1ms", "--", runTestExecutableNameConstant, "--once")
	require.NoError(testInstance, executionError)
	require.Len(testInstance, runner.recordedCommands, 3)
	require.Equal(testInstance, execshell.CommandName(runTestExecutableNameConstant), runner.recordedCommands[0].Name)
	require.Equal(testInstance, []string{"--once"}, runner.recordedCommands[0].Details.Arguments)
}

func TestRunCommandReportsFinalFailure(testInstance *testing.T) {
	runner := &recordingRunner{exitCodes: []int{2}}
	_, execute := buildRunCommand(testInstance, runner)

	executionError := execute("--", runTestExecutableNameConstant)
	require.Error(testInstance, executionError)
	require.Len(testInstance, runner.recordedCommands, 1)

	var commandFailure execshell.CommandFailedError
	require.ErrorAs(testInstance, executionError, &commandFailure)
	require.Equal(testInstance, 2, commandFailure.ExitCode())
	require.Equal(testInstance, 1, commandFailure.Attempts)
}

func TestRunCommandRejectsInvalidTries(testInstance *testing.T) {
	runner := &recordingRunner{exitCodes: []int{0}}
	_, execute := buildRunCommand(testInstance, runner)

	executionError := execute("--tries", "0", "--", runTestExecutableNameConstant)
	require.ErrorIs(testInstance, executionError, execshell.ErrInvalidRetryPolicy)
	require.Empty(testInstance, runner.recordedCommands)
}

func TestRunCommandRejectsCaptureWithSinkFiles(testInstance *testing.T) {
	runner := &recordingRunner{exitCodes: []int{0}}
	_, execute := buildRunCommand(testInstance, runner)

	executionError := execute("--capture", "--stdout-file", filepath.Join(testInstance.TempDir(), "stdout.log"), "--", runTestExecutableNameConstant)
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "--capture")
	require.Empty(testInstance, runner.recordedCommands)
}

func TestRunCommandRejectsMalformedEnvironmentEntries(testInstance *testing.T) {
	runner := &recordingRunner{exitCodes: []int{0}}
	_, execute := buildRunCommand(testInstance, runner)

	executionError := execute("--env", "MALFORMED", "--", runTestExecutableNameConstant)
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "MALFORMED")
	require.Empty(testInstance, runner.recordedCommands)
}

func TestRunCommandWritesStdoutSinkFile(testInstance *testing.T) {
	runner := &recordingRunner{exitCodes: []int{0}, stdoutContent: runTestSinkOutputContent}
	_, execute := buildRunCommand(testInstance, runner)

	sinkPath := filepath.Join(testInstance.TempDir(), "stdout.log")
	executionError := execute("--stdout-file", sinkPath, "--", runTestExecutableNameConstant)
	require.NoError(testInstance, executionError)

	sinkContent, readError := os.ReadFile(sinkPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, runTestSinkOutputContent, string(sinkContent))
}

func TestRunCommandPassesEnvironmentEntries(testInstance *testing.T) {
	runner := &recordingRunner{exitCodes: []int{0}}
	_, execute := buildRunCommand(testInstance, runner)

	executionError := execute("--env", runTestEnvironmentVariableName+"="+runTestEnvironmentVariableValue, "--", runTestExecutableNameConstant)
	require.NoError(testInstance, executionError)
	require.Len(testInstance, runner.recordedCommands, 1)
	require.Equal(testInstance, runTestEnvironmentVariableValue, runner.recordedCommands[0].Details.EnvironmentVariables[runTestEnvironmentVariableName])
}

func TestRunCommandProvidesScopedWorkspace(testInstance *testing.T) {
	runner := &recordingRunner{exitCodes: []int{0}}
	_, execute := buildRunCommand(testInstance, runner)

	executionError := execute("--workspace", "--", runTestExecutableNameConstant)
	require.NoError(testInstance, executionError)
	require.Len(testInstance, runner.recordedCommands, 1)

	workspacePath := runner.recordedCommands[0].Details.EnvironmentVariables[runTestWorkspaceVariableName]
	require.NotEmpty(testInstance, workspacePath)

	_, statError := os.Stat(workspacePath)
	require.True(testInstance, os.IsNotExist(statError))
}

func TestRunCommandKeepsWorkspaceWhenRequested(testInstance *testing.T) {
	runner := &recordingRunner{exitCodes: []int{0}}
	outputBuffer, execute := buildRunCommand(testInstance, runner)

	executionError := execute("--workspace", "--keep-workspace", "--", runTestExecutableNameConstant)
	require.NoError(testInstance, executionError)
	require.Len(testInstance, runner.recordedCommands, 1)

	workspacePath := runner.recordedCommands[0].Details.EnvironmentVariables[runTestWorkspaceVariableName]
	require.NotEmpty(testInstance, workspacePath)
	testInstance.Cleanup(func() { _ = os.RemoveAll(workspacePath) })

	directoryInformation, statError := os.Stat(workspacePath)
	require.NoError(testInstance, statError)
	require.True(testInstance, directoryInformation.IsDir())
	require.Contains(testInstance, outputBuffer.String(), workspacePath)
}
