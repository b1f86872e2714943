package execshell

import (
	"context"
	"io"
	"strings"
)

const commandLabelJoinSeparatorConstant = " "

// CommandName identifies the executable to run.
type CommandName string

// CommandDetails captures the invocation parameters for a shell command.
type CommandDetails struct {
	// Arguments are passed to the executable in order.
	Arguments []string
	// WorkingDirectory selects the directory the command runs in; empty keeps
	// the caller's directory.
	WorkingDirectory string
	// EnvironmentVariables are merged over the parent environment, unless
	// ReplaceParentEnvironment is set.
	EnvironmentVariables map[string]string
	// ReplaceParentEnvironment runs the command with exactly
	// EnvironmentVariables instead of inheriting the parent environment.
	ReplaceParentEnvironment bool
	// StandardInput is fed to the command when non-empty.
	StandardInput []byte
	// StandardOutputSink receives the command's standard output when non-nil.
	// Output written to a sink is not duplicated into the execution result,
	// and the sink is reused as-is across retry attempts so output
	// accumulates.
	StandardOutputSink io.Writer
	// StandardErrorSink receives the command's standard error when non-nil,
	// with the same accumulation behavior as StandardOutputSink.
	StandardErrorSink io.Writer
}

// ShellCommand pairs an executable name with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// String renders the command the way a user would type it.
func (command ShellCommand) String() string {
	labelParts := append([]string{string(command.Name)}, command.Details.Arguments...)
	return strings.TrimSpace(strings.Join(labelParts, commandLabelJoinSeparatorConstant))
}

// ExecutionResult reports the outcome of one command attempt. Captured output
// is only populated when the corresponding sink was nil.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner launches a command once and reports its result. Runner errors
// indicate the command could not run at all; commands that run and exit
// non-zero are reported through ExecutionResult.ExitCode with a nil error.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}
