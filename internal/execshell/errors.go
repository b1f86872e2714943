package execshell

import (
	"errors"
	"fmt"
)

const (
	loggerNotConfiguredMessageConstant        = "logger is not configured"
	commandRunnerNotConfiguredMessageConstant = "command runner is not configured"
	commandFailedTemplateConstant             = "command %s failed with exit code %d on attempt %d"
	commandExecutionFailedTemplateConstant    = "command %s could not be executed on attempt %d: %v"
)

// ErrLoggerNotConfigured reports executor construction without a logger.
var ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)

// ErrCommandRunnerNotConfigured reports executor construction without a runner.
var ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)

// CommandFailedError reports a command whose final attempt ran to completion
// with a non-zero exit code. Attempts counts every spawned attempt, and
// Result carries the final attempt's exit code and any captured output.
type CommandFailedError struct {
	Command  ShellCommand
	Result   ExecutionResult
	Attempts int
}

// Error describes the failure including the final exit code.
func (failure CommandFailedError) Error() string {
	return fmt.Sprintf(commandFailedTemplateConstant, failure.Command.String(), failure.Result.ExitCode, failure.Attempts)
}

// ExitCode reports the final attempt's exit status.
func (failure CommandFailedError) ExitCode() int {
	return failure.Result.ExitCode
}

// CommandExecutionError reports a command whose final attempt never produced
// an exit status: the process could not be started, or the wait between
// attempts was interrupted. Attempts counts every attempt consumed before
// giving up.
type CommandExecutionError struct {
	Command  ShellCommand
	Cause    error
	Attempts int
}

// Error describes the execution failure and its cause.
func (failure CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionFailedTemplateConstant, failure.Command.String(), failure.Attempts, failure.Cause)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}
