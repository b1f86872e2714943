package execshell

import "time"

// CommandEventObserver receives lifecycle notifications for shell command
// execution, including every retry attempt.
type CommandEventObserver interface {
	// CommandStarted notifies observers that an attempt is beginning.
	CommandStarted(command ShellCommand, attemptNumber int, maxAttempts int)
	// CommandCompleted notifies observers that an attempt finished and
	// supplies the result, whatever its exit code.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandRetryScheduled notifies observers that the executor is waiting
	// before the next attempt.
	CommandRetryScheduled(command ShellCommand, delay time.Duration, nextAttempt int, maxAttempts int)
	// CommandExecutionFailed reports unexpected failures prior to receiving an
	// execution result.
	CommandExecutionFailed(command ShellCommand, failure error)
}

// noopCommandEventObserver discards all command events.
type noopCommandEventObserver struct{}

// CommandStarted implements CommandEventObserver for the no-op observer.
func (noopCommandEventObserver) CommandStarted(ShellCommand, int, int) {}

// CommandCompleted implements CommandEventObserver for the no-op observer.
func (noopCommandEventObserver) CommandCompleted(ShellCommand, ExecutionResult) {}

// CommandRetryScheduled implements CommandEventObserver for the no-op observer.
func (noopCommandEventObserver) CommandRetryScheduled(ShellCommand, time.Duration, int, int) {}

// CommandExecutionFailed implements CommandEventObserver for the no-op observer.
func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}
