package execshell

import (
	"context"

	"go.uber.org/zap"
)

const (
	executingCommandMessageConstant       = "executing command"
	commandCompletedMessageConstant       = "command completed"
	commandFailedMessageConstant          = "command failed"
	commandExecutionFailedMessageConstant = "command execution failed"
	retryWaitMessageConstant              = "waiting before retry"
	commandFieldNameConstant              = "command"
	argumentsFieldNameConstant            = "arguments"
	workingDirectoryFieldNameConstant     = "working_directory"
	exitCodeFieldNameConstant             = "exit_code"
	standardErrorFieldNameConstant        = "standard_error"
	attemptFieldNameConstant              = "attempt"
	maxAttemptsFieldNameConstant          = "max_attempts"
	retryDelayFieldNameConstant           = "delay"
	nextAttemptFieldNameConstant          = "next_attempt"
)

// ShellExecutor runs external commands through a CommandRunner, applying
// retry policies and emitting structured log events plus observer
// notifications for every attempt.
type ShellExecutor struct {
	logger   *zap.Logger
	runner   CommandRunner
	observer CommandEventObserver
	sleeper  Sleeper
}

// NewShellExecutor constructs an executor after validating its dependencies.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{
		logger:   logger,
		runner:   runner,
		observer: noopCommandEventObserver{},
		sleeper:  systemSleeper{},
	}, nil
}

// WithEventObserver returns an executor that notifies the provided observer.
// A nil observer restores the no-op observer.
func (executor *ShellExecutor) WithEventObserver(observer CommandEventObserver) *ShellExecutor {
	configured := *executor
	if observer == nil {
		configured.observer = noopCommandEventObserver{}
	} else {
		configured.observer = observer
	}
	return &configured
}

// WithSleeper returns an executor that waits between attempts using the
// provided sleeper. A nil sleeper restores the system clock sleeper.
func (executor *ShellExecutor) WithSleeper(sleeper Sleeper) *ShellExecutor {
	configured := *executor
	if sleeper == nil {
		configured.sleeper = systemSleeper{}
	} else {
		configured.sleeper = sleeper
	}
	return &configured
}

// Execute runs the command exactly once.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	return executor.ExecuteWithRetry(executionContext, command, DefaultRetryPolicy())
}

// ExecuteWithRetry runs the command until it succeeds or the policy's attempt
// budget is spent. The attempt loop is bounded by MaxAttempts; after the n-th
// failed attempt the executor waits BaseDelay*2^(n+1) before the next one. A
// final failed attempt is reported immediately without a trailing wait: the
// returned error is a CommandFailedError when that attempt exited non-zero
// and a CommandExecutionError when it never produced an exit status. The
// returned result carries the final attempt's outcome either way.
func (executor *ShellExecutor) ExecuteWithRetry(executionContext context.Context, command ShellCommand, policy RetryPolicy) (ExecutionResult, error) {
	if validationError := policy.Validate(); validationError != nil {
		return ExecutionResult{}, validationError
	}

	var finalResult ExecutionResult
	var finalFailure error

	for attemptNumber := 1; attemptNumber <= policy.MaxAttempts; attemptNumber++ {
		executor.observer.CommandStarted(command, attemptNumber, policy.MaxAttempts)
		executor.logger.Debug(executingCommandMessageConstant, executor.commandFields(command, attemptNumber, policy.MaxAttempts)...)

		executionResult, runnerError := executor.runner.Run(executionContext, command)
		switch {
		case runnerError != nil:
			finalResult = ExecutionResult{}
			finalFailure = CommandExecutionError{Command: command, Cause: runnerError, Attempts: attemptNumber}
			executor.logger.Error(commandExecutionFailedMessageConstant,
				append(executor.commandFields(command, attemptNumber, policy.MaxAttempts), zap.Error(runnerError))...)
			executor.observer.CommandExecutionFailed(command, runnerError)
		case executionResult.ExitCode == 0:
			executor.logger.Debug(commandCompletedMessageConstant,
				append(executor.commandFields(command, attemptNumber, policy.MaxAttempts), zap.Int(exitCodeFieldNameConstant, executionResult.ExitCode))...)
			executor.observer.CommandCompleted(command, executionResult)
			return executionResult, nil
		default:
			finalResult = executionResult
			finalFailure = CommandFailedError{Command: command, Result: executionResult, Attempts: attemptNumber}
			executor.logger.Error(commandFailedMessageConstant,
				append(executor.commandFields(command, attemptNumber, policy.MaxAttempts),
					zap.Int(exitCodeFieldNameConstant, executionResult.ExitCode),
					zap.String(standardErrorFieldNameConstant, executionResult.StandardError))...)
			executor.observer.CommandCompleted(command, executionResult)
		}

		if attemptNumber == policy.MaxAttempts {
			break
		}

		retryDelay := policy.backoffDelay(attemptNumber)
		executor.logger.Warn(retryWaitMessageConstant,
			append(executor.commandFields(command, attemptNumber, policy.MaxAttempts),
				zap.Duration(retryDelayFieldNameConstant, retryDelay),
				zap.Int(nextAttemptFieldNameConstant, attemptNumber+1))...)
		executor.observer.CommandRetryScheduled(command, retryDelay, attemptNumber+1, policy.MaxAttempts)

		if sleepError := executor.sleeper.Sleep(executionContext, retryDelay); sleepError != nil {
			return ExecutionResult{}, CommandExecutionError{Command: command, Cause: sleepError, Attempts: attemptNumber}
		}
	}

	return finalResult, finalFailure
}

func (executor *ShellExecutor) commandFields(command ShellCommand, attemptNumber int, maxAttempts int) []zap.Field {
	fields := []zap.Field{
		zap.String(commandFieldNameConstant, string(command.Name)),
		zap.Strings(argumentsFieldNameConstant, command.Details.Arguments),
		zap.Int(attemptFieldNameConstant, attemptNumber),
		zap.Int(maxAttemptsFieldNameConstant, maxAttempts),
	}
	if len(command.Details.WorkingDirectory) > 0 {
		fields = append(fields, zap.String(workingDirectoryFieldNameConstant, command.Details.WorkingDirectory))
	}
	return fields
}
