package execshell

import (
	"fmt"
	"strings"
	"time"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s%s"
	attemptAnnotationTemplateConstant       = " (attempt %d of %d)"
	genericSuccessTemplateConstant          = "Completed %s%s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	genericRetryWaitTemplateConstant        = "Waiting %s before attempt %d of %d for %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	lineBreakConstant                       = "\n"
)

// CommandMessageFormatter builds human-readable messages for command
// lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing an attempt about to run.
// Attempts past the first carry an attempt annotation.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand, attemptNumber int, maxAttempts int) string {
	startedMessage := formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
	if attemptNumber > 1 {
		startedMessage += fmt.Sprintf(attemptAnnotationTemplateConstant, attemptNumber, maxAttempts)
	}
	return startedMessage
}

// BuildSuccessMessage formats the message describing a completed command with
// a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned
// a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected
// execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

// BuildRetryWaitMessage formats the message describing the wait before the
// next attempt.
func (formatter CommandMessageFormatter) BuildRetryWaitMessage(command ShellCommand, delay time.Duration, nextAttempt int, maxAttempts int) string {
	return fmt.Sprintf(genericRetryWaitTemplateConstant, delay, nextAttempt, maxAttempts, command.String())
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := command.String()
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return commandLabel
	}
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	if len(command.Details.WorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, command.Details.WorkingDirectory)
}

// formatStandardErrorSuffix keeps failure messages single-line by surfacing
// only the first standard error line.
func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	if lineBreakIndex := strings.Index(trimmedStandardError, lineBreakConstant); lineBreakIndex >= 0 {
		trimmedStandardError = strings.TrimSpace(trimmedStandardError[:lineBreakIndex])
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}
