package script

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/temirov/rex/internal/execshell"
	"github.com/temirov/rex/internal/memoize"
	"github.com/temirov/rex/internal/spool"
)

const (
	commandRunOperationNameConstant             = "command.run"
	commandRunMissingExecutorMessageConstant    = "command.run step requires a configured shell executor"
	commandRunLookupErrorTemplateConstant       = "unable to resolve executable %s: %w"
	commandRunUnexpectedLookupTypeConstant      = "unexpected cached lookup type %T for executable %s"
	commandRunCaptureCloseWarnMessageConstant   = "unable to close capture buffers"
	commandRunStepFieldNameConstant             = "step"
	commandRunResolvedPathFieldNameConstant     = "resolved_path"
	commandRunExecutableResolvedMessageConstant = "executable resolved"
)

// CommandRunOperation executes one external command with an optional retry
// policy, a restricted environment, and optional spooled output capture.
type CommandRunOperation struct {
	StepName    string
	Executable  string
	Arguments   []string
	WorkingDir  string
	Environment map[string]string
	Policy      execshell.RetryPolicy
	// Capture spools both output streams and replays them into the log only
	// when the command fails.
	Capture bool
}

// Name identifies the operation in error messages and logs.
func (operation *CommandRunOperation) Name() string {
	if len(operation.StepName) > 0 {
		return operation.StepName
	}
	return commandRunOperationNameConstant
}

// Execute resolves the executable, assembles the child environment, and runs
// the command through the retry-aware shell executor.
func (operation *CommandRunOperation) Execute(executionContext context.Context, environment *Environment, state *State) error {
	if environment == nil || environment.Executor == nil {
		return errors.New(commandRunMissingExecutorMessageConstant)
	}

	resolvedExecutable, lookupError := operation.resolveExecutable(environment)
	if lookupError != nil {
		return lookupError
	}

	commandDetails := execshell.CommandDetails{
		Arguments:            append([]string{}, operation.Arguments...),
		WorkingDirectory:     operation.WorkingDir,
		EnvironmentVariables: operation.childEnvironment(environment, state),
	}
	commandDetails.ReplaceParentEnvironment = len(environment.EnvironmentAllowlist) > 0

	var captureSet *spool.CaptureSet
	if operation.Capture {
		captureSet = spool.NewCaptureSet(spool.Options{})
		commandDetails.StandardOutputSink = captureSet.Stdout
		commandDetails.StandardErrorSink = captureSet.Stderr
	} else if environment.Output != nil {
		commandDetails.StandardOutputSink = environment.Output
		commandDetails.StandardErrorSink = environment.Output
	}

	shellCommand := execshell.ShellCommand{Name: execshell.CommandName(resolvedExecutable), Details: commandDetails}
	_, executionError := environment.Executor.ExecuteWithRetry(executionContext, shellCommand, operation.Policy)

	if captureSet != nil {
		if executionError != nil {
			if dumpError := captureSet.DumpOnFailure(environment.Logger, shellCommand.String(), executionError); dumpError != nil && environment.Logger != nil {
				environment.Logger.Warn(commandRunCaptureCloseWarnMessageConstant)
			}
		}
		if closeError := captureSet.Close(); closeError != nil && environment.Logger != nil {
			environment.Logger.Warn(commandRunCaptureCloseWarnMessageConstant)
		}
	}

	return executionError
}

// resolveExecutable resolves the executable path once per distinct command
// name through the shared lookup cache.
func (operation *CommandRunOperation) resolveExecutable(environment *Environment) (string, error) {
	if environment.ExecutableLookups == nil {
		return operation.Executable, nil
	}

	cachedPath, lookupError := environment.ExecutableLookups.Do(memoize.Key(operation.Executable), func() (any, error) {
		resolvedPath, pathError := exec.LookPath(operation.Executable)
		if pathError != nil {
			return nil, pathError
		}
		return resolvedPath, nil
	})
	if lookupError != nil {
		return "", fmt.Errorf(commandRunLookupErrorTemplateConstant, operation.Executable, lookupError)
	}

	resolvedPath, isString := cachedPath.(string)
	if !isString {
		return "", fmt.Errorf(commandRunUnexpectedLookupTypeConstant, cachedPath, operation.Executable)
	}

	if environment.Logger != nil {
		environment.Logger.Debug(commandRunExecutableResolvedMessageConstant,
			zap.String(commandRunStepFieldNameConstant, operation.Name()),
			zap.String(commandRunResolvedPathFieldNameConstant, resolvedPath),
		)
	}
	return resolvedPath, nil
}

// childEnvironment layers the step's variables over the workspace exports and
// the allowlisted parent environment.
func (operation *CommandRunOperation) childEnvironment(environment *Environment, state *State) map[string]string {
	childVariables := map[string]string{}
	for environmentKey, environmentValue := range environment.allowlistedParentEnvironment() {
		childVariables[environmentKey] = environmentValue
	}
	if state != nil {
		for environmentKey, environmentValue := range state.WorkspaceEnvironment() {
			childVariables[environmentKey] = environmentValue
		}
	}
	for environmentKey, environmentValue := range operation.Environment {
		childVariables[environmentKey] = environmentValue
	}
	return childVariables
}
