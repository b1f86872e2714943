package script

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	executorMissingDependenciesMessageConstant = "script executor requires an executor and a janitor"
	stepExecutionErrorTemplateConstant         = "script step %s failed: %w"
	stepFailureContinuingMessageConstant       = "script step failed, continuing"
	leftoverWorkspaceReleasedMessageConstant   = "releasing workspace left acquired by the script"
	stepFieldNameConstant                      = "step"
	workspaceNameFieldNameConstant             = "workspace"
	stepCountFieldNameConstant                 = "steps"
	scriptStartingMessageConstant              = "executing script"
)

// RuntimeOptions captures user-provided execution modifiers.
type RuntimeOptions struct {
	// HaltOnFailure stops the script at the first failing step. When false the
	// remaining steps still run and the first failure is reported at the end.
	HaltOnFailure bool
}

// Executor runs script operations in order, sharing one environment and state
// across them. Workspaces still acquired when the script ends are released.
type Executor struct {
	operations  []Operation
	environment Environment
}

// NewExecutor constructs an Executor instance.
func NewExecutor(operations []Operation, environment Environment) *Executor {
	return &Executor{operations: append([]Operation{}, operations...), environment: environment}
}

// Execute runs every operation in order and releases leftover workspaces.
func (executor *Executor) Execute(executionContext context.Context, runtimeOptions RuntimeOptions) error {
	if executor.environment.Executor == nil || executor.environment.Janitor == nil {
		return errors.New(executorMissingDependenciesMessageConstant)
	}

	logger := executor.environment.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug(scriptStartingMessageConstant, zap.Int(stepCountFieldNameConstant, len(executor.operations)))

	state := NewState()
	defer executor.releaseLeftoverWorkspaces(logger, state)

	var firstFailure error
	for operationIndex := range executor.operations {
		operation := executor.operations[operationIndex]
		if operation == nil {
			continue
		}

		executionError := operation.Execute(executionContext, &executor.environment, state)
		if executionError == nil {
			continue
		}

		wrappedError := fmt.Errorf(stepExecutionErrorTemplateConstant, operation.Name(), executionError)
		if runtimeOptions.HaltOnFailure {
			return wrappedError
		}
		if firstFailure == nil {
			firstFailure = wrappedError
		}
		logger.Warn(stepFailureContinuingMessageConstant,
			zap.String(stepFieldNameConstant, operation.Name()),
			zap.Error(executionError),
		)
	}

	return firstFailure
}

func (executor *Executor) releaseLeftoverWorkspaces(logger *zap.Logger, state *State) {
	for workspaceName, directory := range state.Workspaces {
		logger.Debug(leftoverWorkspaceReleasedMessageConstant, zap.String(workspaceNameFieldNameConstant, workspaceName))
		if releaseError := directory.Release(); releaseError != nil {
			logger.Warn(stepFailureContinuingMessageConstant,
				zap.String(workspaceNameFieldNameConstant, workspaceName),
				zap.Error(releaseError),
			)
		}
	}
}
