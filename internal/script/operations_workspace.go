package script

import (
	"context"
	"errors"
	"fmt"

	"github.com/temirov/rex/internal/workspace"
)

const (
	workspaceAcquireOperationNameConstant   = "workspace.acquire"
	workspaceReleaseOperationNameConstant   = "workspace.release"
	workspaceMissingJanitorMessageConstant  = "workspace steps require a configured janitor"
	workspaceDuplicateNameTemplateConstant  = "workspace %s is already acquired"
	workspaceUnknownNameTemplateConstant    = "workspace %s has not been acquired"
	workspaceReleaseFailureTemplateConstant = "unable to release workspace %s: %w"
)

// WorkspaceAcquireOperation creates a named scoped directory available to
// later steps through REX_WORKSPACE_<NAME>.
type WorkspaceAcquireOperation struct {
	StepName      string
	WorkspaceName string
	Options       workspace.Options
}

// Name identifies the operation in error messages and logs.
func (operation *WorkspaceAcquireOperation) Name() string {
	if len(operation.StepName) > 0 {
		return operation.StepName
	}
	return workspaceAcquireOperationNameConstant
}

// Execute acquires the directory and registers it in the script state.
func (operation *WorkspaceAcquireOperation) Execute(executionContext context.Context, environment *Environment, state *State) error {
	if environment == nil || environment.Janitor == nil {
		return errors.New(workspaceMissingJanitorMessageConstant)
	}
	if _, alreadyAcquired := state.Workspaces[operation.WorkspaceName]; alreadyAcquired {
		return fmt.Errorf(workspaceDuplicateNameTemplateConstant, operation.WorkspaceName)
	}

	directory, acquisitionError := environment.Janitor.Acquire(operation.Options)
	if acquisitionError != nil {
		return acquisitionError
	}

	state.Workspaces[operation.WorkspaceName] = directory
	return nil
}

// WorkspaceReleaseOperation removes a previously acquired workspace.
type WorkspaceReleaseOperation struct {
	StepName      string
	WorkspaceName string
}

// Name identifies the operation in error messages and logs.
func (operation *WorkspaceReleaseOperation) Name() string {
	if len(operation.StepName) > 0 {
		return operation.StepName
	}
	return workspaceReleaseOperationNameConstant
}

// Execute releases the named directory and forgets it, so later commands no
// longer see its environment variable.
func (operation *WorkspaceReleaseOperation) Execute(executionContext context.Context, environment *Environment, state *State) error {
	directory, acquired := state.Workspaces[operation.WorkspaceName]
	if !acquired {
		return fmt.Errorf(workspaceUnknownNameTemplateConstant, operation.WorkspaceName)
	}

	delete(state.Workspaces, operation.WorkspaceName)
	if releaseError := directory.Release(); releaseError != nil {
		return fmt.Errorf(workspaceReleaseFailureTemplateConstant, operation.WorkspaceName, releaseError)
	}
	return nil
}
