package script

import (
	"errors"
	"fmt"

	"github.com/temirov/rex/internal/execshell"
	"github.com/temirov/rex/internal/workspace"
)

const (
	optionCommandKeyConstant          = "command"
	optionWorkingDirectoryKeyConstant = "workdir"
	optionEnvironmentKeyConstant      = "env"
	optionTriesKeyConstant            = "tries"
	optionBaseDelayKeyConstant        = "base_delay"
	optionCaptureKeyConstant          = "capture"
	optionWorkspaceNameKeyConstant    = "name"
	optionWorkspacePrefixKeyConstant  = "prefix"
	optionWorkspaceSuffixKeyConstant  = "suffix"
	optionWorkspaceParentKeyConstant  = "parent"

	unsupportedStepKindTemplateConstant  = "unsupported script step kind: %s"
	stepBuildErrorTemplateConstant       = "script step %s is invalid: %w"
	commandRequiredMessageConstant       = "command.run step requires a non-empty 'command'"
	workspaceNameRequiredMessageConstant = "workspace steps require a non-empty 'name'"
	defaultStepNameTemplateConstant      = "%s[%d]"
)

// BuildOperations converts the declarative configuration into executable
// operations, merging script defaults under each step's options.
func BuildOperations(configuration Configuration) ([]Operation, error) {
	operations := make([]Operation, 0, len(configuration.Steps))
	for stepIndex := range configuration.Steps {
		step := configuration.Steps[stepIndex]
		stepName := step.Name
		if len(stepName) == 0 {
			stepName = fmt.Sprintf(defaultStepNameTemplateConstant, step.Kind, stepIndex+1)
		}

		operation, buildError := buildOperationFromStep(stepName, step.Kind, configuration.EffectiveOptions(step))
		if buildError != nil {
			return nil, fmt.Errorf(stepBuildErrorTemplateConstant, stepName, buildError)
		}
		operations = append(operations, operation)
	}
	return operations, nil
}

func buildOperationFromStep(stepName string, kind StepKind, options map[string]any) (Operation, error) {
	switch kind {
	case StepKindCommandRun:
		return buildCommandRunOperation(stepName, options)
	case StepKindWorkspaceAcquire:
		return buildWorkspaceAcquireOperation(stepName, options)
	case StepKindWorkspaceRelease:
		return buildWorkspaceReleaseOperation(stepName, options)
	default:
		return nil, fmt.Errorf(unsupportedStepKindTemplateConstant, kind)
	}
}

func buildCommandRunOperation(stepName string, options map[string]any) (Operation, error) {
	reader := newOptionReader(options)

	commandLine, commandExists, commandError := reader.stringSliceValue(optionCommandKeyConstant)
	if commandError != nil {
		return nil, commandError
	}
	if !commandExists || len(commandLine) == 0 || len(commandLine[0]) == 0 {
		return nil, errors.New(commandRequiredMessageConstant)
	}

	workingDirectory, _, workingDirectoryError := reader.stringValue(optionWorkingDirectoryKeyConstant)
	if workingDirectoryError != nil {
		return nil, workingDirectoryError
	}

	environmentVariables, _, environmentError := reader.stringMapValue(optionEnvironmentKeyConstant)
	if environmentError != nil {
		return nil, environmentError
	}

	policy := execshell.DefaultRetryPolicy()
	triesValue, triesExist, triesError := reader.intValue(optionTriesKeyConstant)
	if triesError != nil {
		return nil, triesError
	}
	if triesExist {
		policy.MaxAttempts = triesValue
	}

	baseDelayValue, baseDelayExists, baseDelayError := reader.durationValue(optionBaseDelayKeyConstant)
	if baseDelayError != nil {
		return nil, baseDelayError
	}
	if baseDelayExists {
		policy.BaseDelay = baseDelayValue
	}

	if validationError := policy.Validate(); validationError != nil {
		return nil, validationError
	}

	captureValue, _, captureError := reader.boolValue(optionCaptureKeyConstant)
	if captureError != nil {
		return nil, captureError
	}

	return &CommandRunOperation{
		StepName:    stepName,
		Executable:  commandLine[0],
		Arguments:   commandLine[1:],
		WorkingDir:  workingDirectory,
		Environment: environmentVariables,
		Policy:      policy,
		Capture:     captureValue,
	}, nil
}

func buildWorkspaceAcquireOperation(stepName string, options map[string]any) (Operation, error) {
	reader := newOptionReader(options)

	workspaceName, nameExists, nameError := reader.stringValue(optionWorkspaceNameKeyConstant)
	if nameError != nil {
		return nil, nameError
	}
	if !nameExists || len(workspaceName) == 0 {
		return nil, errors.New(workspaceNameRequiredMessageConstant)
	}

	prefixValue, _, prefixError := reader.stringValue(optionWorkspacePrefixKeyConstant)
	if prefixError != nil {
		return nil, prefixError
	}
	suffixValue, _, suffixError := reader.stringValue(optionWorkspaceSuffixKeyConstant)
	if suffixError != nil {
		return nil, suffixError
	}
	parentValue, _, parentError := reader.stringValue(optionWorkspaceParentKeyConstant)
	if parentError != nil {
		return nil, parentError
	}

	return &WorkspaceAcquireOperation{
		StepName:      stepName,
		WorkspaceName: workspaceName,
		Options: workspace.Options{
			Prefix:          prefixValue,
			Suffix:          suffixValue,
			ParentDirectory: parentValue,
		},
	}, nil
}

func buildWorkspaceReleaseOperation(stepName string, options map[string]any) (Operation, error) {
	reader := newOptionReader(options)

	workspaceName, nameExists, nameError := reader.stringValue(optionWorkspaceNameKeyConstant)
	if nameError != nil {
		return nil, nameError
	}
	if !nameExists || len(workspaceName) == 0 {
		return nil, errors.New(workspaceNameRequiredMessageConstant)
	}

	return &WorkspaceReleaseOperation{StepName: stepName, WorkspaceName: workspaceName}, nil
}
