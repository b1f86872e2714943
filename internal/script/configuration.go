package script

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/rex/internal/mapping"
)

const (
	configurationLoadErrorTemplateConstant       = "failed to load script configuration: %w"
	configurationParseErrorTemplateConstant      = "failed to parse script configuration: %w"
	configurationPathRequiredMessageConstant     = "script configuration path must be provided"
	configurationEmptyStepsMessageConstant       = "script configuration must define at least one step"
	configurationKindMissingTemplateConstant     = "script step %d missing kind"
	configurationEnvironmentEntryMessageConstant = "script environment allowlist entries must be non-empty"
)

// StepKind identifies supported script step kinds.
type StepKind string

// Supported script step kinds.
const (
	StepKindCommandRun       StepKind = StepKind("command.run")
	StepKindWorkspaceAcquire StepKind = StepKind("workspace.acquire")
	StepKindWorkspaceRelease StepKind = StepKind("workspace.release")
)

// Configuration describes an ordered script loaded from YAML.
type Configuration struct {
	// Defaults merge under every step's options: a step option wins over the
	// script default with the same key.
	Defaults map[string]any `yaml:"defaults"`
	// Environment lists the parent environment variables passed through to
	// child commands. An empty list passes the full parent environment.
	Environment []string            `yaml:"environment"`
	Steps       []StepConfiguration `yaml:"steps"`
}

// StepConfiguration associates a step kind with declarative options.
type StepConfiguration struct {
	Name    string         `yaml:"name"`
	Kind    StepKind       `yaml:"kind"`
	Options map[string]any `yaml:"with"`
}

// EffectiveOptions combines the step's options with the script defaults,
// letting step options win.
func (configuration Configuration) EffectiveOptions(step StepConfiguration) map[string]any {
	return mapping.Merge(step.Options, configuration.Defaults)
}

// LoadConfiguration reads the script definition from disk and performs basic
// validation. Scripts may nest the definition under a top-level "script" key.
func LoadConfiguration(filePath string) (Configuration, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return Configuration{}, errors.New(configurationPathRequiredMessageConstant)
	}

	contentBytes, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return Configuration{}, fmt.Errorf(configurationLoadErrorTemplateConstant, readError)
	}

	configuration, parseError := parseConfiguration(contentBytes)
	if parseError != nil {
		return Configuration{}, parseError
	}

	if len(configuration.Steps) == 0 {
		return Configuration{}, errors.New(configurationEmptyStepsMessageConstant)
	}

	for environmentIndex := range configuration.Environment {
		trimmedEntry := strings.TrimSpace(configuration.Environment[environmentIndex])
		if len(trimmedEntry) == 0 {
			return Configuration{}, errors.New(configurationEnvironmentEntryMessageConstant)
		}
		configuration.Environment[environmentIndex] = trimmedEntry
	}

	for stepIndex := range configuration.Steps {
		trimmedKind := strings.TrimSpace(string(configuration.Steps[stepIndex].Kind))
		if len(trimmedKind) == 0 {
			return Configuration{}, fmt.Errorf(configurationKindMissingTemplateConstant, stepIndex+1)
		}
		configuration.Steps[stepIndex].Kind = StepKind(trimmedKind)
		configuration.Steps[stepIndex].Name = strings.TrimSpace(configuration.Steps[stepIndex].Name)
	}

	return configuration, nil
}

func parseConfiguration(contentBytes []byte) (Configuration, error) {
	var configuration Configuration
	if unmarshalError := yaml.Unmarshal(contentBytes, &configuration); unmarshalError != nil {
		return Configuration{}, fmt.Errorf(configurationParseErrorTemplateConstant, unmarshalError)
	}

	if len(configuration.Steps) > 0 {
		return configuration, nil
	}

	var wrapper struct {
		Script Configuration `yaml:"script"`
	}
	if nestedError := yaml.Unmarshal(contentBytes, &wrapper); nestedError == nil && len(wrapper.Script.Steps) > 0 {
		return wrapper.Script, nil
	}

	return configuration, nil
}
