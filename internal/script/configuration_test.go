package script_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/rex/internal/script"
)

const (
	configurationValidCaseNameConstant        = "valid_script"
	configurationWrappedCaseNameConstant      = "wrapped_script"
	configurationMissingStepsCaseNameConstant = "missing_steps"
	configurationMissingKindCaseNameConstant  = "missing_kind"
	configurationBlankAllowlistCaseName       = "blank_allowlist_entry"
	configurationFileNameConstant             = "script.yaml"
	configurationSubtestNameTemplateConstant  = "%d_%s"
)

const validScriptContentConstant = `
defaults:
  tries: 3
environment:
  - PATH
  - " HOME "
steps:
  - name: build
    kind: command.run
    with:
      command: ["make", "build"]
  - kind: workspace.acquire
    with:
      name: scratch
`

const wrappedScriptContentConstant = `
script:
  steps:
    - kind: command.run
      with:
        command: ["true"]
`

const missingKindScriptContentConstant = `
steps:
  - name: broken
    with:
      command: ["true"]
`

const blankAllowlistScriptContentConstant = `
environment:
  - ""
steps:
  - kind: command.run
    with:
      command: ["true"]
`

func writeScriptFile(testInstance *testing.T, content string) string {
	testInstance.Helper()
	scriptPath := filepath.Join(testInstance.TempDir(), configurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(scriptPath, []byte(content), 0o600))
	return scriptPath
}

func TestLoadConfiguration(testInstance *testing.T) {
	testCases := []struct {
		name          string
		content       string
		expectError   bool
		expectedSteps int
	}{
		{
			name:          configurationValidCaseNameConstant,
			content:       validScriptContentConstant,
			expectedSteps: 2,
		},
		{
			name:          configurationWrappedCaseNameConstant,
			content:       wrappedScriptContentConstant,
			expectedSteps: 1,
		},
		{
			name:        configurationMissingStepsCaseNameConstant,
			content:     "defaults: {}\n",
			expectError: true,
		},
		{
			name:        configurationMissingKindCaseNameConstant,
			content:     missingKindScriptContentConstant,
			expectError: true,
		},
		{
			name:        configurationBlankAllowlistCaseName,
			content:     blankAllowlistScriptContentConstant,
			expectError: true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(configurationSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			scriptPath := writeScriptFile(testInstance, testCase.content)

			configuration, loadError := script.LoadConfiguration(scriptPath)
			if testCase.expectError {
				require.Error(testInstance, loadError)
				return
			}

			require.NoError(testInstance, loadError)
			require.Len(testInstance, configuration.Steps, testCase.expectedSteps)
		})
	}
}

func TestLoadConfigurationTrimsAllowlistEntries(testInstance *testing.T) {
	scriptPath := writeScriptFile(testInstance, validScriptContentConstant)

	configuration, loadError := script.LoadConfiguration(scriptPath)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, []string{"PATH", "HOME"}, configuration.Environment)
}

func TestLoadConfigurationRequiresPath(testInstance *testing.T) {
	_, loadError := script.LoadConfiguration("   ")
	require.Error(testInstance, loadError)
}

func TestEffectiveOptionsMergeDefaultsUnderStepOptions(testInstance *testing.T) {
	configuration := script.Configuration{
		Defaults: map[string]any{"tries": 3, "base_delay": "1s"},
		Steps: []script.StepConfiguration{
			{
				Kind:    script.StepKindCommandRun,
				Options: map[string]any{"command": []any{"true"}, "tries": 5},
			},
		},
	}

	effectiveOptions := configuration.EffectiveOptions(configuration.Steps[0])
	require.Equal(testInstance, 5, effectiveOptions["tries"])
	require.Equal(testInstance, "1s", effectiveOptions["base_delay"])
	require.Equal(testInstance, []any{"true"}, effectiveOptions["command"])
}
