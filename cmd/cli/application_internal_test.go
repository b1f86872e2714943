package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	overrideConfigurationFileNameConstant = "config.yaml"
	overrideConfigurationContentConstant  = "common:\n" +
		"  log_level: debug\n" +
		"  log_format: console\n" +
		"run:\n" +
		"  tries: 4\n" +
		"  base_delay: 250ms\n" +
		"clean:\n" +
		"  max_age: 1h\n"
)

func TestApplicationEmbeddedDefaultsApplied(testInstance *testing.T) {
	application := NewApplication()

	initializationError := application.initializeConfiguration(application.rootCommand)
	require.NoError(testInstance, initializationError)

	require.Equal(testInstance, "info", application.configuration.Common.LogLevel)
	require.Equal(testInstance, "structured", application.configuration.Common.LogFormat)
	require.Equal(testInstance, 1, application.configuration.Run.Tries)
	require.Equal(testInstance, 5*time.Second, application.configuration.Run.BaseDelay)
	require.Equal(testInstance, 24*time.Hour, application.configuration.Clean.MaxAge)
	require.False(testInstance, application.humanReadableLoggingEnabled())
}

func TestApplicationConfigurationFileOverridesDefaults(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	configurationPath := filepath.Join(temporaryDirectory, overrideConfigurationFileNameConstant)
	writeError := os.WriteFile(configurationPath, []byte(overrideConfigurationContentConstant), 0o600)
	require.NoError(testInstance, writeError)

	application := NewApplication()
	application.configurationFilePath = configurationPath

	initializationError := application.initializeConfiguration(application.rootCommand)
	require.NoError(testInstance, initializationError)

	require.Equal(testInstance, 4, application.configuration.Run.Tries)
	require.Equal(testInstance, 250*time.Millisecond, application.configuration.Run.BaseDelay)
	require.Equal(testInstance, time.Hour, application.configuration.Clean.MaxAge)
	require.True(testInstance, application.humanReadableLoggingEnabled())
	require.Equal(testInstance, configurationPath, application.configurationMetadata.ConfigFileUsed)
}

func TestApplicationLogFlagsOverrideConfiguration(testInstance *testing.T) {
	application := NewApplication()

	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "warn"))
	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(logFormatFlagNameConstant, "console"))

	initializationError := application.initializeConfiguration(application.rootCommand)
	require.NoError(testInstance, initializationError)

	require.Equal(testInstance, "warn", application.configuration.Common.LogLevel)
	require.Equal(testInstance, "console", application.configuration.Common.LogFormat)
	require.True(testInstance, application.humanReadableLoggingEnabled())
}

func TestApplicationRejectsUnsupportedLogLevel(testInstance *testing.T) {
	application := NewApplication()

	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "verbose"))

	initializationError := application.initializeConfiguration(application.rootCommand)
	require.Error(testInstance, initializationError)
	require.Contains(testInstance, initializationError.Error(), "unsupported log level")
}

func TestApplicationRegistersExpectedCommands(testInstance *testing.T) {
	application := NewApplication()

	expectedCommandNames := []string{"run", "script", "clean", "version"}
	for commandIndex, expectedCommandName := range expectedCommandNames {
		testInstance.Run(fmt.Sprintf("%d_%s", commandIndex, expectedCommandName), func(testInstance *testing.T) {
			registeredCommand, _, lookupError := application.rootCommand.Find([]string{expectedCommandName})
			require.NoError(testInstance, lookupError)
			require.Equal(testInstance, expectedCommandName, registeredCommand.Name())
		})
	}
}
