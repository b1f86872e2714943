package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	cleancmd "github.com/temirov/rex/cmd/cli/clean"
	runcmd "github.com/temirov/rex/cmd/cli/run"
	scriptcmd "github.com/temirov/rex/cmd/cli/script"
	"github.com/temirov/rex/internal/utils"
	flagutils "github.com/temirov/rex/internal/utils/flags"
)

const (
	applicationNameConstant                 = "rex"
	applicationShortDescriptionConstant     = "Command-line interface for retrying command execution"
	applicationLongDescriptionConstant      = "rex runs external commands with exponential backoff retries, captures or redirects their output, and manages scoped workspace directories for them."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant               = "REX"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	rootCommandInfoMessageConstant          = "rex CLI executed"
	rootCommandDebugMessageConstant         = "rex CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
	runConfigurationKeyConstant             = "run"
	cleanConfigurationKeyConstant           = "clean"
	initializeFlagNameConstant              = "init"
	initializeFlagUsageConstant             = "Write the default configuration file to the chosen scope."
	initializeLocalScopeConstant            = "local"
	initializeUserScopeConstant             = "user"
	initializeForceFlagNameConstant         = "force"
	initializeForceFlagUsageConstant        = "Overwrite an existing configuration file during --init"
	initializeUnknownScopeTemplateConstant  = "unknown --init scope %q, expected local or user"
	initializeExistsTemplateConstant        = "configuration file %s already exists"
	initializeWriteTemplateConstant         = "unable to write configuration file %s: %w"
	initializeDirectoryTemplateConstant     = "unable to create configuration directory %s: %w"
	initializedMessageTemplateConstant      = "configuration written to %s\n"
	userConfigurationDirectoryNameConstant  = ".rex"
	configurationFileNameConstant           = configurationNameConstant + "." + configurationTypeConstant
	configurationFilePermissionsConstant    = 0o644
	configurationDirectoryPermissions       = 0o755
	versionFlagNameConstant                 = "--version"
	versionSubcommandUseConstant            = "version"
	versionSubcommandShortConstant          = "Print the rex version"
	versionOutputTemplateConstant           = "rex version: %s\n"
	versionFallbackValueConstant            = "devel"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Run    runcmd.Configuration           `mapstructure:"run"`
	Clean  cleancmd.Configuration         `mapstructure:"clean"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	initializeScopeValue   string
	initializeForceValue   bool
	commandContextAccessor utils.CommandContextAccessor
	versionResolver        func(context.Context) string
	exitFunction           func(int)
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	embeddedConfigurationContent, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	configurationLoader.SetEmbeddedConfiguration(embeddedConfigurationContent, embeddedConfigurationType)

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		versionResolver:        resolveBuildVersion,
		exitFunction:           os.Exit,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	logLevelUsage := flagutils.FormatChoiceUsage(
		string(utils.LogLevelInfo),
		[]string{string(utils.LogLevelDebug), string(utils.LogLevelInfo), string(utils.LogLevelWarn), string(utils.LogLevelError)},
		logLevelFlagUsageConstant,
	)
	logFormatUsage := flagutils.FormatChoiceUsage(
		string(utils.LogFormatStructured),
		[]string{string(utils.LogFormatStructured), string(utils.LogFormatConsole)},
		logFormatFlagUsageConstant,
	)
	initializeUsage := flagutils.FormatChoiceUsage(
		initializeLocalScopeConstant,
		[]string{initializeLocalScopeConstant, initializeUserScopeConstant},
		initializeFlagUsageConstant,
	)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelUsage)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatUsage)
	cobraCommand.PersistentFlags().StringVar(&application.initializeScopeValue, initializeFlagNameConstant, "", initializeUsage)
	if initializeFlag := cobraCommand.PersistentFlags().Lookup(initializeFlagNameConstant); initializeFlag != nil {
		initializeFlag.NoOptDefVal = initializeLocalScopeConstant
	}
	flagutils.AddToggleFlag(cobraCommand.PersistentFlags(), &application.initializeForceValue, initializeForceFlagNameConstant, "", false, initializeForceFlagUsageConstant)

	runBuilder := runcmd.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider: func() runcmd.Configuration {
			return application.configuration.Run
		},
	}
	runCommand, runBuildError := runBuilder.Build()
	if runBuildError == nil {
		cobraCommand.AddCommand(runCommand)
	}

	scriptBuilder := scriptcmd.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
	}
	scriptCommand, scriptBuildError := scriptBuilder.Build()
	if scriptBuildError == nil {
		cobraCommand.AddCommand(scriptCommand)
	}

	cleanBuilder := cleancmd.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider: func() cleancmd.Configuration {
			return application.configuration.Clean
		},
	}
	cleanCommand, cleanBuildError := cleanBuilder.Build()
	if cleanBuildError == nil {
		cobraCommand.AddCommand(cleanCommand)
	}

	cobraCommand.AddCommand(application.buildVersionCommand())

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	if containsVersionFlag(os.Args[1:]) {
		application.printVersion(application.rootCommand.Context())
		application.exitFunction(0)
		return nil
	}

	application.rootCommand.SetArgs(flagutils.NormalizeToggleArguments(os.Args[1:]))

	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) buildVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   versionSubcommandUseConstant,
		Short: versionSubcommandShortConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			versionValue := application.versionResolver(command.Context())
			_, writeError := fmt.Fprintf(command.OutOrStdout(), versionOutputTemplateConstant, versionValue)
			return writeError
		},
	}
}

func (application *Application) printVersion(executionContext context.Context) {
	versionValue := application.versionResolver(executionContext)
	fmt.Fprintf(os.Stdout, versionOutputTemplateConstant, versionValue)
}

func containsVersionFlag(arguments []string) bool {
	for _, argument := range arguments {
		if argument == versionFlagNameConstant {
			return true
		}
	}
	return false
}

func resolveBuildVersion(context.Context) string {
	buildInformation, available := debug.ReadBuildInfo()
	if !available || len(buildInformation.Main.Version) == 0 {
		return versionFallbackValueConstant
	}
	return buildInformation.Main.Version
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}
	for configurationKey, configurationValue := range runcmd.DefaultConfigurationValues(runConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}
	for configurationKey, configurationValue := range cleancmd.DefaultConfigurationValues(cleanConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	loggerInstance, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerInstance

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	if len(application.initializeScopeValue) > 0 {
		return application.writeDefaultConfigurationFile(command)
	}

	if len(arguments) == 0 {
		return command.Help()
	}

	return nil
}

// writeDefaultConfigurationFile materializes the embedded default
// configuration in the requested scope. Existing files are preserved unless
// --force is set.
func (application *Application) writeDefaultConfigurationFile(command *cobra.Command) error {
	var configurationDirectory string
	switch application.initializeScopeValue {
	case initializeLocalScopeConstant:
		workingDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return workingDirectoryError
		}
		configurationDirectory = workingDirectory
	case initializeUserScopeConstant:
		homeDirectory, homeDirectoryError := os.UserHomeDir()
		if homeDirectoryError != nil {
			return homeDirectoryError
		}
		configurationDirectory = filepath.Join(homeDirectory, userConfigurationDirectoryNameConstant)
	default:
		return fmt.Errorf(initializeUnknownScopeTemplateConstant, application.initializeScopeValue)
	}

	if directoryError := os.MkdirAll(configurationDirectory, configurationDirectoryPermissions); directoryError != nil {
		return fmt.Errorf(initializeDirectoryTemplateConstant, configurationDirectory, directoryError)
	}

	configurationPath := filepath.Join(configurationDirectory, configurationFileNameConstant)
	if _, statError := os.Stat(configurationPath); statError == nil && !application.initializeForceValue {
		return fmt.Errorf(initializeExistsTemplateConstant, configurationPath)
	}

	configurationContent, _ := EmbeddedDefaultConfiguration()
	if writeError := os.WriteFile(configurationPath, configurationContent, configurationFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(initializeWriteTemplateConstant, configurationPath, writeError)
	}

	fmt.Fprintf(command.OutOrStdout(), initializedMessageTemplateConstant, configurationPath)
	return nil
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return nil
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
