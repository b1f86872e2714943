// Package script assembles the rex script command: a YAML runbook executed
// step by step through the shared retry-aware executor.
package script

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/rex/internal/execshell"
	"github.com/temirov/rex/internal/memoize"
	scriptengine "github.com/temirov/rex/internal/script"
	"github.com/temirov/rex/internal/ui"
	"github.com/temirov/rex/internal/utils/flags"
	pathutils "github.com/temirov/rex/internal/utils/path"
	"github.com/temirov/rex/internal/workspace"
)

const (
	commandUseConstant              = "script <file>"
	commandShortDescriptionConstant = "Execute a YAML script of commands and workspaces"
	commandLongDescriptionConstant  = "script loads a YAML file describing ordered steps, then executes each step through the retrying executor. Steps acquire and release named workspaces, and commands see them as REX_WORKSPACE_<NAME> variables."

	haltOnFailureFlagNameConstant  = "halt-on-failure"
	haltOnFailureFlagUsageConstant = "Stop at the first failing step instead of running the remaining steps"

	scriptFileRequiredMessageConstant = "script requires a script file path"
)

// LoggerProvider supplies the logger configured by the root command.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the script command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	Runner                       execshell.CommandRunner

	haltOnFailure bool
}

// Build constructs the script command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.run,
	}

	flags.AddToggleFlag(command.Flags(), &builder.haltOnFailure, haltOnFailureFlagNameConstant, "", true, haltOnFailureFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) == 0 {
		return errors.New(scriptFileRequiredMessageConstant)
	}

	logger := builder.resolveLogger()

	scriptFilePath := pathutils.NewHomeExpander().Expand(arguments[0])
	configuration, configurationError := scriptengine.LoadConfiguration(scriptFilePath)
	if configurationError != nil {
		return configurationError
	}

	operations, buildError := scriptengine.BuildOperations(configuration)
	if buildError != nil {
		return buildError
	}

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return executorError
	}

	janitor := workspace.NewJanitor(logger)
	stopWatching := janitor.WatchSignals()
	defer stopWatching()

	environment := scriptengine.Environment{
		Executor:             executor,
		Janitor:              janitor,
		Logger:               logger,
		Output:               command.OutOrStdout(),
		ExecutableLookups:    memoize.NewCache(),
		EnvironmentAllowlist: configuration.Environment,
	}

	scriptExecutor := scriptengine.NewExecutor(operations, environment)
	return scriptExecutor.Execute(command.Context(), scriptengine.RuntimeOptions{HaltOnFailure: builder.haltOnFailure})
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider != nil {
		if logger := builder.LoggerProvider(); logger != nil {
			return logger
		}
	}
	return zap.NewNop()
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (*execshell.ShellExecutor, error) {
	runner := builder.Runner
	if runner == nil {
		runner = execshell.NewOSCommandRunner()
	}

	executor, executorError := execshell.NewShellExecutor(logger, runner)
	if executorError != nil {
		return nil, executorError
	}

	if builder.HumanReadableLoggingProvider != nil && builder.HumanReadableLoggingProvider() {
		executor = executor.WithEventObserver(ui.NewConsoleCommandEventLogger(logger))
	}
	return executor, nil
}
