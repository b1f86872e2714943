// Package run assembles the rex run command: one external command executed
// through the retry-aware shell executor with optional sink files, spooled
// capture, and a scoped workspace.
package run

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/rex/internal/execshell"
	"github.com/temirov/rex/internal/spool"
	"github.com/temirov/rex/internal/ui"
	"github.com/temirov/rex/internal/utils"
	"github.com/temirov/rex/internal/utils/flags"
	pathutils "github.com/temirov/rex/internal/utils/path"
	"github.com/temirov/rex/internal/workspace"
)

const (
	commandUseConstant              = "run [flags] -- <command> [arguments...]"
	commandShortDescriptionConstant = "Run a command with retries"
	commandLongDescriptionConstant  = "run executes a single external command, retrying with exponential backoff when it fails, and optionally captures its output or hands it a scoped workspace directory."

	triesFlagNameConstant             = "tries"
	triesFlagUsageConstant            = "Maximum number of attempts, including the first."
	baseDelayFlagNameConstant         = "base-delay"
	baseDelayFlagUsageConstant        = "Exponential backoff base delay between attempts."
	workingDirectoryFlagNameConstant  = "workdir"
	workingDirectoryFlagUsageConstant = "Working directory for the command."
	environmentFlagNameConstant       = "env"
	environmentFlagUsageConstant      = "Additional KEY=VALUE environment entries for the command (repeatable)."
	stdoutFileFlagNameConstant        = "stdout-file"
	stdoutFileFlagUsageConstant       = "File receiving standard output; truncated once, then appended across attempts."
	stderrFileFlagNameConstant        = "stderr-file"
	stderrFileFlagUsageConstant       = "File receiving standard error; truncated once, then appended across attempts."
	captureFlagNameConstant           = "capture"
	captureFlagUsageConstant          = "Capture output in spooled buffers and replay it to the log only on failure"
	workspaceFlagNameConstant         = "workspace"
	workspaceFlagUsageConstant        = "Acquire a scoped workspace directory exported as REX_WORKSPACE"
	keepWorkspaceFlagNameConstant     = "keep-workspace"
	keepWorkspaceFlagUsageConstant    = "Keep the scoped workspace directory instead of removing it"

	commandArgumentsRequiredMessageConstant = "run requires a command to execute"
	captureConflictsWithSinksMessage        = "run cannot combine --capture with --stdout-file or --stderr-file"
	environmentEntryInvalidTemplateConstant = "invalid --env entry %q, expected KEY=VALUE"
	sinkFileOpenErrorTemplateConstant       = "unable to open sink file %s: %w"
	sinkFileCloseWarnMessageConstant        = "unable to close sink file"
	captureCloseWarnMessageConstant         = "unable to close capture buffers"
	workspaceEnvironmentVariableConstant    = "REX_WORKSPACE"
	workspaceKeptNoticeTemplateConstant     = "workspace kept: %s\n"
	environmentEntrySeparatorConstant       = "="
	environmentEntrySplitLimitConstant      = 2
	sinkFilePermissionsConstant             = 0o600
)

// LoggerProvider supplies the logger configured by the root command.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the run command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() Configuration
	Runner                       execshell.CommandRunner

	captureRequested       bool
	workspaceRequested     bool
	keepWorkspaceRequested bool
}

// Build constructs the run command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.MinimumNArgs(1),
		RunE:  builder.run,
	}

	command.Flags().Int(triesFlagNameConstant, defaultTriesConstant, triesFlagUsageConstant)
	command.Flags().Duration(baseDelayFlagNameConstant, execshell.DefaultBaseDelay, baseDelayFlagUsageConstant)
	command.Flags().String(workingDirectoryFlagNameConstant, "", workingDirectoryFlagUsageConstant)
	command.Flags().StringArray(environmentFlagNameConstant, nil, environmentFlagUsageConstant)
	command.Flags().String(stdoutFileFlagNameConstant, "", stdoutFileFlagUsageConstant)
	command.Flags().String(stderrFileFlagNameConstant, "", stderrFileFlagUsageConstant)
	flags.AddToggleFlag(command.Flags(), &builder.captureRequested, captureFlagNameConstant, "", false, captureFlagUsageConstant)
	flags.AddToggleFlag(command.Flags(), &builder.workspaceRequested, workspaceFlagNameConstant, "", false, workspaceFlagUsageConstant)
	flags.AddToggleFlag(command.Flags(), &builder.keepWorkspaceRequested, keepWorkspaceFlagNameConstant, "", false, keepWorkspaceFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) == 0 {
		return errors.New(commandArgumentsRequiredMessageConstant)
	}

	logger := builder.resolveLogger()
	policy, policyError := builder.resolvePolicy(command)
	if policyError != nil {
		return policyError
	}

	stdoutFilePath, _ := command.Flags().GetString(stdoutFileFlagNameConstant)
	stderrFilePath, _ := command.Flags().GetString(stderrFileFlagNameConstant)
	if builder.captureRequested && (len(stdoutFilePath) > 0 || len(stderrFilePath) > 0) {
		return errors.New(captureConflictsWithSinksMessage)
	}

	environmentVariables, environmentError := builder.resolveEnvironment(command)
	if environmentError != nil {
		return environmentError
	}

	workingDirectory, _ := command.Flags().GetString(workingDirectoryFlagNameConstant)
	workingDirectory = pathutils.NewHomeExpander().Expand(strings.TrimSpace(workingDirectory))

	// Default sinks are shared with the CLI's own output, so writes from the
	// command's stream pumps go through the serializing flush wrapper.
	commandDetails := execshell.CommandDetails{
		Arguments:            arguments[1:],
		WorkingDirectory:     workingDirectory,
		EnvironmentVariables: environmentVariables,
		StandardOutputSink:   utils.NewFlushingWriter(command.OutOrStdout()),
		StandardErrorSink:    utils.NewFlushingWriter(command.ErrOrStderr()),
	}

	var captureSet *spool.CaptureSet
	if builder.captureRequested {
		captureSet = spool.NewCaptureSet(spool.Options{})
		commandDetails.StandardOutputSink = captureSet.Stdout
		commandDetails.StandardErrorSink = captureSet.Stderr
		defer func() {
			if closeError := captureSet.Close(); closeError != nil {
				logger.Warn(captureCloseWarnMessageConstant, zap.Error(closeError))
			}
		}()
	}

	if len(stdoutFilePath) > 0 {
		sinkFile, openError := openSinkFile(stdoutFilePath)
		if openError != nil {
			return openError
		}
		defer closeSinkFile(logger, sinkFile)
		commandDetails.StandardOutputSink = sinkFile
	}
	if len(stderrFilePath) > 0 {
		sinkFile, openError := openSinkFile(stderrFilePath)
		if openError != nil {
			return openError
		}
		defer closeSinkFile(logger, sinkFile)
		commandDetails.StandardErrorSink = sinkFile
	}

	if builder.workspaceRequested {
		janitor := workspace.NewJanitor(logger)
		stopWatching := janitor.WatchSignals()
		defer stopWatching()

		directory, acquisitionError := janitor.Acquire(workspace.Options{})
		if acquisitionError != nil {
			return acquisitionError
		}
		if builder.keepWorkspaceRequested {
			directory.Keep()
			defer fmt.Fprintf(command.OutOrStdout(), workspaceKeptNoticeTemplateConstant, directory.Path())
		} else {
			defer directory.Release()
		}

		if commandDetails.EnvironmentVariables == nil {
			commandDetails.EnvironmentVariables = map[string]string{}
		}
		commandDetails.EnvironmentVariables[workspaceEnvironmentVariableConstant] = directory.Path()
	}

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return executorError
	}

	shellCommand := execshell.ShellCommand{Name: execshell.CommandName(arguments[0]), Details: commandDetails}
	_, executionError := executor.ExecuteWithRetry(command.Context(), shellCommand, policy)

	if executionError != nil && captureSet != nil {
		if dumpError := captureSet.DumpOnFailure(logger, shellCommand.String(), executionError); dumpError != nil {
			logger.Warn(captureCloseWarnMessageConstant, zap.Error(dumpError))
		}
	}

	return executionError
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

// resolvePolicy layers explicit flags over the configured defaults and
// validates the result before anything runs.
func (builder *CommandBuilder) resolvePolicy(command *cobra.Command) (execshell.RetryPolicy, error) {
	policy := execshell.DefaultRetryPolicy()
	if builder.ConfigurationProvider != nil {
		configuration := builder.ConfigurationProvider()
		if configuration.Tries > 0 {
			policy.MaxAttempts = configuration.Tries
		}
		if configuration.BaseDelay > 0 {
			policy.BaseDelay = configuration.BaseDelay
		}
	}

	if command.Flags().Changed(triesFlagNameConstant) {
		triesValue, _ := command.Flags().GetInt(triesFlagNameConstant)
		policy.MaxAttempts = triesValue
	}
	if command.Flags().Changed(baseDelayFlagNameConstant) {
		baseDelayValue, _ := command.Flags().GetDuration(baseDelayFlagNameConstant)
		policy.BaseDelay = baseDelayValue
	}

	if validationError := policy.Validate(); validationError != nil {
		return execshell.RetryPolicy{}, validationError
	}
	return policy, nil
}

func (builder *CommandBuilder) resolveEnvironment(command *cobra.Command) (map[string]string, error) {
	environmentEntries, _ := command.Flags().GetStringArray(environmentFlagNameConstant)
	if len(environmentEntries) == 0 {
		return nil, nil
	}

	environmentVariables := make(map[string]string, len(environmentEntries))
	for _, environmentEntry := range environmentEntries {
		entryParts := strings.SplitN(environmentEntry, environmentEntrySeparatorConstant, environmentEntrySplitLimitConstant)
		if len(entryParts) != environmentEntrySplitLimitConstant || len(strings.TrimSpace(entryParts[0])) == 0 {
			return nil, fmt.Errorf(environmentEntryInvalidTemplateConstant, environmentEntry)
		}
		environmentVariables[strings.TrimSpace(entryParts[0])] = entryParts[1]
	}
	return environmentVariables, nil
}

func openSinkFile(sinkFilePath string) (*os.File, error) {
	expandedPath := pathutils.NewHomeExpander().Expand(sinkFilePath)
	sinkFile, openError := os.OpenFile(expandedPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, sinkFilePermissionsConstant)
	if openError != nil {
		return nil, fmt.Errorf(sinkFileOpenErrorTemplateConstant, expandedPath, openError)
	}
	return sinkFile, nil
}

func closeSinkFile(logger *zap.Logger, sinkFile *os.File) {
	if closeError := sinkFile.Close(); closeError != nil {
		logger.Warn(sinkFileCloseWarnMessageConstant, zap.Error(closeError))
	}
}
