// Package clean assembles the rex clean command, which sweeps stale workspace
// directories left behind by interrupted runs.
package clean

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/rex/internal/sweep"
	"github.com/temirov/rex/internal/utils/flags"
	pathutils "github.com/temirov/rex/internal/utils/path"
)

const (
	commandUseConstant              = "clean"
	commandShortDescriptionConstant = "Remove stale workspace directories"
	commandLongDescriptionConstant  = "clean scans a parent directory for workspace directories older than the configured age and removes them. Use --dry-run to preview the removals."

	maxAgeFlagNameConstant           = "max-age"
	maxAgeFlagUsageConstant          = "Minimum age before a workspace directory counts as stale."
	parentDirectoryFlagNameConstant  = "parent"
	parentDirectoryFlagUsageConstant = "Directory scanned for stale workspaces; defaults to the system temporary directory."
	dryRunFlagNameConstant           = "dry-run"
	dryRunFlagUsageConstant          = "Preview the stale workspaces without removing them"

	removedSummaryTemplateConstant = "removed %d stale workspace(s)\n"
	previewSummaryTemplateConstant = "would remove %d stale workspace(s)\n"
	candidateLineTemplateConstant  = "%s\n"
)

// LoggerProvider supplies the logger configured by the root command.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the clean command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() Configuration
	Scanner               *sweep.FilesystemWorkspaceScanner

	dryRunRequested bool
}

// Build constructs the clean command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().Duration(maxAgeFlagNameConstant, 0, maxAgeFlagUsageConstant)
	command.Flags().String(parentDirectoryFlagNameConstant, "", parentDirectoryFlagUsageConstant)
	flags.AddToggleFlag(command.Flags(), &builder.dryRunRequested, dryRunFlagNameConstant, "", false, dryRunFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, _ []string) error {
	logger := builder.resolveLogger()

	scanOptions := builder.resolveScanOptions(command)

	scanner := builder.Scanner
	if scanner == nil {
		scanner = sweep.NewFilesystemWorkspaceScanner()
	}

	staleWorkspaces, scanError := scanner.Scan(scanOptions)
	if scanError != nil {
		return scanError
	}

	removedPaths, cleanError := sweep.NewCleaner(logger).Clean(staleWorkspaces, builder.dryRunRequested)
	if cleanError != nil {
		return cleanError
	}

	for _, removedPath := range removedPaths {
		fmt.Fprintf(command.OutOrStdout(), candidateLineTemplateConstant, removedPath)
	}
	summaryTemplate := removedSummaryTemplateConstant
	if builder.dryRunRequested {
		summaryTemplate = previewSummaryTemplateConstant
	}
	fmt.Fprintf(command.OutOrStdout(), summaryTemplate, len(removedPaths))
	return nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider != nil {
		if logger := builder.LoggerProvider(); logger != nil {
			return logger
		}
	}
	return zap.NewNop()
}

// resolveScanOptions layers the explicit flags over the configured defaults.
func (builder *CommandBuilder) resolveScanOptions(command *cobra.Command) sweep.ScanOptions {
	scanOptions := sweep.ScanOptions{}
	if builder.ConfigurationProvider != nil {
		configuration := builder.ConfigurationProvider()
		if configuration.MaxAge > 0 {
			scanOptions.MaxAge = configuration.MaxAge
		}
	}

	if command.Flags().Changed(maxAgeFlagNameConstant) {
		maxAgeValue, _ := command.Flags().GetDuration(maxAgeFlagNameConstant)
		scanOptions.MaxAge = maxAgeValue
	}
	parentDirectory, _ := command.Flags().GetString(parentDirectoryFlagNameConstant)
	scanOptions.ParentDirectory = pathutils.NewHomeExpander().Expand(parentDirectory)

	return scanOptions
}
