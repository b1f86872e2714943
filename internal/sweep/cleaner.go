package sweep

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

const (
	removalFailureTemplateConstant = "unable to remove stale workspace %s: %w"
	staleWorkspaceRemovedMessage   = "stale workspace removed"
	staleWorkspacePreviewedMessage = "stale workspace would be removed"
	staleWorkspacePathFieldName    = "path"
	staleWorkspaceAgeFieldName     = "age"
)

// Cleaner removes stale workspace directories found by a scan.
type Cleaner struct {
	logger *zap.Logger
}

// NewCleaner constructs a cleaner. A nil logger is replaced with a no-op
// logger.
func NewCleaner(logger *zap.Logger) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{logger: logger}
}

// Clean removes each stale workspace recursively and returns the removed
// paths. In dry-run mode nothing is removed and every candidate is returned
// as if it had been.
func (cleaner *Cleaner) Clean(staleWorkspaces []StaleWorkspace, dryRun bool) ([]string, error) {
	removedPaths := make([]string, 0, len(staleWorkspaces))
	for _, staleWorkspace := range staleWorkspaces {
		if dryRun {
			cleaner.logger.Info(staleWorkspacePreviewedMessage,
				zap.String(staleWorkspacePathFieldName, staleWorkspace.Path),
				zap.Duration(staleWorkspaceAgeFieldName, staleWorkspace.Age),
			)
			removedPaths = append(removedPaths, staleWorkspace.Path)
			continue
		}

		if removalError := os.RemoveAll(staleWorkspace.Path); removalError != nil {
			return removedPaths, fmt.Errorf(removalFailureTemplateConstant, staleWorkspace.Path, removalError)
		}
		cleaner.logger.Info(staleWorkspaceRemovedMessage,
			zap.String(staleWorkspacePathFieldName, staleWorkspace.Path),
			zap.Duration(staleWorkspaceAgeFieldName, staleWorkspace.Age),
		)
		removedPaths = append(removedPaths, staleWorkspace.Path)
	}
	return removedPaths, nil
}
