// Package workspace manages short-lived working directories handed to child
// commands. Every directory is acquired from an explicit Janitor that tracks
// it until release, so cleanup never depends on process-exit hooks or hidden
// package state.
package workspace

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// DefaultPrefix names workspace directories so stale ones can be recognized
// later.
const DefaultPrefix = "rex-workspace-"

const (
	workspaceCreationFailureTemplateConstant = "unable to create workspace directory: %w"
	workspaceRemovalFailureTemplateConstant  = "unable to remove workspace directory %s: %w"
	directoryPathFieldNameConstant           = "path"
	workspaceAcquiredMessageConstant         = "workspace directory acquired"
	workspaceReleasedMessageConstant         = "workspace directory released"
	workspaceKeptMessageConstant             = "workspace directory kept"
	randomSegmentPlaceholderConstant         = "*"
)

// Options configures workspace directory creation.
type Options struct {
	// Prefix precedes the random segment of the directory name; empty selects
	// DefaultPrefix.
	Prefix string
	// Suffix follows the random segment of the directory name.
	Suffix string
	// ParentDirectory hosts the workspace; empty selects the system temp
	// directory.
	ParentDirectory string
}

func (options Options) namePattern() string {
	prefix := options.Prefix
	if len(prefix) == 0 {
		prefix = DefaultPrefix
	}
	return prefix + randomSegmentPlaceholderConstant + options.Suffix
}

// ScopedDirectory is a private directory that exists until released. Release
// is idempotent and tolerant of the directory already being gone.
type ScopedDirectory struct {
	path         string
	janitor      *Janitor
	releaseOnce  sync.Once
	releaseError error
	kept         bool
}

// Path reports the absolute directory path.
func (directory *ScopedDirectory) Path() string {
	return directory.path
}

// Keep detaches the directory from cleanup: Release and janitor sweeps leave
// it on disk afterwards.
func (directory *ScopedDirectory) Keep() {
	directory.kept = true
	if directory.janitor != nil {
		directory.janitor.forget(directory)
		directory.janitor.logger.Debug(workspaceKeptMessageConstant, zap.String(directoryPathFieldNameConstant, directory.path))
	}
}

// Release removes the directory tree and stops tracking it. Repeated calls
// return the first outcome.
func (directory *ScopedDirectory) Release() error {
	directory.releaseOnce.Do(func() {
		if directory.janitor != nil {
			directory.janitor.forget(directory)
		}
		if directory.kept {
			return
		}
		if removalError := os.RemoveAll(directory.path); removalError != nil {
			directory.releaseError = fmt.Errorf(workspaceRemovalFailureTemplateConstant, directory.path, removalError)
			return
		}
		if directory.janitor != nil {
			directory.janitor.logger.Debug(workspaceReleasedMessageConstant, zap.String(directoryPathFieldNameConstant, directory.path))
		}
	})
	return directory.releaseError
}

// Acquire creates a workspace directory with private permissions and tracks
// it until release.
func (janitor *Janitor) Acquire(options Options) (*ScopedDirectory, error) {
	directoryPath, creationError := os.MkdirTemp(options.ParentDirectory, options.namePattern())
	if creationError != nil {
		return nil, fmt.Errorf(workspaceCreationFailureTemplateConstant, creationError)
	}

	directory := &ScopedDirectory{path: directoryPath, janitor: janitor}
	janitor.track(directory)
	janitor.logger.Debug(workspaceAcquiredMessageConstant, zap.String(directoryPathFieldNameConstant, directoryPath))
	return directory, nil
}

// WithDirectory acquires a workspace, runs action with its path, and releases
// it afterwards regardless of the action outcome. Action errors take
// precedence over release errors.
func (janitor *Janitor) WithDirectory(options Options, action func(directoryPath string) error) error {
	directory, acquisitionError := janitor.Acquire(options)
	if acquisitionError != nil {
		return acquisitionError
	}
	defer directory.Release()

	if actionError := action(directory.Path()); actionError != nil {
		return actionError
	}
	return directory.Release()
}
