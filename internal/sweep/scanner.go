// Package sweep locates and removes workspace directories left behind by
// abnormal terminations that no janitor could clean up.
package sweep

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/temirov/rex/internal/workspace"
)

const (
	parentReadErrorTemplateConstant = "unable to read workspace parent directory %s: %w"
	negativeMaxAgeMessageConstant   = "maximum age must not be negative"
)

// StaleWorkspace describes a leftover workspace directory.
type StaleWorkspace struct {
	Path       string
	ModifiedAt time.Time
	Age        time.Duration
}

// ScanOptions bounds a scan for leftover workspace directories.
type ScanOptions struct {
	// ParentDirectory hosts the workspaces; empty selects the system temp
	// directory.
	ParentDirectory string
	// Prefix selects which entries count as workspaces; empty selects the
	// default workspace prefix.
	Prefix string
	// MaxAge excludes directories younger than the given age, protecting
	// workspaces that may still belong to a running process.
	MaxAge time.Duration
}

// FilesystemWorkspaceScanner finds leftover workspace directories on disk.
type FilesystemWorkspaceScanner struct {
	clock func() time.Time
}

// NewFilesystemWorkspaceScanner constructs a scanner using the system clock.
func NewFilesystemWorkspaceScanner() *FilesystemWorkspaceScanner {
	return &FilesystemWorkspaceScanner{clock: time.Now}
}

// WithClock returns a scanner using the provided clock. A nil clock restores
// the system clock.
func (scanner *FilesystemWorkspaceScanner) WithClock(clock func() time.Time) *FilesystemWorkspaceScanner {
	configured := *scanner
	if clock == nil {
		configured.clock = time.Now
	} else {
		configured.clock = clock
	}
	return &configured
}

// Scan returns the workspace directories under the parent that match the
// prefix and are at least MaxAge old, sorted by path. Entries that disappear
// mid-scan are skipped.
func (scanner *FilesystemWorkspaceScanner) Scan(options ScanOptions) ([]StaleWorkspace, error) {
	if options.MaxAge < 0 {
		return nil, errors.New(negativeMaxAgeMessageConstant)
	}

	parentDirectory := options.ParentDirectory
	if len(parentDirectory) == 0 {
		parentDirectory = os.TempDir()
	}
	prefix := options.Prefix
	if len(prefix) == 0 {
		prefix = workspace.DefaultPrefix
	}

	directoryEntries, readError := os.ReadDir(parentDirectory)
	if readError != nil {
		return nil, fmt.Errorf(parentReadErrorTemplateConstant, parentDirectory, readError)
	}

	currentTime := scanner.clock()
	var staleWorkspaces []StaleWorkspace
	for _, directoryEntry := range directoryEntries {
		if !directoryEntry.IsDir() {
			continue
		}
		if !strings.HasPrefix(directoryEntry.Name(), prefix) {
			continue
		}

		entryInformation, informationError := directoryEntry.Info()
		if informationError != nil {
			continue
		}

		entryAge := currentTime.Sub(entryInformation.ModTime())
		if entryAge < options.MaxAge {
			continue
		}

		staleWorkspaces = append(staleWorkspaces, StaleWorkspace{
			Path:       filepath.Join(parentDirectory, directoryEntry.Name()),
			ModifiedAt: entryInformation.ModTime(),
			Age:        entryAge,
		})
	}

	sort.Slice(staleWorkspaces, func(firstIndex, secondIndex int) bool {
		return staleWorkspaces[firstIndex].Path < staleWorkspaces[secondIndex].Path
	})
	return staleWorkspaces, nil
}
