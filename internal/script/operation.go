package script

import (
	"context"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/rex/internal/execshell"
	"github.com/temirov/rex/internal/mapping"
	"github.com/temirov/rex/internal/memoize"
	"github.com/temirov/rex/internal/workspace"
)

const (
	workspaceEnvironmentPrefixConstant   = "REX_WORKSPACE_"
	environmentEntrySeparatorConstant    = "="
	environmentEntrySplitLimitConstant   = 2
	workspaceNameReplacementRuneConstant = '_'
)

// Operation executes a single script step.
type Operation interface {
	Name() string
	Execute(executionContext context.Context, environment *Environment, state *State) error
}

// Environment exposes shared collaborators to script operations.
type Environment struct {
	Executor *execshell.ShellExecutor
	Janitor  *workspace.Janitor
	Logger   *zap.Logger
	Output   io.Writer
	// ExecutableLookups caches executable path resolution per command name so
	// repeated steps resolve each binary once.
	ExecutableLookups *memoize.Cache
	// EnvironmentAllowlist restricts which parent environment variables child
	// commands inherit. Empty passes the full parent environment.
	EnvironmentAllowlist []string
}

// State carries mutable execution state between script steps.
type State struct {
	// Workspaces holds directories acquired by earlier steps, keyed by their
	// declared name.
	Workspaces map[string]*workspace.ScopedDirectory
}

// NewState constructs an empty script execution state.
func NewState() *State {
	return &State{Workspaces: map[string]*workspace.ScopedDirectory{}}
}

// WorkspaceEnvironment exposes every acquired workspace as a
// REX_WORKSPACE_<NAME> variable for child commands.
func (state *State) WorkspaceEnvironment() map[string]string {
	workspaceVariables := make(map[string]string, len(state.Workspaces))
	for workspaceName, directory := range state.Workspaces {
		workspaceVariables[workspaceEnvironmentVariableName(workspaceName)] = directory.Path()
	}
	return workspaceVariables
}

func workspaceEnvironmentVariableName(workspaceName string) string {
	normalizedName := strings.Map(func(nameRune rune) rune {
		switch {
		case nameRune >= 'a' && nameRune <= 'z':
			return nameRune - ('a' - 'A')
		case nameRune >= 'A' && nameRune <= 'Z':
			return nameRune
		case nameRune >= '0' && nameRune <= '9':
			return nameRune
		default:
			return workspaceNameReplacementRuneConstant
		}
	}, workspaceName)
	return workspaceEnvironmentPrefixConstant + normalizedName
}

// allowlistedParentEnvironment selects the parent environment variables the
// allowlist permits. Allowlisted variables absent from the parent environment
// resolve to empty strings so child commands observe them as set but empty.
func (environment *Environment) allowlistedParentEnvironment() map[string]string {
	if len(environment.EnvironmentAllowlist) == 0 {
		return nil
	}

	parentEnvironment := map[string]any{}
	for _, environmentEntry := range os.Environ() {
		entryParts := strings.SplitN(environmentEntry, environmentEntrySeparatorConstant, environmentEntrySplitLimitConstant)
		if len(entryParts) != environmentEntrySplitLimitConstant {
			continue
		}
		parentEnvironment[entryParts[0]] = entryParts[1]
	}

	filteredEnvironment := mapping.FilterKeys(parentEnvironment, environment.EnvironmentAllowlist)
	selectedVariables := make(map[string]string, len(filteredEnvironment))
	for environmentKey, rawValue := range filteredEnvironment {
		if stringValue, isString := rawValue.(string); isString {
			selectedVariables[environmentKey] = stringValue
			continue
		}
		selectedVariables[environmentKey] = ""
	}
	return selectedVariables
}
