// Package script executes declarative runbooks: ordered steps loaded from a
// YAML file that run external commands with retry policies and manage scoped
// workspace directories shared between steps.
package script
