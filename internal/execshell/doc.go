// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging, retry policies, and output sink routing via
// ShellExecutor, exposes OSCommandRunner for default process execution, and
// defines abstractions used throughout rex to run arbitrary commands in a
// testable manner.
package execshell
