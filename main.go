package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/temirov/rex/cmd/cli"
	"github.com/temirov/rex/internal/execshell"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the rex command-line application. When the executed command
// itself failed, rex exits with the command's own exit code.
func main() {
	executionError := cli.Execute()
	if executionError == nil {
		return
	}

	fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)

	var commandFailure execshell.CommandFailedError
	if errors.As(executionError, &commandFailure) && commandFailure.ExitCode() > 0 {
		os.Exit(commandFailure.ExitCode())
	}
	os.Exit(1)
}
