// Command apistat reports statistics over rustdoc JSON API indexes.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/fang"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// run executes the command line and returns the process exit status.
func run() int {
	a := &app{}
	defer a.shutdown()

	err := fang.Execute(
		context.Background(),
		newRootCmd(a),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(withExitCode(err), &exitErr) {
		return exitErr.ExitCode()
	}
	return exitFailure
}
