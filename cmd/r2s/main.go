// Command r2s computes residual gamma sources with the Rigorous 2-Step
// method.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/r2s/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
