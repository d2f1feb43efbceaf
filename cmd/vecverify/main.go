// Command vecverify runs differential verification suites against the
// tiered runtime and reports kernels whose optimized results or IR shape
// diverge from the interpreter.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/vecverify/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
