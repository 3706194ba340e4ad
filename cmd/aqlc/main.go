// Command aqlc compiles query pipelines to ArangoDB AQL.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/aqlc/internal/cli"
)

func main() {
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	if err == nil {
		return
	}

	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		// Usage errors: unknown flags, wrong argument counts.
		fmt.Fprintln(os.Stderr, "aqlc:", err)
		os.Exit(cli.ExitCommandError)
	}
	if exitErr.Code == cli.ExitCommandError {
		fmt.Fprintln(os.Stderr, "aqlc:", err)
	}
	os.Exit(exitErr.Code)
}
