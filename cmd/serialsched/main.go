package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"serialsched/internal/cli"
)

// version is set with -ldflags at build time.
var version = "dev"

func main() {
	root := cli.NewRootCmd(version)
	if err := root.ExecuteContext(context.Background()); err != nil {
		var code cli.ExitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
