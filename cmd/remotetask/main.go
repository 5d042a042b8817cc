package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/me/remotetask/internal/cli"
)

func main() {
	err := cli.NewRootCmd().Execute()
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}
