// Command runtimed drives the empower1 state-transition runtime from a
// JSON fixture file, grounded on cmd/empower1d/main.go's style of wiring
// collaborators together at startup and handing off to a cobra command
// tree (cmd/empower1d/cli.NewCLI).
package main

import (
	"fmt"
	"os"

	"github.com/empower1/empower1/cmd/runtimed/cli"
)

func main() {
	if err := cli.NewCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
