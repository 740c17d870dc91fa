// pimeshctl is the CLI client for the pimesh control mesh daemon.
package main

import (
	"github.com/dantte-lp/pimesh/cmd/pimeshctl/commands"
)

func main() {
	commands.Execute()
}
