// Blockflow - typed graph engine over a voxel grid.
//
// Blockflow builds node graphs out of adjacent grid blocks, keeps them
// consistent as blocks appear and disappear, and simulates packets
// traveling the graphs on a tick clock.
package main

import (
	"fmt"
	"os"

	"github.com/kyralis/blockflow-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
