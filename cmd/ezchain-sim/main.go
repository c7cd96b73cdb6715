// This is the entry point for the ezchain-sim discrete-event simulator.
package main

import "github.com/ezchain-labs/ezchain-sim/cmd/ezchain-sim/cmd"

func main() {
	cmd.Execute()
}
