// The main package for the labelworker executable.
package main

import (
	"github.com/recallwatch/labelworker/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
