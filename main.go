// The main package for the dealwatch executable.
package main

import "dealwatch/cmd"

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
