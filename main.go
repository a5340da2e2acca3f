package main

import "github.com/sparcd-io/cli/cmd"

func main() {
	cmd.Execute()
}
