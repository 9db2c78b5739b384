package main

import "github.com/deploymenttheory/go-adexplorer/cmd"

func main() {
	cmd.Execute()
}
