package main

import "github.com/nextlevelbuilder/agentrun/cmd"

func main() {
	cmd.Execute()
}
