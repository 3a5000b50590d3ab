package main

import "github.com/benmeehan/findmy-agent/cmd/agent/commands"

func main() {
	commands.Execute()
}
