package main

import "github.com/farmhand/marketplace/cmd/farmhand/commands"

func main() {
	commands.Execute()
}
