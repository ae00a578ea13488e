package main

import (
	"github.com/snapstore-db/snapstore/cmd/snapstore/commands"
)

func main() {
	commands.Execute()
}
