package main

import (
	"os"

	"ledgerlink/cmd/ledgerlink/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
