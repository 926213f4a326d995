package main

import (
	"os"

	"github.com/spigell/love-machine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
