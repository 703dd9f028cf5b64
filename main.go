package main

import (
	"os"

	"github.com/audiencer/audiencer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
