package main

import (
	"os"

	"github.com/tradelog/journal-engine/cmd/tradelog/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
