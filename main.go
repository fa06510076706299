package main

import (
	"os"

	"github.com/villagegraph/assistant/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
