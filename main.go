package main

import (
	"os"

	"github.com/repokit/repokit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
