package main

import (
	"os"

	"indcore/cmd/indctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
