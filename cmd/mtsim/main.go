package main

import (
	"os"

	"github.com/rustyeddy/mtsim/cmd/mtsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
