package main

import (
	"os"

	"github.com/soundprediction/harmony/cmd/harmony"
)

func main() {
	if err := harmony.Execute(); err != nil {
		os.Exit(1)
	}
}
