// Package main is the entry point for suggest-cli.
package main

import (
	"os"

	"github.com/okian/oppsuggest/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
