// Package main provides the entry point for the gravedigger CLI application.
package main

import (
	"os"

	"gravedigger/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
