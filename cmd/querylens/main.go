// Package main provides the querylens CLI.
package main

import (
	"os"

	"github.com/querylens/querylens/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
