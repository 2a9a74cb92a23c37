// Package main is the entry point for the duck-access CLI binary.
package main

import (
	"os"

	cli "duck-access/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
