// Package main is the openapi-extract command entry point.
package main

import (
	"os"

	"github.com/example/openapi-extract/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
