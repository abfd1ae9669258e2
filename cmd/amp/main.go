// Package main provides the entry point for the amp proxy.
package main

import (
	"os"

	"github.com/agentmemory/amp/cmd/amp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
