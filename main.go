// Package main is the entry point for the querycat application
package main

import (
	"github.com/ethpandaops/querycat/cmd"
)

func main() {
	cmd.Execute()
}
