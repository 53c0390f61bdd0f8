// Package main is the entry point for the statsql application
package main

import (
	"github.com/ethpandaops/statsql/cmd"
)

func main() {
	cmd.Execute()
}
