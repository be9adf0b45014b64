// Package main is the entry point for the deltastage application
package main

import (
	"github.com/ethpandaops/deltastage/cmd"
)

func main() {
	cmd.Execute()
}
