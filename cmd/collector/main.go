// Package main is the entry point for the econharvest collector.
package main

import (
	"os"

	"econharvest/cmd/collector/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
