// Package main is the entry point for the econharvest reporter.
package main

import (
	"os"

	"econharvest/cmd/reporter/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
