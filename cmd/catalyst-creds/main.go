// Package main is the entry point for the catalyst-creds service.
package main

import (
	"os"

	"github.com/catalyst-dev/catalyst-creds/cmd/catalyst-creds/app"
	"github.com/catalyst-dev/catalyst-creds/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
