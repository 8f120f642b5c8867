// Package main is the entry point for the discovery status API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/creatorpulse/discovery/internal/app"
)

// version can be set at build time via -ldflags
var version = "dev"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yml", "Path to configuration file")
	flag.Parse()

	application, err := app.NewAPI(app.Options{
		ConfigPath: configPath,
		Version:    version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize API: %v\n", err)
		os.Exit(1)
	}

	if runErr := application.Run(context.Background()); runErr != nil {
		fmt.Fprintf(os.Stderr, "API error: %v\n", runErr)
		os.Exit(1)
	}
}
