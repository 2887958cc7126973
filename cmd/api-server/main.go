package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rxpartners/crm-backend/pkg/app/api"
	"github.com/rxpartners/crm-backend/pkg/config"
	"github.com/rxpartners/crm-backend/pkg/environment"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional, environment variables override it)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := api.NewServer(cfg).Run(); err != nil {
		if environment.IsConfigError(err) {
			fmt.Fprintf(os.Stderr, "Refusing to start: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "API server failed: %v\n", err)
		}
		os.Exit(1)
	}
}
