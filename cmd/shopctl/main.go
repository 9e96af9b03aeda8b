package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ethioshop.com/app/internal/app"
	"ethioshop.com/app/internal/config"
	"ethioshop.com/app/internal/logging"
)

var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "shopctl",
		Short:         "Operator tooling for the ethioshop order and payment service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(ordersCmd())
	root.AddCommand(productsCmd())
	root.AddCommand(webhookCmd())
	root.AddCommand(tokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadApp builds the same service graph the web server runs with. Callers
// must Close it.
func loadApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, sync := logging.New(logging.Options{Level: cfg.LogLevel, Format: "console", Service: "shopctl"})
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = sync()
		return nil, nil, err
	}
	return a, func() {
		_ = a.Close()
		_ = sync()
	}, nil
}
