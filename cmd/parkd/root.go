package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"parking-gate-backend/config"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "parkd",
		Short:         "parkd - parking gate decision service",
		Long:          "Turns plate detections at parking lot gates into entry and exit sessions.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml" // Default path for local development
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", defaultPath, "path to the YAML config file (env CONFIG_PATH)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))

	return cmd
}

func newLogger() *log.Logger {
	return log.New(os.Stdout, "parkd ", log.LstdFlags)
}

func loadConfig(opts *rootOptions, logger *log.Logger) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger.Printf("configuration loaded successfully from %s", opts.ConfigPath)
	return cfg, nil
}
