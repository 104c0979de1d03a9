package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluxorio/todo-service/pkg/app"
	"github.com/fluxorio/todo-service/pkg/config"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

type rootOptions struct {
	configPath string
	port       int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "todo-service",
		Short:         "In-memory todo list HTTP service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to a YAML or JSON config file")
	rootCmd.PersistentFlags().IntVarP(&opts.port, "port", "p", 0,
		"listen port (overrides config file, TODO_PORT and PORT)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(opts))
	return rootCmd
}

// load resolves the effective config; an explicit --port wins over all
// other sources.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadService(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = o.port
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "todo-service %s\n", version)
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return config.WriteYAML(cmd.OutOrStdout(), cfg)
		},
	}
}
