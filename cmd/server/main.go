package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		seed       bool
	)

	serve := func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), resolveConfigPath(configPath), seed)
	}

	root := &cobra.Command{
		Use:           "server",
		Short:         "Concert ticket sales backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default ./config.yaml when present)")
	root.Flags().BoolVar(&seed, "seed", false, "seed concerts and the default account on an empty database")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE:  serve,
	}
	serveCmd.Flags().BoolVar(&seed, "seed", false, "seed concerts and the default account on an empty database")
	root.AddCommand(serveCmd)

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), resolveConfigPath(configPath))
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Seed concerts and the default account on an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), resolveConfigPath(configPath))
		},
	})

	return root
}

// resolveConfigPath falls back to ./config.yaml when no path was given and
// that file exists.
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return defaultConfigPath
}
