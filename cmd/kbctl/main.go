// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the kbctl CLI, a client for the
// knowledge-index service: manage indexes, upload documents, and drive
// the background indexing job.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/kbctl/internal/secrets"
	"github.com/pdiddy/kbctl/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the kbctl CLI.
var rootCmd = &cobra.Command{
	Use:   "kbctl",
	Short: "Client for the knowledge-index service",
	Long: `kbctl manages named knowledge indexes on a remote service: create and
delete indexes, upload source documents into one, and start and observe
the long-running background indexing job.

The service builds the knowledge graph and answers queries; kbctl only
orchestrates it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./kbctl.yaml or ~/.config/kbctl/config.yaml)")
	rootCmd.PersistentFlags().String("server", "", "service base URL (overrides config)")
	rootCmd.PersistentFlags().String("state-dir", "", "client state directory (overrides config)")
}

func initConfig() {
	// A .env next to the working directory wins over the environment,
	// matching how the service itself is configured during development.
	godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("kbctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "kbctl"))
		}
	}

	viper.SetEnvPrefix("KBCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig assembles the effective client configuration: config file,
// environment, flags, and the secrets directory, in ascending priority.
func loadConfig(cmd *cobra.Command) (types.ClientConfig, error) {
	var cfg types.ClientConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}

	if server, _ := cmd.Flags().GetString("server"); server != "" {
		cfg.Backend.BaseURL = server
	}
	if dir, _ := cmd.Flags().GetString("state-dir"); dir != "" {
		cfg.State.Dir = dir
	}
	if cfg.State.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("resolving state directory: %w", err)
		}
		cfg.State.Dir = filepath.Join(home, ".local", "share", "kbctl")
	}
	if cfg.Backend.Token == "" {
		cfg.Backend.Token = loadedSecrets[secrets.APITokenKey]
	}

	cfg.Defaults()
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
