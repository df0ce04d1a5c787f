// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kbctl/internal/backend"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize kbctl configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration and the service's self-description",
	RunE:  runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Backend.Token = "" // never print credentials

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	fmt.Print(string(out))

	client := backend.New(cfg.Backend)
	sc, err := client.Config(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "service unreachable: %v\n", err)
		return nil
	}
	fmt.Printf("service:\n    environment: %s\n    operations_restricted: %t\n", sc.Environment, sc.OperationsRestricted)
	return nil
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default kbctl.yaml in the current directory",
	RunE:  runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	const path = "kbctl.yaml"
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Backend.Token = ""

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	header := "# kbctl configuration. Values may also come from KBCTL_* environment\n# variables or a .env file; the bearer token belongs in .secrets/kb-api-token.\n"
	if err := os.WriteFile(path, append([]byte(header), out...), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
