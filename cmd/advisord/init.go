package main

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/advisord/internal/config"
	"github.com/spf13/cobra"
)

//go:embed config.example.yaml
var exampleConfig []byte

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Write a commented starter configuration to
~/.config/advisord/config.yaml with 0600 permissions.

An existing file is left alone unless --force is given.

Examples:
  advisord init
  advisord init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.EnsureConfigDir(); err != nil {
				return err
			}
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			path := filepath.Join(home, ".config", "advisord", "config.yaml")

			if !force {
				if _, err := os.Stat(path); err == nil {
					cmd.Printf("Config already exists at: %s\n", path)
					cmd.Println("Use --force to overwrite.")
					return nil
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("failed to check %s: %w", path, err)
				}
			}

			if err := os.WriteFile(path, exampleConfig, 0600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			// WriteFile keeps the mode of an existing file
			if err := os.Chmod(path, 0600); err != nil {
				return fmt.Errorf("failed to set permissions on %s: %w", path, err)
			}

			cmd.Printf("Wrote config to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	return cmd
}
