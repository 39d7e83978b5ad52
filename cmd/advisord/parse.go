package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fyrsmithlabs/advisord/internal/recommendation"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a coordinator reply into JSON",
		Long: `Parse a saved coordinator reply (markdown) and print the structured
recommendation as JSON. Reads stdin when no file or "-" is given.

Examples:
  advisord parse reply.md
  pbpaste | advisord parse`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if len(args) == 0 || args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
			} else {
				raw, err = os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read file %s: %w", args[0], err)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(recommendation.Parse(string(raw)))
		},
	}
}
