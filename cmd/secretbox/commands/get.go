package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	dserrors "github.com/systmms/secretbox/internal/errors"
)

func NewGetCommand(g *Globals) *cobra.Command {
	var defaultValue string

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print one merged value",
		Long: `Run the loaders and print the merged value of KEY.

The value of the loader that ran last wins. Use --default to print a
fallback instead of failing when KEY is missing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(g)
			if err != nil {
				return err
			}
			if err := s.load(cmd.Context()); err != nil {
				return err
			}

			key := args[0]
			value, ok := s.box.Lookup(key)
			if !ok {
				if !cmd.Flags().Changed("default") {
					return dserrors.UserError{
						Message:    fmt.Sprintf("Key %s not found", key),
						Suggestion: "Run 'secretbox load' to list the loaded keys, or pass --default",
					}
				}
				value = defaultValue
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	cmd.Flags().StringVar(&defaultValue, "default", "", "Value to print when KEY is missing")

	return cmd
}
