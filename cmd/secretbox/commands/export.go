package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	dserrors "github.com/systmms/secretbox/internal/errors"
)

func NewExportCommand(g *Globals) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the merged values as a .env file",
		Long: `Run the loaders and write every merged value as a dotenv file.

The file is created with mode 0600. Use --out - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(g)
			if err != nil {
				return err
			}
			if err := s.load(cmd.Context()); err != nil {
				return err
			}

			content, err := godotenv.Marshal(s.box.Values())
			if err != nil {
				return fmt.Errorf("failed to render dotenv: %w", err)
			}

			if outPath == "-" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), content)
				return err
			}

			if err := writeSecretFile(outPath, content+"\n"); err != nil {
				return dserrors.UserError{
					Message:    fmt.Sprintf("Failed to write %s", outPath),
					Details:    err.Error(),
					Suggestion: "Check that the directory exists and is writable",
					Err:        err,
				}
			}

			g.logger().Info("Wrote %d values to %s", s.box.Len(), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", ".env", "Output file, or - for stdout")

	return cmd
}

// writeSecretFile writes content readable by the owner only, tightening the
// mode of an existing file too.
func writeSecretFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := f.Chmod(0600); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
