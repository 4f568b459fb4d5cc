package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/secretbox/internal/execenv"
)

type loadReport struct {
	OK      bool               `json:"ok"`
	Loaders []loaderRunSummary `json:"loaders"`
	Keys    []string           `json:"keys"`
}

type loaderRunSummary struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Values     int    `json:"values"`
	DurationMs int64  `json:"duration_ms"`
}

func NewLoadCommand(g *Globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Run the loaders and show what they found",
		Long: `Run every configured loader in order and print the merged keys.

Values are masked. The command exits non-zero when the load does not meet
the success policy (--require-all).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(g)
			if err != nil {
				return err
			}

			loadErr := s.load(cmd.Context())
			out := cmd.OutOrStdout()

			if asJSON {
				report := loadReport{OK: loadErr == nil, Keys: s.box.Keys()}
				for _, r := range s.box.Results() {
					report.Loaders = append(report.Loaders, loaderRunSummary{
						Name:       r.Loader,
						OK:         r.OK,
						Values:     r.Values,
						DurationMs: r.Duration.Milliseconds(),
					})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("failed to encode report: %w", err)
				}
				return loadErr
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "LOADER\tSTATUS\tVALUES\n")
			for _, r := range s.box.Results() {
				status := "ok"
				if !r.OK {
					status = "failed"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", r.Loader, status, r.Values)
			}
			_ = w.Flush()
			_, _ = fmt.Fprintln(out)

			execenv.PrintEnvironment(out, s.box.Values())
			return loadErr
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON report with key names only")

	return cmd
}
