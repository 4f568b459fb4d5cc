package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/secretbox/internal/execenv"
)

func NewExecCommand(g *Globals) *cobra.Command {
	var (
		printVars  bool
		workingDir string
		timeout    int
	)

	cmd := &cobra.Command{
		Use:   "exec -- COMMAND [ARGS...]",
		Short: "Run a command with the merged values in its environment",
		Long: `Run the loaders, promote the merged values into the environment and run
COMMAND with it. The exit code of COMMAND is passed through.

Example:
  secretbox exec --loader environ --loader awssecret -- npm start`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(g)
			if err != nil {
				return err
			}
			if err := s.load(cmd.Context()); err != nil {
				return err
			}

			if err := s.box.PromoteToEnvironment(); err != nil {
				g.logger().Warn("Some values were not promoted: %v", err)
			}

			executor := execenv.New(g.logger())
			return executor.Exec(cmd.Context(), execenv.ExecOptions{
				Command:     args,
				Environment: s.box.Values(),
				PrintVars:   printVars,
				WorkingDir:  workingDir,
				Timeout:     timeout,
				Stdin:       cmd.InOrStdin(),
				Stdout:      cmd.OutOrStdout(),
				Stderr:      cmd.ErrOrStderr(),
			})
		},
	}

	cmd.Flags().BoolVar(&printVars, "print", false, "Print variable names with masked values before running")
	cmd.Flags().StringVar(&workingDir, "working-dir", "", "Working directory for the command")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Timeout in seconds (0 for none)")

	return cmd
}
