package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/secretbox/cmd/secretbox/commands"
	dserrors "github.com/systmms/secretbox/internal/errors"
	"github.com/systmms/secretbox/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		// A failed child command already reported on its own output.
		var cmdErr dserrors.CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode != 0 && cmdErr.Message == "" {
			os.Exit(cmdErr.ExitCode)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	return newRootCommand(commands.NewGlobals()).Execute()
}

func newRootCommand(g *commands.Globals) *cobra.Command {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
		requireAll bool
		options    []string
	)

	rootCmd := &cobra.Command{
		Use:   "secretbox",
		Short: "Load configuration and secrets from many sources into one view",
		Long: `secretbox merges values from the environment, .env files, cloud secret
managers and the OS keyring. Loaders run in order; later loaders win.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize logger with parsed flags
			logger := logging.New(debug, noColor)
			logging.SetDefault(logger)
			logging.GetChannel(logging.ChannelAWSSDK).SetOutput(logger.Named(logging.ChannelAWSSDK))
			logging.GetChannel(logging.ChannelAzureSDK).SetOutput(logger.Named(logging.ChannelAzureSDK))

			// Update config with parsed values
			g.Config.Path = configFile
			g.Config.Explicit = cmd.Flags().Changed("config")
			g.Config.Logger = logger
			if cmd.Flags().Changed("require-all") {
				g.RequireAll = &requireAll
			}

			opts, err := commands.ParseOptions(options)
			if err != nil {
				return err
			}
			g.Options = opts
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "secretbox.yaml", "Config file path")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging, including SDK wire logs (secrets redacted)")
	flags.StringArrayVar(&g.Loaders, "loader", nil, "Loader type to run, in order (repeatable; overrides the config file)")
	flags.StringArrayVar(&options, "option", nil, "Loader option as key=value (repeatable)")
	flags.BoolVar(&requireAll, "require-all", true, "Fail unless every loader succeeds (false: at least one)")
	flags.StringVar(&g.MetricsTextfile, "metrics-textfile", "", "Write load metrics in Prometheus text format to this file")

	// Add commands
	rootCmd.AddCommand(
		commands.NewLoadCommand(g),
		commands.NewGetCommand(g),
		commands.NewExportCommand(g),
		commands.NewExecCommand(g),
		commands.NewLoadersCommand(g),
		commands.NewDoctorCommand(g),
	)

	return rootCmd
}
