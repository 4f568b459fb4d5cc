package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/secretbox/internal/loaders"
	"github.com/systmms/secretbox/pkg/loader"
)

// loaderOptionKeys lists the options each built-in loader reads.
var loaderOptionKeys = map[string][]string{
	loaders.EnvironName:           nil,
	loaders.EnvFileName:           {loader.OptFilename},
	loaders.AWSSecretName:         {loader.OptAWSStoreName, loader.OptAWSRegionName, loader.OptAWSEndpointURL, loader.OptAWSAccessKeyID, loader.OptAWSSecretAccessKey},
	loaders.AWSParameterStoreName: {loader.OptAWSStoreName, loader.OptAWSRegionName, loader.OptAWSEndpointURL, loader.OptAWSAccessKeyID, loader.OptAWSSecretAccessKey},
	loaders.GCPSecretName:         {loader.OptGCPProjectID, loader.OptGCPSecretName, loader.OptGCPSecretVersion, loader.OptGCPCredentialsFile},
	loaders.AzureKeyVaultName:     {loader.OptAzureVaultURL, loader.OptAzureSecretName, loader.OptAzureSecretVersion},
	loaders.KeyringName:           {loader.OptKeyringService, loader.OptKeyringAccount},
	loaders.AkeylessName:          {loader.OptAkeylessSecretPath, loader.OptAkeylessAccessID, loader.OptAkeylessAccessKey, loader.OptAkeylessGatewayURL},
}

func NewLoadersCommand(g *Globals) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "loaders",
		Short: "List available loader types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := loaders.NewRegistry(g.LoaderOptions...)
			out := cmd.OutOrStdout()

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "TYPE\tDESCRIPTION\n")
			_, _ = fmt.Fprintf(w, "----\t-----------\n")
			for _, loaderType := range registry.Types() {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", loaderType, getLoaderDescription(loaderType))
			}
			_ = w.Flush()

			if verbose {
				_, _ = fmt.Fprintln(out, "\nOptions:")
				for _, loaderType := range registry.Types() {
					_, _ = fmt.Fprintf(out, "\n%s:\n", loaderType)
					keys := loaderOptionKeys[loaderType]
					if len(keys) == 0 {
						_, _ = fmt.Fprintln(out, "  (none)")
						continue
					}
					for _, key := range keys {
						line := "  " + key
						if envs := loader.EnvFallbacks[key]; len(envs) > 0 {
							line += " (env: " + strings.Join(envs, ", ") + ")"
						}
						_, _ = fmt.Fprintln(out, line)
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show the options each loader reads")

	return cmd
}

// getLoaderDescription returns a description for a loader type
func getLoaderDescription(loaderType string) string {
	descriptions := map[string]string{
		loaders.EnvironName:           "Process environment variables",
		loaders.EnvFileName:           "Dotenv file (.env)",
		loaders.AWSSecretName:         "AWS Secrets Manager JSON secret",
		loaders.AWSParameterStoreName: "AWS Systems Manager Parameter Store path",
		loaders.GCPSecretName:         "Google Cloud Secret Manager JSON secret",
		loaders.AzureKeyVaultName:     "Azure Key Vault JSON secret",
		loaders.KeyringName:           "OS native keyring (macOS Keychain, Linux Secret Service, Windows Credential Manager)",
		loaders.AkeylessName:          "Akeyless static JSON secret",
	}

	if desc, exists := descriptions[loaderType]; exists {
		return desc
	}
	return "No description available"
}
