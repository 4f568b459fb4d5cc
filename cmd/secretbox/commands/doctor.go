package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	dserrors "github.com/systmms/secretbox/internal/errors"
	"github.com/systmms/secretbox/internal/execenv"
	"github.com/systmms/secretbox/internal/loaders"
	"github.com/systmms/secretbox/pkg/loader"
)

func NewDoctorCommand(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the loader setup without loading secrets",
		Long: `Show the loader sequence, where every option it needs comes from, and
verify AWS credentials with STS GetCallerIdentity when an AWS loader is
configured. No secret is fetched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			policy := "require all"
			if !s.requireAll {
				policy = "require any"
			}
			_, _ = fmt.Fprintf(out, "Config:  %s\n", g.Config.Path)
			_, _ = fmt.Fprintf(out, "Loaders: %s\n", strings.Join(s.types, ", "))
			_, _ = fmt.Fprintf(out, "Policy:  %s\n\n", policy)

			printOptionSources(out, s.types, s.opts, g.LookupEnv)

			missing := missingOptions(s.types, s.opts, g.LookupEnv)

			var awsErr error
			if usesAWS(s.types) {
				identity, err := loaders.VerifyAWSIdentity(cmd.Context(), s.opts, g.LookupEnv, g.STSFactory)
				_, _ = fmt.Fprintln(out)
				if err != nil {
					_, _ = fmt.Fprintf(out, "AWS:     ✗ %v\n", err)
					awsErr = err
				} else {
					_, _ = fmt.Fprintf(out, "AWS:     ✓ %s (account %s, region %s)\n", identity.ARN, identity.Account, identity.Region)
				}
			}

			if len(missing) > 0 || awsErr != nil {
				var problems []string
				if len(missing) > 0 {
					problems = append(problems, "missing options: "+strings.Join(missing, ", "))
				}
				if awsErr != nil {
					problems = append(problems, "AWS credentials check failed")
				}
				suggestion := "Set the missing options with --option key=value or the listed environment variables"
				if errors.Is(awsErr, loader.ErrCredentialsMissing) {
					suggestion = dserrors.LoaderSuggestion(loaders.AWSSecretName)
				}
				return dserrors.UserError{
					Message:    "Doctor found problems: " + strings.Join(problems, "; "),
					Suggestion: suggestion,
				}
			}

			_, _ = fmt.Fprintln(out, "\nNo problems found")
			return nil
		},
	}

	return cmd
}

// requiredKeys are the options without which a loader cannot fetch.
func requiredKeys(types []string) []string {
	required := map[string][]string{
		loaders.AWSSecretName:         {loader.OptAWSStoreName, loader.OptAWSRegionName},
		loaders.AWSParameterStoreName: {loader.OptAWSStoreName, loader.OptAWSRegionName},
		loaders.GCPSecretName:         {loader.OptGCPProjectID, loader.OptGCPSecretName},
		loaders.AzureKeyVaultName:     {loader.OptAzureVaultURL, loader.OptAzureSecretName},
		loaders.KeyringName:           {loader.OptKeyringAccount},
		loaders.AkeylessName:          {loader.OptAkeylessAccessID, loader.OptAkeylessAccessKey, loader.OptAkeylessSecretPath},
	}

	seen := make(map[string]bool)
	var keys []string
	for _, t := range types {
		for _, key := range required[t] {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// missingOptions returns the required options that resolve to nothing. A
// full projects/... secret name makes the GCP project redundant.
func missingOptions(types []string, opts loader.Options, lookup loader.LookupFunc) []string {
	var missing []string
	for _, key := range requiredKeys(types) {
		if key == loader.OptGCPProjectID {
			if name, _ := opts.ResolveEnv(loader.OptGCPSecretName, lookup); strings.HasPrefix(name, "projects/") {
				continue
			}
		}
		if value, _ := opts.ResolveEnv(key, lookup); value == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func usesAWS(types []string) bool {
	for _, t := range types {
		if t == loaders.AWSSecretName || t == loaders.AWSParameterStoreName {
			return true
		}
	}
	return false
}

// secretOptions are masked when doctor prints option values.
var secretOptions = map[string]bool{
	loader.OptAWSSecretAccessKey: true,
	loader.OptAkeylessAccessKey:  true,
}

func printOptionSources(out io.Writer, types []string, opts loader.Options, lookup loader.LookupFunc) {
	seen := make(map[string]bool)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "OPTION\tSOURCE\tVALUE\n")
	for _, t := range types {
		for _, key := range loaderOptionKeys[t] {
			if seen[key] {
				continue
			}
			seen[key] = true

			source := opts.Origin(key, lookup)
			value, _ := opts.ResolveEnv(key, lookup)
			switch {
			case source == "":
				source, value = "unset", "-"
			case secretOptions[key]:
				value = execenv.MaskValue(value)
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", key, source, value)
		}
	}
	_ = w.Flush()
}
