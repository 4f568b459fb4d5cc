package errors

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// loaderSuggestions tell the user what each loader needs to succeed.
var loaderSuggestions = map[string]string{
	"environ":           "The environment loader cannot fail; check the other loaders",
	"envfile":           "Create the file or point --option filename=PATH (or SECRETBOX_ENV_FILE) at it",
	"awssecret":         "Set AWS_SSTORE_NAME and AWS_REGION_NAME, configure credentials with 'aws configure' or AWS_PROFILE, and check IAM permission secretsmanager:GetSecretValue",
	"awsparameterstore": "Set AWS_SSTORE_NAME to a parameter path, configure AWS credentials, and check IAM permission ssm:GetParametersByPath",
	"gcpsecret":         "Set GOOGLE_CLOUD_PROJECT and GCP_SECRET_NAME, then run 'gcloud auth application-default login'",
	"azurekeyvault":     "Set AZURE_KEYVAULT_URL and AZURE_SECRET_NAME, then run 'az login'",
	"keyring":           "Set SECRETBOX_KEYRING_ACCOUNT and store the item in the OS keyring",
	"akeyless":          "Set AKEYLESS_SECRET_PATH, AKEYLESS_ACCESS_ID and AKEYLESS_ACCESS_KEY, and check the access role can read the item",
}

// LoaderSuggestion returns a hint for making the named loader succeed.
func LoaderSuggestion(loaderName string) string {
	if s, ok := loaderSuggestions[loaderName]; ok {
		return s
	}
	return "Run with --debug to see why the loader failed"
}

// LoadFailure describes an aggregated load that did not meet its policy.
func LoadFailure(failed []string) error {
	if len(failed) == 0 {
		return UserError{Message: "No loader produced values"}
	}

	suggestions := make([]string, 0, len(failed))
	for _, name := range failed {
		suggestions = append(suggestions, fmt.Sprintf("%s: %s", name, LoaderSuggestion(name)))
	}

	return UserError{
		Message:    fmt.Sprintf("Loading secrets failed for: %s", strings.Join(failed, ", ")),
		Details:    "Each failing loader logged its reason above; add --debug for more",
		Suggestion: strings.Join(suggestions, "\n         "),
	}
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	if !errors.Is(err, exec.ErrNotFound) {
		return err
	}
	return CommandError{
		Command:    command,
		Message:    "command not found",
		Suggestion: fmt.Sprintf("Make sure '%s' is installed and in your PATH", command),
	}
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	// Already a user-friendly error
	var userErr UserError
	var configErr ConfigError
	var commandErr CommandError
	if errors.As(err, &userErr) || errors.As(err, &configErr) || errors.As(err, &commandErr) {
		return err
	}

	// Simplify common technical errors
	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	// Return original error if we can't simplify it
	return err
}
