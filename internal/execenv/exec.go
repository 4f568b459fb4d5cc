package execenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	dserrors "github.com/systmms/secretbox/internal/errors"
	"github.com/systmms/secretbox/internal/logging"
)

// Executor handles running commands with the loaded values in their environment
type Executor struct {
	logger  *logging.Logger
	environ func() []string
}

// New creates a new executor
func New(logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{
		logger:  logger,
		environ: os.Environ,
	}
}

// ExecOptions configures command execution
type ExecOptions struct {
	Command       []string          // Command and arguments to run
	Environment   map[string]string // Loaded values to set
	AllowOverride bool              // Existing env vars win over loaded values
	PrintVars     bool              // Print variable names with masked values
	WorkingDir    string            // Working directory for the command
	Timeout       int               // Timeout in seconds (0 for no timeout)

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Exec runs a command with the provided environment variables. A non-zero
// exit of the child is returned as a CommandError carrying its exit code.
func (e *Executor) Exec(ctx context.Context, options ExecOptions) error {
	if len(options.Command) == 0 {
		return dserrors.UserError{
			Message:    "No command specified",
			Suggestion: "Provide a command after -- (e.g., secretbox exec -- npm start)",
		}
	}

	// Apply timeout if specified
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(options.Timeout)*time.Second)
		defer cancel()
	}

	// Validate command exists
	cmdName := options.Command[0]
	if _, err := exec.LookPath(cmdName); err != nil {
		return dserrors.WrapCommandNotFound(cmdName, err)
	}

	stdout := writerOr(options.Stdout, os.Stdout)
	if options.PrintVars {
		PrintEnvironment(stdout, options.Environment)
	}

	cmd := exec.CommandContext(ctx, cmdName, options.Command[1:]...)
	cmd.Env = e.buildEnvironment(options.Environment, options.AllowOverride)
	cmd.Stdout = stdout
	cmd.Stderr = writerOr(options.Stderr, os.Stderr)
	cmd.Stdin = options.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}

	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}

	e.logger.Debug("Executing command: %s", strings.Join(options.Command, " "))
	e.logger.Debug("Environment variables set: %d", len(options.Environment))

	if err := cmd.Run(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return dserrors.CommandError{
				Command:  strings.Join(options.Command, " "),
				ExitCode: exitError.ExitCode(),
			}
		}
		return dserrors.CommandError{
			Command:    strings.Join(options.Command, " "),
			Message:    err.Error(),
			Suggestion: "Check the command output above for details",
		}
	}

	return nil
}

// buildEnvironment creates the environment slice for the child process
func (e *Executor) buildEnvironment(loaded map[string]string, allowOverride bool) []string {
	envMap := make(map[string]string)
	for _, entry := range e.environ() {
		key, value, ok := strings.Cut(entry, "=")
		if ok && key != "" {
			envMap[key] = value
		}
	}

	for key, value := range loaded {
		if allowOverride {
			if _, exists := envMap[key]; exists {
				continue
			}
		}
		envMap[key] = value
	}

	result := make([]string, 0, len(envMap))
	for key, value := range envMap {
		result = append(result, fmt.Sprintf("%s=%s", key, value))
	}

	// Sort for consistent ordering (helps with debugging)
	sort.Strings(result)

	return result
}

// PrintEnvironment writes the variable names with masked values to w.
func PrintEnvironment(w io.Writer, environment map[string]string) {
	if len(environment) == 0 {
		fmt.Fprintln(w, "No values loaded")
		return
	}

	fmt.Fprintf(w, "Loaded %d values:\n", len(environment))

	keys := make([]string, 0, len(environment))
	for key := range environment {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(w, "  %s=%s\n", key, MaskValue(environment[key]))
	}
	fmt.Fprintln(w)
}

// MaskValue masks a secret value for display
func MaskValue(value string) string {
	if len(value) == 0 {
		return "(empty)"
	}

	if len(value) <= 3 {
		return strings.Repeat("*", len(value))
	}

	if len(value) <= 8 {
		return value[:1] + strings.Repeat("*", len(value)-2) + value[len(value)-1:]
	}

	return value[:3] + strings.Repeat("*", 8) + value[len(value)-2:]
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
