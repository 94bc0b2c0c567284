package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"meshport/internal/logging"
)

// DefaultBinary is the converter executable looked up on PATH.
const DefaultBinary = "mml-avatar-converter"

const maxLoggedOutput = 4096

var commandContext = exec.CommandContext

// Option configures the CLI converter.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary = strings.TrimSpace(binary); binary != "" {
			c.binary = binary
		}
	}
}

// WithArgs prepends fixed arguments before the per-request flags.
func WithArgs(args ...string) Option {
	return func(c *CLI) {
		c.args = append([]string(nil), args...)
	}
}

// WithLogger attaches a logger for converter output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CLI) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// CLI runs the converter as a child process.
type CLI struct {
	binary string
	args   []string
	logger *slog.Logger
}

var _ Converter = (*CLI)(nil)

// NewCLI constructs a CLI converter using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: DefaultBinary, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(cli)
	}
	cli.logger = logging.NewComponentLogger(cli.logger, "converter")
	return cli
}

// Binary reports the configured executable.
func (c *CLI) Binary() string {
	return c.binary
}

// Args builds the full argument list for req.
func (c *CLI) Args(req Request) []string {
	args := append([]string(nil), c.args...)
	args = append(args, "--file", req.InputPath, "--output", req.OutputPath)
	if req.Merge {
		args = append(args, "--merge")
	}
	return args
}

// Convert runs the converter in req.WorkDir and checks that it produced a
// non-empty output file.
func (c *CLI) Convert(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.InputPath) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return errors.New("output path required")
	}
	if strings.TrimSpace(req.WorkDir) == "" {
		return errors.New("work directory required")
	}

	cmd := commandContext(ctx, c.binary, c.Args(req)...) //nolint:gosec
	cmd.Dir = req.WorkDir
	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		c.logger.Debug("converter output",
			logging.String("binary", c.binary),
			logging.String("output", truncate(string(output), maxLoggedOutput)),
		)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s interrupted: %w", c.binary, ctxErr)
		}
		return fmt.Errorf("%s failed: %w", c.binary, err)
	}
	return VerifyOutput(req.OutputPath)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
