// Package facts reads identifying facts about the local machine from facter
// and makes sure facter is installed.
package facts

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrFactUnavailable matches every *UnavailableError.
var ErrFactUnavailable = errors.New("fact unavailable")

// UnavailableError is returned when the fact tool produced no output for a
// fact, either because the tool is missing or the fact is unknown.
type UnavailableError struct {
	Name string
	Err  error // run error, may be nil
}

func (e *UnavailableError) Error() string {
	msg := "facter did not return anything for " + e.Name
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFactUnavailable) true.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrFactUnavailable
}

// Source returns a single named fact as a string.
type Source interface {
	Fact(ctx context.Context, name string) (string, error)
}

// Config holds the fact tool configuration.
type Config struct {
	Path    string        `mapstructure:"path"`    // facter binary (default "facter")
	Package string        `mapstructure:"package"` // package providing it (default "facter")
	Install bool          `mapstructure:"install"` // install the package when missing
	Timeout time.Duration `mapstructure:"timeout"` // per-invocation timeout (default 30s)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Path:    "facter",
		Package: "facter",
		Install: true,
		Timeout: 30 * time.Second,
	}
}

// runFunc executes name with args and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Facter reads facts by invoking the facter command once per fact.
type Facter struct {
	path    string
	timeout time.Duration
	logger  *zap.Logger
	run     runFunc
}

// NewFacter creates a fact source backed by the facter binary.
func NewFacter(cfg Config, logger *zap.Logger) *Facter {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := cfg.Path
	if path == "" {
		path = "facter"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Facter{path: path, timeout: timeout, logger: logger, run: runCommand}
}

// Fact runs `facter <name>` and returns its trimmed output.
func (f *Facter) Fact(ctx context.Context, name string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	out, err := f.run(cmdCtx, f.path, name)
	value := strings.TrimSpace(string(out))
	if value == "" {
		return "", &UnavailableError{Name: name, Err: err}
	}
	if err != nil {
		// facter can exit non-zero after printing a value (e.g. warnings).
		f.logger.Debug("facter exited with error", zap.String("fact", name), zap.Error(err))
	}

	f.logger.Debug("fact collected", zap.String("fact", name), zap.String("value", value))
	return value, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	return stdout.Bytes(), err
}
