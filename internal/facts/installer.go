package facts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ErrNoPackageManager is returned when none of the supported package
// managers is on PATH.
var ErrNoPackageManager = errors.New("no supported package manager found")

// packageManager is an install command that takes package names as trailing
// arguments.
type packageManager struct {
	name string
	args []string
}

// Tried in order; dnf before yum so newer RHEL releases skip the shim.
var packageManagers = []packageManager{
	{name: "dnf", args: []string{"install", "-y", "-q"}},
	{name: "yum", args: []string{"install", "-y", "-q"}},
	{name: "apt-get", args: []string{"install", "-y", "-q"}},
	{name: "zypper", args: []string{"--non-interactive", "install"}},
}

// Installer makes sure a binary is present, installing its package with the
// system package manager when it is not.
type Installer struct {
	binary   string
	pkg      string
	logger   *zap.Logger
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// NewInstaller creates an installer for binary, provided by package pkg.
func NewInstaller(binary, pkg string, logger *zap.Logger) *Installer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Installer{
		binary:   binary,
		pkg:      pkg,
		logger:   logger,
		lookPath: exec.LookPath,
		run:      runInstall,
	}
}

// Ensure is a no-op when the binary is already on PATH.
func (i *Installer) Ensure(ctx context.Context) error {
	if _, err := i.lookPath(i.binary); err == nil {
		return nil
	}

	for _, pm := range packageManagers {
		if _, err := i.lookPath(pm.name); err != nil {
			continue
		}
		i.logger.Info("installing package",
			zap.String("package", i.pkg),
			zap.String("package_manager", pm.name),
		)
		args := append(append([]string{}, pm.args...), i.pkg)
		if err := i.run(ctx, pm.name, args...); err != nil {
			return fmt.Errorf("install %s with %s: %w", i.pkg, pm.name, err)
		}
		if _, err := i.lookPath(i.binary); err != nil {
			return fmt.Errorf("%s still not found after installing %s: %w", i.binary, i.pkg, err)
		}
		return nil
	}
	return fmt.Errorf("install %s: %w", i.pkg, ErrNoPackageManager)
}

func runInstall(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
