package foreman

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Prerequisite prepares the machine before registration, e.g. installing
// the fact tool.
type Prerequisite interface {
	Ensure(ctx context.Context) error
}

// Module is the entry point used by the provisioning framework. It runs a
// registration only when a foreman section was supplied.
type Module struct {
	registrar *Registrar
	prereq    Prerequisite
	logger    *zap.Logger
}

// NewModule creates the module. prereq may be nil.
func NewModule(registrar *Registrar, prereq Prerequisite, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{registrar: registrar, prereq: prereq, logger: logger}
}

// Handle registers the host described by settings. A nil or empty settings
// map means the module is not configured; it returns ran == false and no
// error.
func (m *Module) Handle(ctx context.Context, settings map[string]any) (hostID int, ran bool, err error) {
	if len(settings) == 0 {
		m.logger.Info("foreman section not configured, skipping registration")
		return 0, false, nil
	}

	if m.prereq != nil {
		if err := m.prereq.Ensure(ctx); err != nil {
			return 0, true, fmt.Errorf("prepare host: %w", err)
		}
	}

	hostID, err = m.registrar.Register(ctx, settings)
	if err != nil {
		return 0, true, fmt.Errorf("register with foreman: %w", err)
	}
	return hostID, true, nil
}
