package lifecycle

import (
	"context"
	"time"

	"github.com/huangsam/apigrade/internal/contract"
	"go.uber.org/zap"
)

// AttachedApp is a service that is already running. Only Start does work:
// it waits until the service is reachable.
type AttachedApp struct {
	target  contract.Target
	addr    string
	timeout time.Duration
}

var _ contract.Lifecycle = &AttachedApp{} // Compile-time check

// NewAttachedApp creates a lifecycle for a running service at host:port.
func NewAttachedApp(target contract.Target, host string, port int, timeout time.Duration) *AttachedApp {
	return &AttachedApp{target: target, addr: Address(host, port), timeout: timeout}
}

// Name implements the Lifecycle interface.
func (a *AttachedApp) Name() string { return a.target.Name }

// ProjectID implements the Lifecycle interface.
func (a *AttachedApp) ProjectID() string { return a.target.ProjectID }

// FetchRepo implements the Lifecycle interface.
func (a *AttachedApp) FetchRepo(context.Context) error { return nil }

// ValidateMainFiles implements the Lifecycle interface.
func (a *AttachedApp) ValidateMainFiles(context.Context) error { return nil }

// InstallDependencies implements the Lifecycle interface.
func (a *AttachedApp) InstallDependencies(context.Context) error { return nil }

// Start implements the Lifecycle interface.
func (a *AttachedApp) Start(ctx context.Context) error {
	return WaitForPort(ctx, a.addr, a.timeout, nil)
}

// Stop implements the Lifecycle interface.
func (a *AttachedApp) Stop(context.Context) error { return nil }

// New picks the lifecycle and port controller for a target from the config.
// Attached services never get their port freed.
func New(cfg *contract.Config, target contract.Target, port int, git contract.GitClient, logger *zap.Logger) (contract.Lifecycle, contract.PortController) {
	if cfg.Attach {
		return NewAttachedApp(target, cfg.Host, port, cfg.StartupTimeout), NopPorts{}
	}
	app := NewLocalApp(target, git, LocalOptions{
		WorkDir:        cfg.WorkDir,
		InstallCmd:     cfg.InstallCmd,
		StartCmd:       cfg.StartCmd,
		RequiredFiles:  cfg.RequiredFiles,
		Host:           cfg.Host,
		Port:           port,
		StartupTimeout: cfg.StartupTimeout,
		Logger:         logger,
	})
	return app, NewGopsutilPorts(logger)
}
