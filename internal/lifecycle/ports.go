package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/huangsam/apigrade/internal/contract"
	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// releaseTimeout bounds how long Free waits for killed listeners to go away.
const releaseTimeout = 5 * time.Second

// GopsutilPorts frees ports by killing the processes listening on them.
// The current process is never killed.
type GopsutilPorts struct {
	logger *zap.Logger
}

var _ contract.PortController = &GopsutilPorts{} // Compile-time check

// NewGopsutilPorts creates a port controller backed by the process table.
func NewGopsutilPorts(logger *zap.Logger) *GopsutilPorts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GopsutilPorts{logger: logger}
}

// Free implements the PortController interface.
func (g *GopsutilPorts) Free(ctx context.Context, port int) error {
	pids, err := listeners(ctx, port)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return nil
	}

	var errs []error
	for _, pid := range pids {
		g.logger.Info("killing listener", zap.Int("port", port), zap.Int32("pid", pid))
		if err := killTree(ctx, pid); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = releaseTimeout
	return backoff.Retry(func() error {
		remaining, err := listeners(ctx, port)
		if err != nil {
			return backoff.Permanent(err)
		}
		if len(remaining) > 0 {
			return fmt.Errorf("port %d still held by pid %v", port, remaining)
		}
		return nil
	}, backoff.WithContext(policy, ctx))
}

// listeners returns the pids of other processes listening on port.
func listeners(ctx context.Context, port int) ([]int32, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, fmt.Errorf("failed to list tcp connections: %w", err)
	}
	self := int32(os.Getpid())
	seen := map[int32]struct{}{}
	var pids []int32
	for _, c := range conns {
		if c.Status != "LISTEN" || c.Laddr.Port != uint32(port) || c.Pid <= 0 || c.Pid == self {
			continue
		}
		if _, dup := seen[c.Pid]; dup {
			continue
		}
		seen[c.Pid] = struct{}{}
		pids = append(pids, c.Pid)
	}
	return pids, nil
}

// killTree kills a process and all of its descendants, children first.
func killTree(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to inspect pid %d: %w", pid, err)
	}

	children, err := p.ChildrenWithContext(ctx)
	if err == nil {
		for _, child := range children {
			if err := killTree(ctx, child.Pid); err != nil {
				return err
			}
		}
	}

	if err := p.KillWithContext(ctx); err != nil {
		if running, rerr := p.IsRunningWithContext(ctx); rerr == nil && !running {
			return nil
		}
		return fmt.Errorf("failed to kill pid %d: %w", pid, err)
	}
	return nil
}

// NopPorts leaves ports alone. It serves attached services and tests.
type NopPorts struct{}

var _ contract.PortController = NopPorts{} // Compile-time check

// Free implements the PortController interface.
func (NopPorts) Free(context.Context, int) error {
	return nil
}
