// Package lifecycle prepares, starts and stops the services that get graded.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// dialTimeout bounds a single reachability probe.
const dialTimeout = 500 * time.Millisecond

// ErrServiceExited is returned when the service process ends before it listens.
var ErrServiceExited = errors.New("service exited before listening")

// Address joins host and port.
func Address(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// WaitForPort polls addr with exponential backoff until it accepts TCP
// connections, timeout elapses or exited is closed. exited may be nil.
func WaitForPort(ctx context.Context, addr string, timeout time.Duration, exited <-chan struct{}) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = timeout

	probe := func() error {
		select {
		case <-exited:
			return backoff.Permanent(ErrServiceExited)
		default:
		}
		dialer := net.Dialer{Timeout: dialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	}

	if err := backoff.Retry(probe, backoff.WithContext(policy, ctx)); err != nil {
		if errors.Is(err, ErrServiceExited) {
			return err
		}
		return fmt.Errorf("%s not reachable within %s: %w", addr, timeout, err)
	}
	return nil
}
