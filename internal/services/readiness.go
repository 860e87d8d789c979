package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"stackpilot/pkg/logging"
)

// NetProbe checks readiness over HTTP, or by dialling the port when the
// spec has no readiness URL. Any HTTP response counts as ready.
type NetProbe struct {
	Client      *http.Client
	DialTimeout time.Duration
}

// NewNetProbe creates a probe with short per-attempt timeouts.
func NewNetProbe() *NetProbe {
	return &NetProbe{
		Client:      &http.Client{Timeout: 2 * time.Second},
		DialTimeout: time.Second,
	}
}

// Ready implements ReadinessProbe.
func (p *NetProbe) Ready(ctx context.Context, spec Spec) error {
	if spec.ReadinessURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.ReadinessURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := p.Client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
	if spec.Port == 0 {
		return backoff.Permanent(errors.New("no readiness URL or port"))
	}
	d := net.Dialer{Timeout: p.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", localAddr(spec.Port))
	if err != nil {
		return err
	}
	return conn.Close()
}

func localAddr(port int) string {
	return net.JoinHostPort("localhost", strconv.Itoa(port))
}

// PortInUse reports whether something accepts connections on port.
func PortInUse(port int) bool {
	if port <= 0 {
		return false
	}
	conn, err := net.DialTimeout("tcp", localAddr(port), 300*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// waitReady polls probe with exponential backoff until it succeeds, the
// timeout elapses or the process exits.
func waitReady(ctx context.Context, probe ReadinessProbe, mp *ManagedProcess, timeout, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = 5 * interval
	if b.MaxInterval < time.Second {
		b.MaxInterval = time.Second
	}

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		if mp.Exited() {
			return struct{}{}, backoff.Permanent(fmt.Errorf("process exited before becoming ready (see %s)", mp.LogPath))
		}
		return struct{}{}, probe.Ready(ctx, mp.Spec)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			logging.Debug("Supervisor", "%s not ready yet (%v), retrying in %s", mp.Name(), err, next.Round(time.Millisecond))
		}),
	)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("not ready after %s (%d attempts): %w", timeout, attempts, err)
		}
		return err
	}
	return nil
}
