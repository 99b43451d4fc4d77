// Package transport delivers collector telemetry to the viewer. Two
// client implementations share one contract: a WebSocket client consuming
// the push stream and an HTTP client polling the recent-events endpoint.
// Both decode onto a bounded channel, so a slow consumer blocks the
// decode loop instead of growing memory without bound.
package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/nixlim/agentstream/internal/events"
)

// DefaultQueueSize bounds the hand-off channel between the decode loop
// and the consumer.
const DefaultQueueSize = 256

// State describes where a client is in its connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is a telemetry event source. Start launches delivery in the
// background and returns once the client is running; decoded events
// arrive on Events until Stop closes the channel. After Stop the client
// is spent and cannot be restarted.
type Client interface {
	Start(ctx context.Context) error
	Events() <-chan events.Event
	State() State
	Stop()
}

// APIError represents a non-2xx HTTP response from the collector.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// connState is the atomic lifecycle holder shared by the client
// implementations.
type connState struct {
	v atomic.Int32
}

func (c *connState) set(s State) { c.v.Store(int32(s)) }

func (c *connState) State() State { return State(c.v.Load()) }

// sleep waits for d, returning false if the context ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// NormalizeEndpoint rewrites endpoint onto the target scheme family,
// plain for ws/http and tls for wss/https. Collector URLs are commonly
// written with either family, so both are accepted everywhere.
func NormalizeEndpoint(endpoint, plain, tls string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "ws", "http":
		u.Scheme = plain
	case "wss", "https":
		u.Scheme = tls
	default:
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be ws, wss, http or https", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}
	return u, nil
}
