package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nixlim/agentstream/internal/events"
)

const (
	defaultPollInterval = time.Second
	defaultPollLimit    = 10
	pollRequestTimeout  = 10 * time.Second

	// After a failed poll, back off instead of hammering a down server.
	pollErrorWait = 5 * time.Second
)

// PollClient fetches the collector's recent-events endpoint on a fixed
// interval. It serves collectors without a push surface; the overlap
// between consecutive polls is separated downstream by sequence id.
type PollClient struct {
	base      string
	interval  time.Duration
	limit     int
	errorWait time.Duration
	client    *http.Client
	queue     chan events.Event
	log       *zap.Logger
	state     connState
	done      chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
}

// PollOption configures a PollClient.
type PollOption func(*PollClient)

// WithPollInterval sets the time between polls.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *PollClient) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithPollLimit sets how many recent events each poll requests.
func WithPollLimit(n int) PollOption {
	return func(c *PollClient) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) PollOption {
	return func(c *PollClient) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewPollClient creates a polling client for endpoint. The endpoint may
// be the WebSocket URL; only its host matters, polling always hits
// /events on it.
func NewPollClient(endpoint string, queueSize int, log *zap.Logger, opts ...PollOption) *PollClient {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &PollClient{
		base:      endpoint,
		interval:  defaultPollInterval,
		limit:     defaultPollLimit,
		errorWait: pollErrorWait,
		client:    &http.Client{Timeout: pollRequestTimeout},
		queue:     make(chan events.Event, queueSize),
		log:       log,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PollClient) Events() <-chan events.Event { return c.queue }

func (c *PollClient) State() State { return c.state.State() }

// Start validates the endpoint and launches the poll loop.
func (c *PollClient) Start(ctx context.Context) error {
	u, err := NormalizeEndpoint(c.base, "http", "https")
	if err != nil {
		return err
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	c.base = strings.TrimSuffix(u.String(), "/")

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Stop ends polling and blocks until the events channel is closed. An
// in-flight request is aborted through its context.
func (c *PollClient) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel == nil {
		// Never started.
		return
	}
	cancel()
	<-c.done
}

func (c *PollClient) run(ctx context.Context) {
	defer func() {
		c.state.set(StateClosed)
		close(c.queue)
		close(c.done)
	}()

	// Poll immediately, then on the interval.
	for {
		if ctx.Err() != nil {
			return
		}

		if c.state.State() != StateStreaming {
			c.state.set(StateConnecting)
		}

		if err := c.poll(ctx); err != nil {
			c.state.set(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("poll failed", zap.String("base", c.base), zap.Error(err))
			if !sleep(ctx, c.errorWait) {
				return
			}
			continue
		}

		c.state.set(StateStreaming)
		if !sleep(ctx, c.interval) {
			return
		}
	}
}

// poll performs one GET /events round trip, pushing every decoded event
// to the consumer.
func (c *PollClient) poll(ctx context.Context) error {
	url := fmt.Sprintf("%s/events?limit=%d", c.base, c.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var raws []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return fmt.Errorf("decoding poll response: %w", err)
	}

	for _, raw := range raws {
		e, err := events.Parse(raw)
		if err != nil {
			c.log.Warn("skipping undecodable event", zap.Error(err))
			continue
		}
		select {
		case c.queue <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
