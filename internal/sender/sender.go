// Package sender posts events to a collector. It is the producer half of
// the ingest surface, wrapped by "agentstream send" and usable as a
// library from instrumentation hooks.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nixlim/agentstream/internal/events"
	"github.com/nixlim/agentstream/internal/transport"
)

const defaultTimeout = 10 * time.Second

// Sender posts events to a collector's ingest endpoint.
type Sender struct {
	base   string
	client *http.Client
}

// Option configures a Sender.
type Option func(*Sender)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// New creates a Sender for the given collector endpoint. Both ws:// and
// http:// forms are accepted since producers usually share the viewer's
// endpoint setting; only the host part is used.
func New(endpoint string, opts ...Option) (*Sender, error) {
	u, err := transport.NormalizeEndpoint(endpoint, "http", "https")
	if err != nil {
		return nil, err
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""

	s := &Sender{
		base:   strings.TrimSuffix(u.String(), "/"),
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// wireRecord is the ingest body, the inverse of the viewer-side decoder.
type wireRecord struct {
	Timestamp string         `json:"timestamp"`
	App       string         `json:"app"`
	SessionID string         `json:"session_id,omitempty"`
	EventType string         `json:"event_type"`
	Summary   string         `json:"summary,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Send posts one event and returns the id the collector assigned to it.
func (s *Sender) Send(ctx context.Context, e events.Event) (int64, error) {
	if e.Source == "" {
		return 0, fmt.Errorf("send event: source is required")
	}
	if e.Category == "" {
		return 0, fmt.Errorf("send event: category is required")
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	body, err := json.Marshal(wireRecord{
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		App:       e.Source,
		SessionID: e.SessionID,
		EventType: e.Category,
		Summary:   e.Summary,
		Payload:   e.Attributes,
	})
	if err != nil {
		return 0, fmt.Errorf("send event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/events", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("send event: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &transport.APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	var stored struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return 0, fmt.Errorf("decode collector response: %w", err)
	}
	return stored.ID, nil
}
