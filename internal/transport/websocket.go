package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nixlim/agentstream/internal/events"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = 30 * time.Second
	readLimit        = 1 << 20

	// Redial pacing: short after a clean server close, longer after
	// anything that looks like a fault.
	redialWaitClean = 2 * time.Second
	redialWaitError = 5 * time.Second
)

// frame is the envelope the collector pushes over the socket: an "init"
// backlog right after the handshake, then one "event" frame per new
// event. Unknown types are ignored so the collector can grow.
type frame struct {
	Type   string            `json:"type"`
	Events []json.RawMessage `json:"events"`
	Data   json.RawMessage   `json:"data"`
}

// WSClient consumes the collector's WebSocket push stream, redialing
// until stopped.
type WSClient struct {
	endpoint    string
	queue       chan events.Event
	log         *zap.Logger
	state       connState
	done        chan struct{}
	redialClean time.Duration
	redialError time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// NewWSClient creates a client for endpoint. Queue sizes below 1 fall
// back to DefaultQueueSize; a nil logger disables logging.
func NewWSClient(endpoint string, queueSize int, log *zap.Logger) *WSClient {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WSClient{
		endpoint:    endpoint,
		queue:       make(chan events.Event, queueSize),
		log:         log,
		done:        make(chan struct{}),
		redialClean: redialWaitClean,
		redialError: redialWaitError,
	}
}

func (c *WSClient) Events() <-chan events.Event { return c.queue }

func (c *WSClient) State() State { return c.state.State() }

// Start validates the endpoint and launches the connect loop. It errors
// only on an unusable endpoint; failures after that are retried forever.
func (c *WSClient) Start(ctx context.Context) error {
	u, err := NormalizeEndpoint(c.endpoint, "ws", "wss")
	if err != nil {
		return err
	}
	c.endpoint = u.String()

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Stop ends delivery and blocks until the events channel is closed. The
// in-flight network read is unblocked by closing the connection.
func (c *WSClient) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()

	if cancel == nil {
		// Never started.
		return
	}
	cancel()
	<-c.done
}

func (c *WSClient) run(ctx context.Context) {
	defer func() {
		c.state.set(StateClosed)
		close(c.queue)
		close(c.done)
	}()

	dialer := &websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	for {
		if ctx.Err() != nil {
			return
		}

		c.state.set(StateConnecting)
		c.log.Info("connecting", zap.String("endpoint", c.endpoint))

		conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
		if err != nil {
			c.state.set(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("dial failed", zap.String("endpoint", c.endpoint), zap.Error(err))
			if !sleep(ctx, c.redialError) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.state.set(StateStreaming)
		c.log.Info("streaming", zap.String("endpoint", c.endpoint))

		err = c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()

		c.state.set(StateDisconnected)
		if ctx.Err() != nil {
			return
		}

		wait := c.redialError
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			wait = c.redialClean
		}
		c.log.Warn("connection lost",
			zap.Error(err),
			zap.Duration("redial_in", wait))
		if !sleep(ctx, wait) {
			return
		}
	}
}

// readLoop pumps frames off conn until the connection drops or the
// context ends. A ping keepalive runs alongside; missing pongs trip the
// read deadline and surface as a read error.
func (c *WSClient) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := c.handleFrame(ctx, data); err != nil {
			return err
		}
	}
}

// handleFrame decodes one pushed frame. Malformed frames and events are
// logged and skipped; the stream keeps flowing. The only returned error
// is context cancellation while waiting for queue space.
func (c *WSClient) handleFrame(ctx context.Context, data []byte) error {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.log.Warn("skipping malformed frame", zap.Error(err))
		return nil
	}

	switch f.Type {
	case "init":
		c.log.Info("received init backlog", zap.Int("events", len(f.Events)))
		for _, raw := range f.Events {
			if err := c.push(ctx, raw); err != nil {
				return err
			}
		}
	case "event":
		return c.push(ctx, f.Data)
	default:
		c.log.Debug("ignoring unknown frame type", zap.String("type", f.Type))
	}
	return nil
}

// push decodes raw and hands it to the consumer, blocking when the queue
// is full. That blocking is deliberate: it propagates backpressure to the
// socket rather than dropping or buffering without bound.
func (c *WSClient) push(ctx context.Context, raw json.RawMessage) error {
	e, err := events.Parse(raw)
	if err != nil {
		c.log.Warn("skipping undecodable event", zap.Error(err))
		return nil
	}
	select {
	case c.queue <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
