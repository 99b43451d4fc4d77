// Package server implements the development collector behind
// "agentstream serve": an in-memory event sink exposing the same wire
// surface the viewer consumes. Producers POST records to /events, viewers
// either poll GET /events or subscribe to the /ws push stream.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// DefaultBuffer is how many events the collector retains.
	DefaultBuffer = 1000

	// DefaultInitLimit is how many buffered events a fresh WebSocket
	// subscriber receives in its init frame.
	DefaultInitLimit = 50

	defaultGetLimit = 100

	// subscriberBuffer is the per-subscriber frame queue. A subscriber
	// that falls this far behind starts losing frames; it reconciles
	// through event ids on reconnect.
	subscriberBuffer = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 1 << 20
)

// record is the stored wire form of one event. Payload passes through
// untouched; the collector never interprets attributes.
type record struct {
	ID        int64           `json:"id"`
	Timestamp string          `json:"timestamp"`
	App       string          `json:"app"`
	SessionID string          `json:"session_id,omitempty"`
	EventType string          `json:"event_type"`
	Summary   string          `json:"summary,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// pushFrame is the envelope written to WebSocket subscribers.
type pushFrame struct {
	Type   string   `json:"type"`
	Events []record `json:"events,omitempty"`
	Data   *record  `json:"data,omitempty"`
}

type subscriber struct {
	conn *websocket.Conn
	out  chan []byte
}

// Server is the in-memory collector.
type Server struct {
	log       *zap.Logger
	buffer    int
	initLimit int
	upgrader  websocket.Upgrader

	mu     sync.Mutex
	events []record
	nextID int64

	subsMu sync.RWMutex
	subs   map[*subscriber]struct{}
}

// New creates a collector retaining up to buffer events and replaying up
// to initLimit of them to new subscribers.
func New(buffer, initLimit int, log *zap.Logger) *Server {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	if initLimit < 1 {
		initLimit = DefaultInitLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:       log,
		buffer:    buffer,
		initLimit: initLimit,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Handler returns the collector's HTTP surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// ListenAndServe runs the collector on addr until the context ends, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleIngest(w, r)
	case http.MethodGet:
		s.handleRecent(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleIngest accepts one producer record, stamps it with an id (and a
// timestamp when the producer omitted one), stores it and fans it out.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var rec record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if rec.App == "" || rec.EventType == "" {
		http.Error(w, "app and event_type are required", http.StatusBadRequest)
		return
	}
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	s.mu.Lock()
	s.nextID++
	rec.ID = s.nextID
	s.events = append(s.events, rec)
	if len(s.events) > s.buffer {
		s.events = s.events[len(s.events)-s.buffer:]
	}
	s.mu.Unlock()

	s.broadcast(rec)

	s.log.Debug("event ingested",
		zap.Int64("id", rec.ID),
		zap.String("app", rec.App),
		zap.String("event_type", rec.EventType))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// handleRecent serves the newest events, oldest first.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultGetLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	s.mu.Lock()
	recent := s.lastLocked(limit)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recent)
}

// lastLocked copies the newest n records. Caller must hold s.mu.
func (s *Server) lastLocked(n int) []record {
	if n > len(s.events) {
		n = len(s.events)
	}
	out := make([]record, n)
	copy(out, s.events[len(s.events)-n:])
	return out
}

// handleWS upgrades the connection and streams events. The subscriber is
// registered before its backlog snapshot is taken, so no event published
// after the snapshot can be missed; at worst the client sees an id twice
// and discards it.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{conn: conn, out: make(chan []byte, subscriberBuffer)}

	s.subsMu.Lock()
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()

	s.mu.Lock()
	backlog := s.lastLocked(s.initLimit)
	s.mu.Unlock()

	// A broadcast may already have raced a frame into the queue; the
	// client dedups by id, and the queue is far too large for this send
	// to block.
	if init, err := json.Marshal(pushFrame{Type: "init", Events: backlog}); err == nil {
		sub.out <- init
	}

	s.log.Info("viewer connected",
		zap.String("remote", r.RemoteAddr),
		zap.Int("backlog", len(backlog)))

	go s.writeLoop(sub)

	// Inbound data is discarded; reading just detects departure and
	// keeps pong handling alive.
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.subsMu.Lock()
	delete(s.subs, sub)
	s.subsMu.Unlock()

	close(sub.out)
	conn.Close()
	s.log.Info("viewer disconnected", zap.String("remote", r.RemoteAddr))
}

// writeLoop drains a subscriber's frame queue onto its connection and
// keeps the connection alive with pings.
func (s *Server) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.out:
			if !ok {
				return
			}
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcast fans one record out to every subscriber. Sends never block:
// a full queue means a slow viewer, and dropping beats stalling
// ingestion for everyone else.
func (s *Server) broadcast(rec record) {
	data, err := json.Marshal(pushFrame{Type: "event", Data: &rec})
	if err != nil {
		return
	}

	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for sub := range s.subs {
		select {
		case sub.out <- data:
		default:
			s.log.Warn("dropping frame for slow subscriber",
				zap.Int64("id", rec.ID))
		}
	}
}
