package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func postEvent(t *testing.T, base, app, eventType, summary string) record {
	t.Helper()
	body := fmt.Sprintf(`{"app":%q,"event_type":%q,"summary":%q}`, app, eventType, summary)
	resp, err := http.Post(base+"/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post event: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var rec record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec
}

func getEvents(t *testing.T, url string) []record {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var recs []record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	return recs
}

func dialWS(t *testing.T, base string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(base, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) pushFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f pushFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return f
}

func TestServerIngestAssignsIDs(t *testing.T) {
	srv := httptest.NewServer(New(0, 0, nil).Handler())
	defer srv.Close()

	first := postEvent(t, srv.URL, "claude-code", "tool_use", "Bash")
	second := postEvent(t, srv.URL, "claude-code", "error", "boom")

	if first.ID != 1 {
		t.Errorf("expected first id 1, got %d", first.ID)
	}
	if second.ID != 2 {
		t.Errorf("expected second id 2, got %d", second.ID)
	}
	if first.Timestamp == "" {
		t.Error("expected server to stamp a timestamp on an unstamped record")
	}
	if _, err := time.Parse(time.RFC3339Nano, first.Timestamp); err != nil {
		t.Errorf("stamped timestamp %q does not parse: %v", first.Timestamp, err)
	}
	if first.App != "claude-code" || first.EventType != "tool_use" {
		t.Errorf("response did not echo record fields: %+v", first)
	}
}

func TestServerKeepsProducerTimestamp(t *testing.T) {
	srv := httptest.NewServer(New(0, 0, nil).Handler())
	defer srv.Close()

	body := `{"app":"a","event_type":"test","timestamp":"2026-01-02T03:04:05Z"}`
	resp, err := http.Post(srv.URL+"/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post event: %v", err)
	}
	defer resp.Body.Close()

	var rec record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec.Timestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("expected producer timestamp preserved, got %q", rec.Timestamp)
	}
}

func TestServerRejectsInvalidRecords(t *testing.T) {
	srv := httptest.NewServer(New(0, 0, nil).Handler())
	defer srv.Close()

	tests := []struct {
		name string
		body string
	}{
		{"missing app", `{"event_type":"tool_use"}`},
		{"missing event_type", `{"app":"claude-code"}`},
		{"not json", `not json at all`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/events", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("post event: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestServerRecentEventsOldestFirst(t *testing.T) {
	srv := httptest.NewServer(New(0, 0, nil).Handler())
	defer srv.Close()

	postEvent(t, srv.URL, "a", "tool_use", "one")
	postEvent(t, srv.URL, "b", "error", "two")
	postEvent(t, srv.URL, "c", "stop", "three")

	recs := getEvents(t, srv.URL+"/events")
	if len(recs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(recs))
	}
	for i, rec := range recs {
		if rec.ID != int64(i+1) {
			t.Errorf("expected id %d at position %d, got %d", i+1, i, rec.ID)
		}
	}
}

func TestServerLimitReturnsNewest(t *testing.T) {
	srv := httptest.NewServer(New(0, 0, nil).Handler())
	defer srv.Close()

	for i := 0; i < 5; i++ {
		postEvent(t, srv.URL, "a", "tool_use", fmt.Sprintf("event %d", i))
	}

	recs := getEvents(t, srv.URL+"/events?limit=2")
	if len(recs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recs))
	}
	if recs[0].ID != 4 || recs[1].ID != 5 {
		t.Errorf("expected ids [4 5], got [%d %d]", recs[0].ID, recs[1].ID)
	}
}

func TestServerRejectsBadLimit(t *testing.T) {
	srv := httptest.NewServer(New(0, 0, nil).Handler())
	defer srv.Close()

	for _, q := range []string{"limit=0", "limit=-1", "limit=ten"} {
		resp, err := http.Get(srv.URL + "/events?" + q)
		if err != nil {
			t.Fatalf("get events: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400 for %q, got %d", q, resp.StatusCode)
		}
	}
}

func TestServerBufferEvictsOldest(t *testing.T) {
	srv := httptest.NewServer(New(3, 0, nil).Handler())
	defer srv.Close()

	for i := 0; i < 5; i++ {
		postEvent(t, srv.URL, "a", "tool_use", fmt.Sprintf("event %d", i))
	}

	recs := getEvents(t, srv.URL+"/events")
	if len(recs) != 3 {
		t.Fatalf("expected buffer of 3 events, got %d", len(recs))
	}
	if recs[0].ID != 3 || recs[2].ID != 5 {
		t.Errorf("expected ids 3..5 after eviction, got %d..%d", recs[0].ID, recs[2].ID)
	}
}

func TestServerMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(New(0, 0, nil).Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", resp.StatusCode)
	}
}

func TestServerWebSocketInitThenLive(t *testing.T) {
	srv := httptest.NewServer(New(0, 0, nil).Handler())
	defer srv.Close()

	postEvent(t, srv.URL, "claude-code", "tool_use", "before connect")
	postEvent(t, srv.URL, "gemini", "error", "also before")

	conn := dialWS(t, srv.URL)
	defer conn.Close()

	init := readFrame(t, conn)
	if init.Type != "init" {
		t.Fatalf("expected first frame type init, got %q", init.Type)
	}
	if len(init.Events) != 2 {
		t.Fatalf("expected 2 backlog events, got %d", len(init.Events))
	}
	if init.Events[0].ID != 1 || init.Events[1].ID != 2 {
		t.Errorf("expected backlog ids [1 2], got [%d %d]", init.Events[0].ID, init.Events[1].ID)
	}

	postEvent(t, srv.URL, "claude-code", "stop", "after connect")

	live := readFrame(t, conn)
	if live.Type != "event" {
		t.Fatalf("expected frame type event, got %q", live.Type)
	}
	if live.Data == nil {
		t.Fatal("expected event frame to carry data")
	}
	if live.Data.ID != 3 {
		t.Errorf("expected live event id 3, got %d", live.Data.ID)
	}
	if live.Data.EventType != "stop" {
		t.Errorf("expected live event type stop, got %q", live.Data.EventType)
	}
}

func TestServerInitLimitCapsBacklog(t *testing.T) {
	srv := httptest.NewServer(New(0, 1, nil).Handler())
	defer srv.Close()

	for i := 0; i < 3; i++ {
		postEvent(t, srv.URL, "a", "tool_use", fmt.Sprintf("event %d", i))
	}

	conn := dialWS(t, srv.URL)
	defer conn.Close()

	init := readFrame(t, conn)
	if len(init.Events) != 1 {
		t.Fatalf("expected 1 backlog event, got %d", len(init.Events))
	}
	if init.Events[0].ID != 3 {
		t.Errorf("expected newest backlog event id 3, got %d", init.Events[0].ID)
	}
}

func TestServerBroadcastDropsWhenSubscriberFull(t *testing.T) {
	s := New(0, 0, nil)

	sub := &subscriber{out: make(chan []byte, 1)}
	s.subsMu.Lock()
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()

	s.broadcast(record{ID: 1, App: "a", EventType: "tool_use"})

	done := make(chan struct{})
	go func() {
		s.broadcast(record{ID: 2, App: "a", EventType: "tool_use"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a full subscriber queue")
	}

	if len(sub.out) != 1 {
		t.Errorf("expected 1 queued frame after drop, got %d", len(sub.out))
	}
	var f pushFrame
	if err := json.Unmarshal(<-sub.out, &f); err != nil {
		t.Fatalf("unmarshal queued frame: %v", err)
	}
	if f.Data == nil || f.Data.ID != 1 {
		t.Errorf("expected the first frame to survive, got %+v", f)
	}
}

func TestServerPayloadPassesThrough(t *testing.T) {
	srv := httptest.NewServer(New(0, 0, nil).Handler())
	defer srv.Close()

	body := `{"app":"a","event_type":"tool_use","payload":{"tool_name":"Bash","exit_code":0}}`
	resp, err := http.Post(srv.URL+"/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post event: %v", err)
	}
	resp.Body.Close()

	recs := getEvents(t, srv.URL+"/events")
	if len(recs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(recs))
	}
	var payload map[string]any
	if err := json.Unmarshal(recs[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["tool_name"] != "Bash" {
		t.Errorf("expected payload tool_name Bash, got %v", payload["tool_name"])
	}
	if !bytes.Contains(recs[0].Payload, []byte("exit_code")) {
		t.Errorf("expected payload to retain exit_code, got %s", recs[0].Payload)
	}
}
