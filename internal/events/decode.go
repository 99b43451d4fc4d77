package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// ParseError reports a wire record that could not be turned into an Event.
// Field names the offending wire field; it is empty when the record itself
// was not well-formed JSON.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "parse event: " + e.Reason
	}
	return fmt.Sprintf("parse event: field %q: %s", e.Field, e.Reason)
}

// wireEvent mirrors the collector's JSON record. Producer field names are
// fixed by the hook scripts and server: app (source), event_type (category),
// payload (attributes), id (sequence).
type wireEvent struct {
	ID        *int64          `json:"id"`
	Timestamp string          `json:"timestamp"`
	App       string          `json:"app"`
	SessionID string          `json:"session_id"`
	EventType string          `json:"event_type"`
	Summary   string          `json:"summary"`
	Payload   json.RawMessage `json:"payload"`
}

// timestampLayouts covers the producers in the wild: RFC 3339 with or
// without fractional seconds, and the zone-less local form emitted by
// datetime.now().isoformat(). Zone-less values are interpreted in local
// time, matching how the collector's own viewers display them.
var timestampLayouts = []struct {
	layout string
	local  bool
}{
	{time.RFC3339Nano, false},
	{time.RFC3339, false},
	{"2006-01-02T15:04:05.999999999", true},
	{"2006-01-02T15:04:05", true},
}

// Parse decodes a single wire record into an Event. It fails with a
// *ParseError when the record is not well-formed JSON, when the timestamp
// is missing or unparsable, or when app/event_type are missing. A record
// with a bad timestamp is rejected, never defaulted to the current time.
func Parse(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, &ParseError{Reason: err.Error()}
	}
	return fromWire(w)
}

func fromWire(w wireEvent) (Event, error) {
	if w.App == "" {
		return Event{}, &ParseError{Field: "app", Reason: "missing"}
	}
	if w.EventType == "" {
		return Event{}, &ParseError{Field: "event_type", Reason: "missing"}
	}
	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return Event{}, err
	}

	e := Event{
		Timestamp:  ts,
		Source:     w.App,
		SessionID:  w.SessionID,
		Category:   w.EventType,
		Summary:    w.Summary,
		Attributes: decodePayload(w.Payload),
	}
	if w.ID != nil {
		e.Seq = *w.ID
		e.HasSeq = true
	}
	return e, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, &ParseError{Field: "timestamp", Reason: "missing"}
	}
	for _, l := range timestampLayouts {
		var (
			ts  time.Time
			err error
		)
		if l.local {
			ts, err = time.ParseInLocation(l.layout, s, time.Local)
		} else {
			ts, err = time.Parse(l.layout, s)
		}
		if err == nil {
			return ts, nil
		}
	}
	return time.Time{}, &ParseError{Field: "timestamp", Reason: fmt.Sprintf("unparsable value %q", s)}
}

// decodePayload tolerates the payload arriving as a JSON object, as a
// string containing a JSON object, or as anything else (treated as empty).
// Some producers double-encode the payload; that must not reject the event.
func decodePayload(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}

	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err == nil {
		return attrs
	}

	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		if err := json.Unmarshal([]byte(nested), &attrs); err == nil {
			return attrs
		}
	}
	return nil
}
