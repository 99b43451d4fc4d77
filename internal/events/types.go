// Package events defines the telemetry event record shared by every part
// of agentstream: the wire decoding, the display descriptors, and the
// source/category filter applied between transport and aggregation.
package events

import "time"

// AttrAgentType is the well-known attribute key carrying the agent
// framework/vendor name, used for color coding.
const AttrAgentType = "agent_type"

// UnknownAgent is the agent type assumed when the attribute is absent.
const UnknownAgent = "unknown"

// Event is one immutable telemetry record describing a discrete agent
// activity. Fields beyond Timestamp, Source and Category are optional and
// default to empty.
type Event struct {
	// Seq is the server-issued sequence id, used to de-duplicate events
	// re-delivered across reconnects. HasSeq reports whether the wire
	// record carried one; without it de-duplication is skipped.
	Seq    int64
	HasSeq bool

	Timestamp time.Time
	Source    string
	SessionID string
	Category  string
	Summary   string

	// Attributes is the open payload map. Consumers must tolerate any
	// shape; the only key with assigned meaning is AttrAgentType.
	Attributes map[string]any
}

// AgentType returns the agent_type attribute, or UnknownAgent when the
// attribute is absent or not a string.
func (e Event) AgentType() string {
	v, ok := e.Attributes[AttrAgentType]
	if !ok {
		return UnknownAgent
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return UnknownAgent
	}
	return s
}
