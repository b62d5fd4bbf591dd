// Package realtime multiplexes one live challenge event stream across every
// process instance on a machine. A best-effort leader election picks the
// single instance that owns the websocket; everyone else receives events and
// connection status relayed over a shared broadcast bus.
package realtime

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventMemberJoined     EventType = "member-joined"
	EventMemberLeft       EventType = "member-left"
	EventSubmissionUpdate EventType = "submission-update"
	EventChallengeStatus  EventType = "challenge-status-changed"
	EventSync             EventType = "sync"
)

// Event is one frame from the challenge stream. Payload is opaque
// application data, passed through uninterpreted.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Status is the connection state of the shared stream. Every instance
// mirrors the value owned by the current leader.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusPolling      Status = "polling"
)

type FrameKind string

const (
	KindLeaderPing FrameKind = "leader-ping"
	KindLeaderPong FrameKind = "leader-pong"
	KindLeaderExit FrameKind = "leader-exit"
	KindEvent      FrameKind = "ws-event"
	KindStatus     FrameKind = "ws-status"
	KindSubscribe  FrameKind = "subscribe"
)

// Frame is one message on the shared broadcast bus. Sender carries the
// originating peer id so instances can ignore their own frames.
type Frame struct {
	Kind   FrameKind `json:"kind"`
	Sender string    `json:"sender"`
	Topic  string    `json:"topic,omitempty"`
	Status Status    `json:"status,omitempty"`
	Event  *Event    `json:"event,omitempty"`
}
