package stream

import (
	"encoding/json"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/SolanaSergio/apexbets-live/internal/domain/game"
)

// EventType discriminates the typed messages carried on a stream.
type EventType string

const (
	EventConnected  EventType = "connected"
	EventGameUpdate EventType = "game_update"
	EventHeartbeat  EventType = "heartbeat"
	EventError      EventType = "error"
)

// TopicAll is the wildcard topic. It is never targeted by the poller for
// game updates; it exists for cross-sport control messages.
const TopicAll = "all"

// Event is one newline-delimited JSON message on a subscriber stream.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewConnected(topic string) Event {
	return Event{
		Type:      EventConnected,
		Data:      map[string]string{"sport": topic},
		Timestamp: time.Now().UTC(),
	}
}

func NewGameUpdate(sport string, games []game.Game) Event {
	return Event{
		Type: EventGameUpdate,
		Data: GameUpdatePayload{
			Sport: sport,
			Games: games,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewHeartbeat() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now().UTC(),
	}
}

func NewError(message string) Event {
	return Event{
		Type:      EventError,
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().UTC(),
	}
}

// GameUpdatePayload is the data body of a game_update event: one logical
// batch per topic, never one message per game.
type GameUpdatePayload struct {
	Sport string      `json:"sport"`
	Games []game.Game `json:"games"`
}

// Encode serializes the event as a single JSON line (without the trailing
// newline; the transport writer appends it).
func (e Event) Encode() ([]byte, error) {
	return sonic.ConfigDefault.Marshal(e)
}

// DecodeEvent parses one JSON line into an Event. Data is left as raw JSON
// for the caller to decode by type.
func DecodeEvent(line []byte) (WireEvent, error) {
	var evt WireEvent
	if err := sonic.ConfigDefault.Unmarshal(line, &evt); err != nil {
		return WireEvent{}, err
	}
	return evt, nil
}

// WireEvent is the subscriber-side view of an Event with the data body kept
// raw until the type is known.
type WireEvent struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
