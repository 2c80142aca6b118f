// Package live carries the bidirectional message stream between the
// conversation session and the remote inference service.
package live

// EventType tags an inbound server event.
type EventType string

const (
	// EventUserTranscript carries a partial or final user transcript fragment.
	EventUserTranscript EventType = "user_transcript"
	// EventAgentTranscript carries a partial or final agent transcript fragment.
	EventAgentTranscript EventType = "agent_transcript"
	// EventAudio carries an inline agent audio chunk, PCM16LE 24kHz mono.
	EventAudio EventType = "audio"
	// EventToolCall carries a batch of tool invocations for this turn.
	EventToolCall EventType = "tool_call"
	// EventTurnComplete marks the end of the agent's turn.
	EventTurnComplete EventType = "turn_complete"
	// EventInterrupted signals user barge-in; pending agent output is stale.
	EventInterrupted EventType = "interrupted"
	// EventError reports a transport or service failure.
	EventError EventType = "error"
	// EventClosed is the final event on any stream.
	EventClosed EventType = "closed"
)

// ToolCall is one remote-issued invocation of a named local capability.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ServerEvent is the tagged union consumed by the session state machine.
// Exactly the fields relevant to Type are set.
type ServerEvent struct {
	Type  EventType
	Text  string
	Final bool
	Audio []byte
	Calls []ToolCall
	Err   error
}
