package live

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Jitendra2007-rbg/friday/internal/audio"
)

func TestFinishDoesNotBlockOnFullBuffer(t *testing.T) {
	c := &Client{events: make(chan ServerEvent, 1)}
	c.events <- ServerEvent{Type: EventAudio}

	done := make(chan struct{})
	go func() {
		c.finish()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("finish blocked with an undelivered event in the buffer")
	}

	if ev := <-c.events; ev.Type != EventAudio {
		t.Fatalf("buffered event lost: %+v", ev)
	}
	if _, ok := <-c.events; ok {
		t.Fatal("events channel not closed after finish")
	}
}

func TestFinishDeliversClosedWhenRoom(t *testing.T) {
	c := &Client{events: make(chan ServerEvent, 4)}
	c.finish()
	ev, ok := <-c.events
	if !ok || ev.Type != EventClosed {
		t.Fatalf("final event = %+v ok=%v, want EventClosed", ev, ok)
	}
	if _, ok := <-c.events; ok {
		t.Fatal("events channel not closed after final event")
	}
}

func decodeRaw(t *testing.T, raw string) (ServerEvent, bool) {
	t.Helper()
	var msg inMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return decodeMessage(msg)
}

func TestDecode_TranscriptRoles(t *testing.T) {
	ev, ok := decodeRaw(t, `{"type":"transcript","role":"user","text":"set an alarm","final":false}`)
	if !ok || ev.Type != EventUserTranscript || ev.Text != "set an alarm" || ev.Final {
		t.Fatalf("user transcript decode wrong: %+v", ev)
	}
	ev, ok = decodeRaw(t, `{"type":"transcript","role":"model","text":"Sure.","final":true}`)
	if !ok || ev.Type != EventAgentTranscript || !ev.Final {
		t.Fatalf("agent transcript decode wrong: %+v", ev)
	}
}

func TestDecode_AudioChunk(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	raw := `{"type":"audio","data":"` + audio.EncodeBase64(pcm) + `"}`
	ev, ok := decodeRaw(t, raw)
	if !ok || ev.Type != EventAudio {
		t.Fatalf("audio decode wrong: %+v", ev)
	}
	if string(ev.Audio) != string(pcm) {
		t.Fatalf("audio payload mismatch")
	}
}

func TestDecode_BadAudioDropped(t *testing.T) {
	if _, ok := decodeRaw(t, `{"type":"audio","data":"%%%"}`); ok {
		t.Fatalf("invalid base64 must be dropped")
	}
}

func TestDecode_ToolCallBatchKeepsOrder(t *testing.T) {
	raw := `{"type":"tool_call","calls":[
		{"id":"1","name":"setAlarm","args":{"time":"07:00"}},
		{"id":"2","name":"openURL","args":{"url":"example.com"}}]}`
	ev, ok := decodeRaw(t, raw)
	if !ok || ev.Type != EventToolCall || len(ev.Calls) != 2 {
		t.Fatalf("tool call decode wrong: %+v", ev)
	}
	if ev.Calls[0].ID != "1" || ev.Calls[1].Name != "openURL" {
		t.Fatalf("batch order lost: %+v", ev.Calls)
	}
}

func TestDecode_Markers(t *testing.T) {
	for raw, want := range map[string]EventType{
		`{"type":"turn_complete"}`: EventTurnComplete,
		`{"type":"interrupted"}`:   EventInterrupted,
	} {
		ev, ok := decodeRaw(t, raw)
		if !ok || ev.Type != want {
			t.Fatalf("%s: got %+v", raw, ev)
		}
	}
}

func TestDecode_ServerError(t *testing.T) {
	ev, ok := decodeRaw(t, `{"type":"error","message":"API key not valid"}`)
	if !ok || ev.Type != EventError || ev.Err == nil {
		t.Fatalf("error decode wrong: %+v", ev)
	}
}

func TestDecode_UnknownTypeDropped(t *testing.T) {
	if _, ok := decodeRaw(t, `{"type":"sparkle"}`); ok {
		t.Fatalf("unknown types must be dropped")
	}
}
