package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Jitendra2007-rbg/friday/internal/audio"
)

// Client is a websocket connection to the remote streaming session. All
// inbound traffic is surfaced on Events as ServerEvent values; outbound
// messages are fire-and-forget JSON frames.
type Client struct {
	url    string
	apiKey string

	events chan ServerEvent

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	once   sync.Once
}

// Dial opens the stream. The returned client is ready to send and is already
// reading events.
func Dial(ctx context.Context, url, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("live: api key is empty")
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	headers := map[string][]string{"Authorization": {"Bearer " + apiKey}}
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("live: connect failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("live: connect: %w", err)
	}
	c := &Client{url: url, apiKey: apiKey, conn: conn, events: make(chan ServerEvent, 128)}
	go c.readLoop(conn)
	return c, nil
}

// Events delivers inbound events in arrival order. The channel is closed
// after the final EventClosed.
func (c *Client) Events() <-chan ServerEvent { return c.events }

// wire message shapes

type outMessage struct {
	Type   string `json:"type"`
	Mime   string `json:"mime_type,omitempty"`
	Data   string `json:"data,omitempty"`
	Text   string `json:"text,omitempty"`
	CallID string `json:"call_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Result string `json:"result,omitempty"`
}

type inMessage struct {
	Type    string     `json:"type"`
	Role    string     `json:"role,omitempty"`
	Text    string     `json:"text,omitempty"`
	Final   bool       `json:"final,omitempty"`
	Data    string     `json:"data,omitempty"`
	Calls   []ToolCall `json:"calls,omitempty"`
	Message string     `json:"message,omitempty"`
}

// SendAudio forwards one encoded capture frame.
func (c *Client) SendAudio(mimeType, data string) error {
	return c.send(outMessage{Type: "audio", Mime: mimeType, Data: data})
}

// SendImage forwards an out-of-band media payload.
func (c *Client) SendImage(mimeType, data string) error {
	return c.send(outMessage{Type: "image", Mime: mimeType, Data: data})
}

// SendText sends a text cue, e.g. the synthetic activation greeting.
func (c *Client) SendText(text string) error {
	return c.send(outMessage{Type: "text", Text: text})
}

// SendToolResult returns one tool call's textual result, correlated by id.
func (c *Client) SendToolResult(callID, name, result string) error {
	return c.send(outMessage{Type: "tool_result", CallID: callID, Name: name, Result: result})
}

func (c *Client) send(msg outMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return fmt.Errorf("live: connection closed")
	}
	return c.conn.WriteJSON(msg)
}

// Close tears the stream down. Idempotent; the reader emits EventClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.finish()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				select {
				case c.events <- ServerEvent{Type: EventError, Err: fmt.Errorf("live: read: %w", err)}:
				default:
				}
			}
			return
		}
		if ev, ok := c.decode(message); ok {
			c.events <- ev
		}
	}
}

func (c *Client) finish() {
	c.once.Do(func() {
		// The consumer may be gone with the buffer full; the channel close
		// below still signals the end, so never block on the final event.
		select {
		case c.events <- ServerEvent{Type: EventClosed}:
		default:
		}
		close(c.events)
	})
}

func (c *Client) decode(message []byte) (ServerEvent, bool) {
	var msg inMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("live: bad message: %v", err)
		return ServerEvent{}, false
	}
	return decodeMessage(msg)
}

func decodeMessage(msg inMessage) (ServerEvent, bool) {
	switch msg.Type {
	case "transcript":
		t := EventUserTranscript
		if msg.Role == "agent" || msg.Role == "model" {
			t = EventAgentTranscript
		}
		return ServerEvent{Type: t, Text: msg.Text, Final: msg.Final}, true
	case "audio":
		pcm, err := audio.DecodeBase64(msg.Data)
		if err != nil {
			log.Printf("live: bad audio chunk: %v", err)
			return ServerEvent{}, false
		}
		return ServerEvent{Type: EventAudio, Audio: pcm}, true
	case "tool_call":
		return ServerEvent{Type: EventToolCall, Calls: msg.Calls}, true
	case "turn_complete":
		return ServerEvent{Type: EventTurnComplete}, true
	case "interrupted":
		return ServerEvent{Type: EventInterrupted}, true
	case "error":
		return ServerEvent{Type: EventError, Err: fmt.Errorf("live: server error: %s", msg.Message)}, true
	default:
		log.Printf("live: unknown message type %q", msg.Type)
		return ServerEvent{}, false
	}
}
