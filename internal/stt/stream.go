// Package stt streams microphone audio to a hosted speech-recognition
// service over a websocket and emits interim/final transcript segments.
package stt

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Jitendra2007-rbg/friday/internal/audio"
	"github.com/Jitendra2007-rbg/friday/internal/wakeword"
)

// Source supplies 16kHz mono capture buffers. The service never closes it;
// the microphone lease holder does.
type Source interface {
	Read() ([]int16, error)
}

// Config locates the recognition endpoint.
type Config struct {
	URL    string // wss endpoint
	APIKey string
}

// Service is one continuous recognition stream: it connects, pumps audio
// from the source, and emits segments until the stream ends. It implements
// wakeword.Recognizer; a fresh Service is built per detector attempt.
type Service struct {
	cfg    Config
	source Source

	results chan wakeword.Result
	doneCh  chan error

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	stopped   bool
	endOnce   sync.Once
}

// New prepares a recognition stream over the given audio source.
func New(cfg Config, source Source) *Service {
	return &Service{
		cfg:     cfg,
		source:  source,
		results: make(chan wakeword.Result, 64),
		doneCh:  make(chan error, 1),
	}
}

// Turn is an interim or final transcript message from the service.
type turnMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	EndOfTurn  bool   `json:"end_of_turn"`
}

type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Start dials the service and begins the read and audio pump loops.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	if s.cfg.APIKey == "" {
		return fmt.Errorf("stt: api key is empty: %w", wakeword.ErrPermissionDenied)
	}

	params := url.Values{}
	params.Set("sample_rate", fmt.Sprintf("%d", audio.InputSampleRate))
	params.Set("encoding", "pcm_s16le")
	wsURL := s.cfg.URL
	if !strings.Contains(wsURL, "?") {
		wsURL += "?" + params.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	headers := map[string][]string{"Authorization": {s.cfg.APIKey}}
	conn, resp, err := dialer.Dial(wsURL, headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return fmt.Errorf("stt: connect rejected (%d): %w", resp.StatusCode, wakeword.ErrPermissionDenied)
		}
		return fmt.Errorf("stt: connect: %w", err)
	}
	s.conn = conn
	s.connected = true

	go s.readLoop(conn)
	go s.pumpAudio(conn)
	return nil
}

// Results emits interim and final segments in arrival order.
func (s *Service) Results() <-chan wakeword.Result { return s.results }

// Done fires once when the stream ends; nil or a benign error means
// end-of-utterance.
func (s *Service) Done() <-chan error { return s.doneCh }

// Stop terminates the stream. The end event still fires, as ErrAborted, so
// a pending Done receive is never stranded. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()
	if conn != nil {
		_ = conn.WriteJSON(map[string]string{"type": "Terminate"})
		_ = conn.Close()
	}
	s.end(wakeword.ErrAborted)
}

func (s *Service) end(err error) {
	s.endOnce.Do(func() { s.doneCh <- err })
}

func (s *Service) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				s.end(wakeword.ErrAborted)
			} else {
				s.end(fmt.Errorf("stt: read: %w", err))
			}
			return
		}
		s.processMessage(message)
	}
}

func (s *Service) processMessage(message []byte) {
	var base map[string]interface{}
	if err := json.Unmarshal(message, &base); err != nil {
		log.Printf("stt: bad message: %v", err)
		return
	}
	msgType, _ := base["type"].(string)
	switch msgType {
	case "Begin":
		var msg beginMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			log.Printf("stt: session began: id=%s", msg.ID)
		}
	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("stt: bad turn message: %v", err)
			return
		}
		if msg.Transcript == "" {
			return
		}
		select {
		case s.results <- wakeword.Result{Text: msg.Transcript, Final: msg.EndOfTurn}:
		default:
			// a stalled consumer only loses interim segments
		}
	case "Termination":
		s.end(nil)
	case "Error":
		var msg errorMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		s.end(classifyServiceError(msg.Error))
	default:
		log.Printf("stt: unknown message type %q", msgType)
	}
}

// classifyServiceError maps service error text onto the detector's taxonomy.
func classifyServiceError(text string) error {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "no speech"), strings.Contains(lower, "no-speech"):
		return wakeword.ErrNoSpeech
	case strings.Contains(lower, "aborted"):
		return wakeword.ErrAborted
	case strings.Contains(lower, "permission"), strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "invalid api key"):
		return wakeword.ErrPermissionDenied
	case strings.Contains(lower, "no capture device"), strings.Contains(lower, "audio device"):
		return wakeword.ErrNoDevice
	default:
		return fmt.Errorf("stt: service error: %s", text)
	}
}

func (s *Service) pumpAudio(conn *websocket.Conn) {
	for {
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		samples, err := s.source.Read()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if !stopped {
				if audio.IsDeviceUnavailable(err) {
					s.end(fmt.Errorf("stt: %v: %w", err, wakeword.ErrNoDevice))
				} else {
					s.end(fmt.Errorf("stt: mic read: %w", err))
				}
			}
			return
		}
		if len(samples) == 0 {
			continue
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, audio.Int16ToPCM16LE(samples)); err != nil {
			// read loop observes the broken connection and ends the stream
			return
		}
	}
}
