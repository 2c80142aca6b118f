package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/Jitendra2007-rbg/friday/internal/audio"
	"github.com/Jitendra2007-rbg/friday/internal/live"
	"github.com/Jitendra2007-rbg/friday/internal/tools"
)

// Status is the externally visible state of the conversation engine.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusListening  Status = "listening"
	StatusThinking   Status = "thinking"
	StatusSpeaking   Status = "speaking"
	StatusError      Status = "error"
)

// ErrActive is returned by Start while a conversation is already running.
var ErrActive = errors.New("session: conversation already active")

// ErrStopped is returned by Start when Stop was issued while Start was still
// acquiring the microphone or dialing; everything taken so far is released.
var ErrStopped = errors.New("session: stopped before start completed")

// Transport is the streaming connection to the remote inference service.
type Transport interface {
	Events() <-chan live.ServerEvent
	SendAudio(mime, data string) error
	SendImage(mime, data string) error
	SendText(text string) error
	SendToolResult(id, name, result string) error
	Close() error
}

// Dialer opens a Transport.
type Dialer func(ctx context.Context) (Transport, error)

// AcquireMic obtains exclusive use of the microphone. The returned release
// func must be called only after the capture device is fully torn down.
type AcquireMic func(ctx context.Context) (audio.Mic, func(), error)

// Playback is the outbound audio sink for agent speech.
type Playback interface {
	Enqueue(audio.Clip)
	Interrupt()
}

// ToolRunner executes a single tool call and reports its outcome.
type ToolRunner interface {
	Dispatch(ctx context.Context, call tools.Call) tools.Result
}

// Hooks receive session lifecycle notifications. Nil funcs are skipped.
type Hooks struct {
	OnStatus            func(Status)
	OnCredentialInvalid func()
}

// Config wires a Session's collaborators.
type Config struct {
	Dial     Dialer
	Mic      AcquireMic
	Playback Playback
	Tools    ToolRunner
	Hooks    Hooks
	// Greeting is the synthetic text cue sent right after the transport
	// opens so the agent speaks first.
	Greeting string
}

// Session owns one conversation: the duplex transport, the mic capture, the
// playback queue and the transcript. All event-driven state changes happen
// on the single run-loop goroutine; Stop may race it and is idempotent.
type Session struct {
	cfg        Config
	transcript *Transcript

	mu          sync.Mutex
	status      Status
	transport   Transport
	capture     *audio.Capture
	releaseMic  func()
	interrupted bool
	stopping    bool
	done        chan struct{}
}

// New returns an idle Session.
func New(cfg Config) *Session {
	if cfg.Greeting == "" {
		cfg.Greeting = "Greet the user briefly and ask how you can help."
	}
	return &Session{cfg: cfg, transcript: NewTranscript(), status: StatusIdle}
}

// Status returns the current engine status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Transcript returns a snapshot of the conversation so far.
func (s *Session) Transcript() []Entry { return s.transcript.Entries() }

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	s.mu.Unlock()
	if changed && s.cfg.Hooks.OnStatus != nil {
		s.cfg.Hooks.OnStatus(st)
	}
}

// Start acquires the microphone, dials the transport and begins streaming.
// On any failure it releases what it took and lands in StatusError.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusIdle && s.status != StatusError {
		s.mu.Unlock()
		return ErrActive
	}
	s.status = StatusConnecting
	s.stopping = false
	s.interrupted = false
	s.done = make(chan struct{})
	s.mu.Unlock()
	if s.cfg.Hooks.OnStatus != nil {
		s.cfg.Hooks.OnStatus(StatusConnecting)
	}
	s.transcript.Reset()

	mic, release, err := s.cfg.Mic(ctx)
	if err != nil {
		s.transcript.AddSystem("I couldn't access the microphone.")
		s.setStatus(StatusError)
		close(s.done)
		return fmt.Errorf("acquire mic: %w", err)
	}
	if s.stopRequested() {
		// Stop arrived while we were waiting on the mic lease. Its teardown
		// saw nothing to release, so undo here and let Stop return.
		mic.Close()
		release()
		s.setStatus(StatusIdle)
		close(s.done)
		return ErrStopped
	}

	transport, err := s.cfg.Dial(ctx)
	if err != nil {
		mic.Close()
		release()
		s.reportTransportError(err)
		s.setStatus(StatusError)
		close(s.done)
		return fmt.Errorf("dial: %w", err)
	}

	capture := audio.NewCapture(mic, transport)

	s.mu.Lock()
	if s.stopping {
		// Stop raced the dial. Release everything in teardown order so the
		// mic lease goes back and Stop's wait on done completes.
		s.mu.Unlock()
		capture.Stop()
		transport.Close()
		release()
		s.setStatus(StatusIdle)
		close(s.done)
		return ErrStopped
	}
	s.transport = transport
	s.capture = capture
	s.releaseMic = release
	s.mu.Unlock()

	capture.Start()
	if err := transport.SendText(s.cfg.Greeting); err != nil {
		log.Printf("session: greeting cue: %v", err)
	}
	if !s.stopRequested() {
		s.setStatus(StatusListening)
	}

	go s.run(ctx, transport)
	return nil
}

func (s *Session) stopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

// AttachImage stages a still image to ride along with the next audio frame.
func (s *Session) AttachImage(mime, data string) {
	s.mu.Lock()
	capture := s.capture
	s.mu.Unlock()
	if capture != nil {
		capture.AttachImage(mime, data)
	}
}

func (s *Session) run(ctx context.Context, transport Transport) {
	defer close(s.done)
	batches := make(chan []live.ToolCall, 8)
	defer close(batches)
	go s.batchWorker(ctx, transport, batches)
	for ev := range transport.Events() {
		if s.stopRequested() {
			// Teardown already ran; drop superseded events, wait for close.
			if ev.Type == live.EventClosed {
				s.setStatus(StatusIdle)
				return
			}
			continue
		}
		switch ev.Type {
		case live.EventUserTranscript:
			s.transcript.AddFragment(SpeakerUser, ev.Text)
		case live.EventAgentTranscript:
			s.setStatus(StatusSpeaking)
			s.transcript.AddFragment(SpeakerAgent, ev.Text)
		case live.EventAudio:
			s.cfg.Playback.Enqueue(audio.NewClip(ev.Audio))
		case live.EventToolCall:
			s.setStatus(StatusThinking)
			s.mu.Lock()
			s.interrupted = false
			s.mu.Unlock()
			batches <- ev.Calls
		case live.EventInterrupted:
			s.cfg.Playback.Interrupt()
			s.transcript.Seal()
			s.mu.Lock()
			s.interrupted = true
			s.mu.Unlock()
			s.setStatus(StatusListening)
		case live.EventTurnComplete:
			s.transcript.Seal()
			s.setStatus(StatusListening)
		case live.EventError:
			s.reportTransportError(ev.Err)
			s.teardown(StatusError)
			return
		case live.EventClosed:
			s.teardown(StatusIdle)
			return
		}
	}
	// Event channel closed without a terminal event.
	s.teardown(StatusIdle)
}

// batchWorker drains tool-call batches one at a time, so results for a
// later batch never leave before the batch dispatched ahead of it.
func (s *Session) batchWorker(ctx context.Context, transport Transport, batches <-chan []live.ToolCall) {
	for calls := range batches {
		s.runBatch(ctx, transport, calls)
	}
}

// runBatch executes one tool-call batch sequentially. Side effects are
// always applied; results stop being sent back once the user interrupts.
func (s *Session) runBatch(ctx context.Context, transport Transport, calls []live.ToolCall) {
	for _, c := range calls {
		res := s.cfg.Tools.Dispatch(ctx, tools.Call{ID: c.ID, Name: c.Name, Args: c.Args})
		if res.ImageURL != "" {
			s.transcript.AddImage(SpeakerAgent, res.ImageURL)
		}
		if len(res.Products) > 0 {
			s.transcript.AddProducts(SpeakerAgent, res.Text, res.Products)
		}
		s.mu.Lock()
		skip := s.interrupted || s.stopping
		s.mu.Unlock()
		if skip {
			continue
		}
		if err := transport.SendToolResult(c.ID, c.Name, res.Text); err != nil {
			log.Printf("session: tool result %s: %v", c.Name, err)
			return
		}
	}
}

// Stop ends the conversation from outside. It is idempotent and safe to
// call before Start or mid-teardown; every resource is guarded on its own.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopping {
		done := s.done
		s.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	s.stopping = true
	done := s.done
	s.mu.Unlock()

	s.teardown(StatusIdle)
	if done != nil {
		<-done
	}
}

// teardown releases everything in order: stop capture (closes the mic
// device), flush playback, close the transport, then hand the mic lease
// back. Safe to call more than once.
func (s *Session) teardown(final Status) {
	s.mu.Lock()
	capture := s.capture
	transport := s.transport
	release := s.releaseMic
	s.capture = nil
	s.transport = nil
	s.releaseMic = nil
	s.stopping = true
	s.mu.Unlock()

	if capture != nil {
		capture.Stop()
	}
	s.cfg.Playback.Interrupt()
	if transport != nil {
		transport.Close()
	}
	if release != nil {
		release()
	}
	s.setStatus(final)
}

func (s *Session) reportTransportError(err error) {
	if err == nil {
		err = errors.New("connection closed unexpectedly")
	}
	switch classifyTransportError(err) {
	case errCredential:
		s.transcript.AddSystem("Your API key looks invalid or revoked. Please update it and try again.")
		if s.cfg.Hooks.OnCredentialInvalid != nil {
			s.cfg.Hooks.OnCredentialInvalid()
		}
	case errNetwork:
		s.transcript.AddSystem("I lost the connection. Please check your network and try again.")
	default:
		s.transcript.AddSystem("Something went wrong with the conversation service. Please try again.")
	}
	log.Printf("session: transport error: %v", err)
}

type transportErrKind int

const (
	errGeneric transportErrKind = iota
	errCredential
	errNetwork
)

func classifyTransportError(err error) transportErrKind {
	msg := strings.ToLower(err.Error())
	for _, k := range []string{"api key", "api_key", "unauthorized", "401", "403", "credential", "revoked", "permission denied"} {
		if strings.Contains(msg, k) {
			return errCredential
		}
	}
	for _, k := range []string{"network", "connection refused", "connection reset", "dial", "timeout", "deadline", "no such host", "unreachable", "broken pipe"} {
		if strings.Contains(msg, k) {
			return errNetwork
		}
	}
	return errGeneric
}
