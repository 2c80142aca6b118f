package engine

import (
	"context"
	"log"
	"sync"

	"github.com/Jitendra2007-rbg/friday/internal/session"
)

// Waker is the always-on wake-phrase listener.
type Waker interface {
	Start()
	Stop()
	Listening() bool
}

// Conversation is one live exchange with the remote agent.
type Conversation interface {
	Start(ctx context.Context) error
	Stop()
	Status() session.Status
}

// Config wires the engine's collaborators.
type Config struct {
	Lease        *MicLease
	Waker        Waker
	Conversation Conversation
	// OnCredentialInvalid fires once per invalidation, when the remote
	// service rejects the configured API key.
	OnCredentialInvalid func()
}

// State is a point-in-time snapshot for the status surface.
type State struct {
	Conversation    session.Status `json:"conversation"`
	WakeListening   bool           `json:"wake_listening"`
	CredentialValid bool           `json:"credential_valid"`
}

// Engine arbitrates the microphone between the wake-word listener and the
// conversation session. At most one of the two holds the device; handoff
// always goes teardown first, then grace, then the next holder.
type Engine struct {
	cfg Config

	mu            sync.Mutex
	running       bool
	detectorGrant *Grant
	credInvalid   bool
}

// New returns a stopped engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Run enables the engine: the wake listener takes the microphone and waits
// for an activation. Idempotent.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()
	return e.startDetector(ctx)
}

func (e *Engine) startDetector(ctx context.Context) error {
	grant, err := e.cfg.Lease.Acquire(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	if !e.running || e.detectorGrant != nil || e.cfg.Conversation.Status() != session.StatusIdle {
		e.mu.Unlock()
		grant.Release(nil)
		return nil
	}
	e.detectorGrant = grant
	e.mu.Unlock()
	e.cfg.Waker.Start()
	return nil
}

// Activated hands the microphone from the wake listener to a new
// conversation. Wire it to the detector's OnActivated callback; the
// detector has already stopped its stream when this runs.
func (e *Engine) Activated(phrase string) {
	log.Printf("engine: wake phrase %q", phrase)
	if err := e.StartConversation(context.Background()); err != nil {
		log.Printf("engine: start conversation: %v", err)
	}
}

// StartConversation stops the wake listener, releases its hold on the
// microphone and starts a session. Also serves manual (non-voice) starts.
func (e *Engine) StartConversation(ctx context.Context) error {
	e.releaseDetector()
	return e.cfg.Conversation.Start(ctx)
}

// StopConversation ends the active session; the wake listener resumes via
// the session's status hook once teardown lands in Idle.
func (e *Engine) StopConversation() {
	e.cfg.Conversation.Stop()
}

// ConversationEnded reacts to session status changes. Wire it to the
// session's OnStatus hook. The listener is rearmed only after a clean stop;
// a session that died in Error keeps the microphone untouched so a failing
// device is not immediately reopened.
func (e *Engine) ConversationEnded(st session.Status) {
	if st != session.StatusIdle {
		return
	}
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running {
		return
	}
	go func() {
		if err := e.startDetector(context.Background()); err != nil {
			log.Printf("engine: rearm wake listener: %v", err)
		}
	}()
}

// CredentialInvalid records that the remote service rejected the API key.
// Wire it to the session's OnCredentialInvalid hook.
func (e *Engine) CredentialInvalid() {
	e.mu.Lock()
	first := !e.credInvalid
	e.credInvalid = true
	e.mu.Unlock()
	if first && e.cfg.OnCredentialInvalid != nil {
		e.cfg.OnCredentialInvalid()
	}
}

// CredentialRestored clears the invalidation flag after the key changes.
func (e *Engine) CredentialRestored() {
	e.mu.Lock()
	e.credInvalid = false
	e.mu.Unlock()
}

// Snapshot reports the current engine state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	cred := e.credInvalid
	e.mu.Unlock()
	return State{
		Conversation:    e.cfg.Conversation.Status(),
		WakeListening:   e.cfg.Waker.Listening(),
		CredentialValid: !cred,
	}
}

// Shutdown stops everything: the wake listener, any active conversation and
// the lease bookkeeping. Idempotent.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	e.cfg.Conversation.Stop()
	e.releaseDetector()
}

func (e *Engine) releaseDetector() {
	e.mu.Lock()
	grant := e.detectorGrant
	e.detectorGrant = nil
	e.mu.Unlock()
	if grant != nil {
		grant.Release(e.cfg.Waker.Stop)
	}
}
