package wakeword

import (
	"log"
	"sync"
	"time"
)

// Events are the detector's outward callbacks. OnActivated fires after the
// recognizer has been stopped, so the microphone is already free when the
// conversation engine reacts. OnError fires at most once per Start, for
// fatal conditions only.
type Events struct {
	OnActivated func(phrase string)
	OnError     func(err error)
}

// Config tunes the detector.
type Config struct {
	Phrases []string
	// RestartDelay decouples the automatic restart from the failure that
	// ended the previous stream, to avoid crash-restart loops on noisy
	// platforms. Platform-tuned; see config.WakeRestartDelay.
	RestartDelay time.Duration
}

// Detector owns the microphone while no conversation is active and raises an
// activation event when an utterance contains a configured phrase.
// State machine: {Stopped, Listening} with a self-transition on benign
// end-of-utterance.
type Detector struct {
	cfg      Config
	ev       Events
	patterns []phrasePattern
	newRec   func() (Recognizer, error)

	mu        sync.Mutex
	enabled   bool
	listening bool
	current   Recognizer
	gen       int
}

// NewDetector compiles the phrase set and prepares the restart loop. newRec
// builds a fresh recognition stream per attempt; each stream's lifetime is
// one utterance or one failure.
func NewDetector(cfg Config, newRec func() (Recognizer, error), ev Events) (*Detector, error) {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 300 * time.Millisecond
	}
	patterns, err := compilePhrases(cfg.Phrases)
	if err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg, ev: ev, patterns: patterns, newRec: newRec}, nil
}

// Start begins continuous listening. Calling it while already listening is a
// no-op.
func (d *Detector) Start() {
	d.mu.Lock()
	if d.enabled {
		d.mu.Unlock()
		return
	}
	d.enabled = true
	d.listening = true
	d.gen++
	gen := d.gen
	d.mu.Unlock()
	go d.loop(gen)
}

// Stop disables restart and tears down the active stream. It prevents an
// in-flight end event from re-arming the loop. Idempotent.
func (d *Detector) Stop() {
	d.mu.Lock()
	d.enabled = false
	d.listening = false
	rec := d.current
	d.current = nil
	d.mu.Unlock()
	if rec != nil {
		rec.Stop()
	}
}

// Listening reports whether the detector currently runs a recognition stream.
func (d *Detector) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listening
}

func (d *Detector) loop(gen int) {
	for {
		d.mu.Lock()
		if !d.enabled || d.gen != gen {
			d.listening = false
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		rec, err := d.newRec()
		if err == nil {
			err = rec.Start()
		}
		if err != nil {
			if IsFatal(err) {
				d.fail(err)
				return
			}
			if !d.sleepRestart(gen) {
				return
			}
			continue
		}

		d.mu.Lock()
		if !d.enabled || d.gen != gen {
			d.mu.Unlock()
			rec.Stop()
			return
		}
		d.current = rec
		d.mu.Unlock()

		activated, endErr := d.consume(rec)

		d.mu.Lock()
		if d.current == rec {
			d.current = nil
		}
		d.mu.Unlock()

		if activated {
			return
		}
		// The stream ended on its own; Stop is idempotent and releases
		// the capture device before the next attempt opens it.
		rec.Stop()
		if IsFatal(endErr) {
			d.fail(endErr)
			return
		}
		if !IsBenign(endErr) {
			log.Printf("wakeword: recognition ended: %v", endErr)
		}
		if !d.sleepRestart(gen) {
			return
		}
	}
}

// consume scans every interim and final segment; the first whole-word match
// wins and stops the recognizer before the activation callback runs, so the
// microphone is released ahead of the handoff and a second segment cannot
// double-activate.
func (d *Detector) consume(rec Recognizer) (bool, error) {
	results := rec.Results()
	done := rec.Done()
	for {
		select {
		case r, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if phrase, ok := d.match(r.Text); ok {
				d.mu.Lock()
				active := d.enabled
				d.enabled = false
				d.listening = false
				d.mu.Unlock()
				rec.Stop()
				if active && d.ev.OnActivated != nil {
					d.ev.OnActivated(phrase)
				}
				return true, nil
			}
		case err := <-done:
			return false, err
		}
	}
}

func (d *Detector) match(text string) (string, bool) {
	for _, p := range d.patterns {
		if p.re.MatchString(text) {
			return p.phrase, true
		}
	}
	return "", false
}

func (d *Detector) fail(err error) {
	d.mu.Lock()
	wasEnabled := d.enabled
	d.enabled = false
	d.listening = false
	d.mu.Unlock()
	log.Printf("wakeword: fatal: %v", err)
	if wasEnabled && d.ev.OnError != nil {
		d.ev.OnError(err)
	}
}

// sleepRestart waits the configured delay before the next attempt; it
// returns false when the detector was stopped meanwhile.
func (d *Detector) sleepRestart(gen int) bool {
	time.Sleep(d.cfg.RestartDelay)
	d.mu.Lock()
	ok := d.enabled && d.gen == gen
	if !ok {
		d.listening = false
	}
	d.mu.Unlock()
	return ok
}
