// Package wakeword runs the always-on activation loop over an opaque
// streaming speech recognizer.
package wakeword

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Result is one interim or final transcript segment from the recognizer.
type Result struct {
	Text  string
	Final bool
}

// Recognizer is a single continuous recognition stream. A stream ends at
// most once, reported on Done: nil or a benign error means end-of-utterance
// and the detector restarts; a fatal error terminates the loop.
type Recognizer interface {
	Start() error
	Stop()
	Results() <-chan Result
	Done() <-chan error
}

// Benign recognition conditions, swallowed by the restart loop.
var (
	ErrNoSpeech = errors.New("wakeword: no speech detected")
	ErrAborted  = errors.New("wakeword: recognition aborted")
)

// Fatal conditions that stop the loop permanently.
var (
	ErrPermissionDenied = errors.New("wakeword: microphone permission denied")
	ErrNoDevice         = errors.New("wakeword: no capture device")
)

// IsBenign reports whether a recognition failure should be silently
// recovered by restarting the stream.
func IsBenign(err error) bool {
	return err == nil || errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrAborted)
}

// IsFatal reports whether a failure must terminate the detector loop.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNoDevice)
}

type phrasePattern struct {
	phrase string
	re     *regexp.Regexp
}

// compilePhrases builds case-insensitive, whole-word-anchored patterns so
// "friday" never matches inside "fridays".
func compilePhrases(phrases []string) ([]phrasePattern, error) {
	out := make([]phrasePattern, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("compile phrase %q: %w", p, err)
		}
		out = append(out, phrasePattern{phrase: p, re: re})
	}
	if len(out) == 0 {
		return nil, errors.New("wakeword: no phrases configured")
	}
	return out, nil
}
