package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Jitendra2007-rbg/friday/internal/gen"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerAgent  Speaker = "agent"
	SpeakerSystem Speaker = "system"
)

// Entry is one turn's transcript line. While a turn streams in, the tail
// entry is mutated in place; a new entry begins when the speaker changes or
// the tail carries a non-text payload.
type Entry struct {
	ID       string
	Speaker  Speaker
	Text     string
	ImageURL string
	Products []gen.Product
}

func (e *Entry) textual() bool { return e.ImageURL == "" && len(e.Products) == 0 }

// Transcript is the append-only entry list for one conversation.
type Transcript struct {
	mu      sync.Mutex
	entries []*Entry
	sealed  bool
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript { return &Transcript{} }

// AddFragment merges a partial text fragment into the current entry, or
// begins a new one on speaker change, non-text tail, or after Seal.
func (t *Transcript) AddFragment(speaker Speaker, text string) {
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.entries); n > 0 && !t.sealed {
		tail := t.entries[n-1]
		if tail.Speaker == speaker && tail.textual() {
			tail.Text += text
			return
		}
	}
	t.sealed = false
	t.entries = append(t.entries, &Entry{ID: uuid.NewString(), Speaker: speaker, Text: text})
}

// AddSystem appends a human-readable diagnostic line. System lines never
// merge with neighbours.
func (t *Transcript) AddSystem(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, &Entry{ID: uuid.NewString(), Speaker: SpeakerSystem, Text: text})
	t.sealed = true
}

// AddImage appends a non-text image entry; later fragments start fresh.
func (t *Transcript) AddImage(speaker Speaker, url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, &Entry{ID: uuid.NewString(), Speaker: speaker, ImageURL: url})
	t.sealed = false
}

// AddProducts appends a non-text product-list entry.
func (t *Transcript) AddProducts(speaker Speaker, summary string, products []gen.Product) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, &Entry{ID: uuid.NewString(), Speaker: speaker, Text: summary, Products: products})
	t.sealed = false
}

// Seal abandons the in-flight entry: subsequent fragments always start a new
// entry. Used on interruption and turn completion.
func (t *Transcript) Seal() {
	t.mu.Lock()
	t.sealed = true
	t.mu.Unlock()
}

// Reset clears the transcript for a new conversation.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.entries = nil
	t.sealed = false
	t.mu.Unlock()
}

// Entries returns a snapshot copy.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}
