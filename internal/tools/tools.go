// Package tools maps remote-issued function calls onto local side effects
// and always produces a spoken-safe text result for the model.
package tools

import (
	"fmt"

	"github.com/Jitendra2007-rbg/friday/internal/gen"
	"github.com/Jitendra2007-rbg/friday/internal/store"
)

// Call is one pending tool invocation, correlated by ID.
type Call struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// Result is what a call produced. Text is always set and safe to send to the
// remote session. Reminder, ImageURL and Products let the caller update
// local state without a second round trip. Err carries the typed failure for
// callers that branch on it; it is never propagated as a crash.
type Result struct {
	Text     string
	Reminder *store.Reminder
	ImageURL string
	Products []gen.Product
	Err      error
}

// ValidationError reports a missing or mistyped argument, caught at the
// dispatch boundary.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tools: %s: argument %q %s", e.Tool, e.Field, e.Reason)
}

// URLOpener opens a web address in the platform browser.
type URLOpener interface {
	Open(url string) error
}

// AppLauncher starts a named application. Supported reports whether the
// platform can launch apps natively at all.
type AppLauncher interface {
	Supported() bool
	Launch(app string) error
}

func stringArg(tool string, args map[string]interface{}, key string) (string, *ValidationError) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", &ValidationError{Tool: tool, Field: key, Reason: "is required"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Tool: tool, Field: key, Reason: "must be a string"}
	}
	if s == "" {
		return "", &ValidationError{Tool: tool, Field: key, Reason: "is required"}
	}
	return s, nil
}

func optionalStringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func objectArg(tool string, args map[string]interface{}, key string) (map[string]interface{}, *ValidationError) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, &ValidationError{Tool: tool, Field: key, Reason: "is required"}
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, &ValidationError{Tool: tool, Field: key, Reason: "must be an object"}
	}
	return m, nil
}
