// Package store holds the engine's external collaborators: the reminder and
// profile tables, the generated-media bucket, and notification scheduling.
package store

import (
	"context"
	"time"
)

// Reminder is one scheduled item (calendar event or alarm).
type Reminder struct {
	ID      string    `json:"id,omitempty"`
	OwnerID string    `json:"owner_id"`
	Title   string    `json:"title"`
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"` // "event" or "alarm"
}

// ReminderStore persists reminders. A failed write means nothing happened;
// callers report it instead of assuming partial success.
type ReminderStore interface {
	Create(ctx context.Context, r Reminder) (Reminder, error)
	Update(ctx context.Context, r Reminder) (Reminder, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, ownerID string) ([]Reminder, error)
}

// ProfileStore merges partial detail objects into a user profile,
// last-write-wins per key.
type ProfileStore interface {
	MergeDetails(ctx context.Context, ownerID string, partial map[string]interface{}) (map[string]interface{}, error)
}

// MediaStore uploads generated media and returns a public URL.
type MediaStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// NotificationScheduler schedules local notifications. Idempotent per id;
// timestamps in the past are silently ignored.
type NotificationScheduler interface {
	Schedule(id, title, body string, at time.Time)
	Cancel(ids ...string)
}
