package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SupabaseConfig locates the project's REST surface.
type SupabaseConfig struct {
	BaseURL    string
	ServiceKey string
}

// SupabaseStore implements ReminderStore and ProfileStore against the
// project's PostgREST tables (`reminders`, `profiles`).
type SupabaseStore struct {
	cfg    SupabaseConfig
	client *http.Client
}

// NewSupabaseStore builds the REST client.
func NewSupabaseStore(cfg SupabaseConfig) *SupabaseStore {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &SupabaseStore{cfg: cfg, client: &http.Client{Timeout: 30 * time.Second}}
}

type reminderRow struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
	At      string `json:"at"`
	Kind    string `json:"kind"`
}

func toRow(r Reminder) reminderRow {
	return reminderRow{ID: r.ID, OwnerID: r.OwnerID, Title: r.Title, At: r.At.Format(time.RFC3339), Kind: r.Kind}
}

func fromRow(row reminderRow) Reminder {
	at, _ := time.Parse(time.RFC3339, row.At)
	return Reminder{ID: row.ID, OwnerID: row.OwnerID, Title: row.Title, At: at, Kind: row.Kind}
}

// Create inserts a reminder and returns the stored row.
func (s *SupabaseStore) Create(ctx context.Context, r Reminder) (Reminder, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	var rows []reminderRow
	if err := s.do(ctx, http.MethodPost, "reminders", nil, toRow(r), &rows); err != nil {
		return Reminder{}, err
	}
	if len(rows) == 0 {
		return Reminder{}, fmt.Errorf("store: insert returned no rows")
	}
	return fromRow(rows[0]), nil
}

// Update rewrites an existing reminder by id.
func (s *SupabaseStore) Update(ctx context.Context, r Reminder) (Reminder, error) {
	if r.ID == "" {
		return Reminder{}, fmt.Errorf("store: update requires an id")
	}
	var rows []reminderRow
	filter := url.Values{"id": {"eq." + r.ID}}
	if err := s.do(ctx, http.MethodPatch, "reminders", filter, toRow(r), &rows); err != nil {
		return Reminder{}, err
	}
	if len(rows) == 0 {
		return Reminder{}, fmt.Errorf("store: reminder %s not found", r.ID)
	}
	return fromRow(rows[0]), nil
}

// Delete removes a reminder by id.
func (s *SupabaseStore) Delete(ctx context.Context, id string) error {
	filter := url.Values{"id": {"eq." + id}}
	return s.do(ctx, http.MethodDelete, "reminders", filter, nil, nil)
}

// List returns all reminders for one owner, soonest first.
func (s *SupabaseStore) List(ctx context.Context, ownerID string) ([]Reminder, error) {
	filter := url.Values{"owner_id": {"eq." + ownerID}, "order": {"at.asc"}}
	var rows []reminderRow
	if err := s.do(ctx, http.MethodGet, "reminders", filter, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]Reminder, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	return out, nil
}

type profileRow struct {
	OwnerID string                 `json:"owner_id"`
	Details map[string]interface{} `json:"details"`
}

// MergeDetails folds a partial detail object into the stored profile,
// last-write-wins per key, and returns the merged object.
func (s *SupabaseStore) MergeDetails(ctx context.Context, ownerID string, partial map[string]interface{}) (map[string]interface{}, error) {
	filter := url.Values{"owner_id": {"eq." + ownerID}}
	var rows []profileRow
	if err := s.do(ctx, http.MethodGet, "profiles", filter, nil, &rows); err != nil {
		return nil, err
	}
	merged := map[string]interface{}{}
	exists := len(rows) > 0
	if exists && rows[0].Details != nil {
		merged = rows[0].Details
	}
	for k, v := range partial {
		merged[k] = v
	}
	row := profileRow{OwnerID: ownerID, Details: merged}
	var out []profileRow
	if exists {
		if err := s.do(ctx, http.MethodPatch, "profiles", filter, row, &out); err != nil {
			return nil, err
		}
	} else {
		if err := s.do(ctx, http.MethodPost, "profiles", nil, row, &out); err != nil {
			return nil, err
		}
	}
	if len(out) == 0 {
		return merged, nil
	}
	return out[0].Details, nil
}

func (s *SupabaseStore) do(ctx context.Context, method, table string, filter url.Values, payload, dest interface{}) error {
	if s.cfg.BaseURL == "" || s.cfg.ServiceKey == "" {
		return fmt.Errorf("store: missing Supabase configuration: SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY required")
	}
	endpoint := fmt.Sprintf("%s/rest/v1/%s", s.cfg.BaseURL, table)
	if len(filter) > 0 {
		endpoint += "?" + filter.Encode()
	}
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", s.cfg.ServiceKey)
	req.Header.Set("Authorization", "Bearer "+s.cfg.ServiceKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if dest != nil && method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("store: %s %s: %w", method, table, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("store: %s %s failed with status %d: %s", method, table, resp.StatusCode, string(b))
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
