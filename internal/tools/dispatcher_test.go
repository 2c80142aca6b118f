package tools

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Jitendra2007-rbg/friday/internal/gen"
	"github.com/Jitendra2007-rbg/friday/internal/store"
)

type fakeReminderStore struct {
	mu      sync.Mutex
	created []store.Reminder
	err     error
}

func (f *fakeReminderStore) Create(ctx context.Context, r store.Reminder) (store.Reminder, error) {
	if f.err != nil {
		return store.Reminder{}, f.err
	}
	r.ID = "rem-1"
	f.mu.Lock()
	f.created = append(f.created, r)
	f.mu.Unlock()
	return r, nil
}
func (f *fakeReminderStore) Update(ctx context.Context, r store.Reminder) (store.Reminder, error) {
	return r, nil
}
func (f *fakeReminderStore) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeReminderStore) List(ctx context.Context, ownerID string) ([]store.Reminder, error) {
	return nil, nil
}

type fakeProfiles struct {
	last map[string]interface{}
	err  error
}

func (f *fakeProfiles) MergeDetails(ctx context.Context, ownerID string, p map[string]interface{}) (map[string]interface{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.last = p
	return p, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	scheduled []string
}

func (f *fakeNotifier) Schedule(id, title, body string, at time.Time) {
	f.mu.Lock()
	f.scheduled = append(f.scheduled, id)
	f.mu.Unlock()
}
func (f *fakeNotifier) Cancel(ids ...string) {}

type fakeGen struct {
	img    []byte
	imgErr error
}

func (f *fakeGen) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	return f.img, f.imgErr
}
func (f *fakeGen) SearchProducts(ctx context.Context, q string) (string, []gen.Product, error) {
	return "Found one.", []gen.Product{{Name: "Mug"}}, nil
}

type fakeOpener struct {
	opened []string
	err    error
}

func (f *fakeOpener) Open(url string) error {
	if f.err != nil {
		return f.err
	}
	f.opened = append(f.opened, url)
	return nil
}

func newTestDispatcher() (*Dispatcher, *fakeReminderStore, *fakeNotifier, *fakeOpener) {
	rs := &fakeReminderStore{}
	nt := &fakeNotifier{}
	op := &fakeOpener{}
	d := NewDispatcher("u1")
	d.Reminders = rs
	d.Profiles = &fakeProfiles{}
	d.Notifier = nt
	d.Gen = &fakeGen{img: []byte{1}}
	d.Opener = op
	d.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local) }
	return d, rs, nt, op
}

func TestScheduleEvent_RoundTrip(t *testing.T) {
	d, rs, nt, _ := newTestDispatcher()
	res := d.Dispatch(context.Background(), Call{ID: "c1", Name: "scheduleEvent", Args: map[string]interface{}{
		"title": "Dentist", "date": "2025-03-10", "time": "09:00",
	}})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	want := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	if res.Reminder == nil || !res.Reminder.At.Equal(want) {
		t.Fatalf("entity timestamp wrong: %+v", res.Reminder)
	}
	if !strings.Contains(res.Text, spokenTimestamp(want)) {
		t.Fatalf("result %q must contain the formatted local timestamp", res.Text)
	}
	if len(rs.created) != 1 || rs.created[0].Kind != "event" {
		t.Fatalf("store not written: %+v", rs.created)
	}
	if len(nt.scheduled) != 1 {
		t.Fatalf("notification not scheduled")
	}
}

func TestScheduleEvent_BadDateIsCorrectiveNotFatal(t *testing.T) {
	d, rs, _, _ := newTestDispatcher()
	res := d.Dispatch(context.Background(), Call{Name: "scheduleEvent", Args: map[string]interface{}{
		"title": "Dentist", "date": "not-a-date", "time": "09:00",
	}})
	if res.Err == nil {
		t.Fatalf("expected typed error")
	}
	if res.Reminder != nil {
		t.Fatalf("no entity must be created on parse failure")
	}
	if res.Text == "" {
		t.Fatalf("corrective message required")
	}
	if len(rs.created) != 0 {
		t.Fatalf("store must be untouched")
	}
}

func TestScheduleEvent_MissingArgIsValidationError(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	res := d.Dispatch(context.Background(), Call{Name: "scheduleEvent", Args: map[string]interface{}{
		"date": "2025-03-10", "time": "09:00",
	}})
	var verr *ValidationError
	if !errors.As(res.Err, &verr) || verr.Field != "title" {
		t.Fatalf("want ValidationError on title, got %v", res.Err)
	}
	if res.Text == "" {
		t.Fatalf("text result still required")
	}
}

func TestSetAlarm_PastClockRollsToTomorrow(t *testing.T) {
	d, rs, _, _ := newTestDispatcher()
	res := d.Dispatch(context.Background(), Call{Name: "setAlarm", Args: map[string]interface{}{
		"time": "07:00",
	}})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	want := time.Date(2025, 3, 2, 7, 0, 0, 0, time.Local)
	if len(rs.created) != 1 || !rs.created[0].At.Equal(want) {
		t.Fatalf("alarm at %v, want %v", rs.created[0].At, want)
	}
	if rs.created[0].Kind != "alarm" {
		t.Fatalf("kind=%s", rs.created[0].Kind)
	}
}

func TestOpenURL_NormalizesAndNeverThrows(t *testing.T) {
	d, _, _, op := newTestDispatcher()
	res := d.Dispatch(context.Background(), Call{Name: "openUrl", Args: map[string]interface{}{"url": "example.com/x"}})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(op.opened) != 1 || op.opened[0] != "https://example.com/x" {
		t.Fatalf("opened %v", op.opened)
	}

	op.err = errors.New("popup blocked")
	res = d.Dispatch(context.Background(), Call{Name: "openUrl", Args: map[string]interface{}{"url": "example.com"}})
	if res.Text == "" {
		t.Fatalf("blocked open must still produce a message")
	}
}

func TestGenerateImage_CredentialFailureTriggersInvalidation(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	invalidated := false
	d.OnCredentialInvalid = func() { invalidated = true }
	d.Gen = &fakeGen{imgErr: &gen.APIError{Kind: gen.KindCredential, Status: 401, Msg: "bad key"}}

	res := d.Dispatch(context.Background(), Call{Name: "generateImage", Args: map[string]interface{}{"prompt": "a fox"}})
	if !invalidated {
		t.Fatalf("credential failure must reset stored credential state")
	}
	if res.Text == "" || res.Err == nil {
		t.Fatalf("classified failure must keep text and error: %+v", res)
	}
}

func TestGenFailureMessagesAreDistinct(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	kinds := []gen.ErrorKind{gen.KindQuota, gen.KindCredential, gen.KindBilling, gen.KindOverloaded, gen.KindNetwork}
	seen := map[string]bool{}
	for _, k := range kinds {
		res := d.genFailure(&gen.APIError{Kind: k})
		if seen[res.Text] {
			t.Fatalf("duplicate message for kind %d: %q", k, res.Text)
		}
		seen[res.Text] = true
	}
}

func TestSearchProducts_ReturnsSummaryAndItems(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	res := d.Dispatch(context.Background(), Call{Name: "searchProducts", Args: map[string]interface{}{"query": "mugs"}})
	if res.Err != nil || res.Text != "Found one." || len(res.Products) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestUnknownToolStillProducesText(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	res := d.Dispatch(context.Background(), Call{Name: "teleport", Args: nil})
	if res.Text == "" || res.Err == nil {
		t.Fatalf("unknown tool must yield text + error, got %+v", res)
	}
}

func TestNormalizeURL(t *testing.T) {
	if got, err := normalizeURL("example.com"); err != nil || got != "https://example.com" {
		t.Fatalf("got %q err %v", got, err)
	}
	if got, err := normalizeURL("http://a.b/c"); err != nil || got != "http://a.b/c" {
		t.Fatalf("got %q err %v", got, err)
	}
	if _, err := normalizeURL("   "); err == nil {
		t.Fatalf("empty url must fail")
	}
}

func TestParseDateTime(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)
	got, err := parseDateTime("2025-03-10", "09:00", now)
	if err != nil || !got.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)) {
		t.Fatalf("got %v err %v", got, err)
	}
	got, err = parseDateTime("tomorrow", "7 PM", now)
	if err != nil || !got.Equal(time.Date(2025, 3, 2, 19, 0, 0, 0, time.Local)) {
		t.Fatalf("got %v err %v", got, err)
	}
	if _, err = parseDateTime("not-a-date", "09:00", now); err == nil {
		t.Fatalf("bad date must fail")
	}
	if _, err = parseDateTime("2025-03-10", "late", now); err == nil {
		t.Fatalf("bad time must fail")
	}
}
