package tools

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Jitendra2007-rbg/friday/internal/gen"
	"github.com/Jitendra2007-rbg/friday/internal/store"
)

// Dispatcher validates and executes tool calls. Every failure is converted
// to a text result at this boundary; the remote model must receive some
// textual result for every call it issued.
type Dispatcher struct {
	OwnerID   string
	Reminders store.ReminderStore
	Profiles  store.ProfileStore
	Media     store.MediaStore
	Notifier  store.NotificationScheduler
	Gen       gen.Client
	Opener    URLOpener
	Launcher  AppLauncher

	// OnCredentialInvalid resets the engine's stored credential so the next
	// attempt re-prompts instead of retrying the same bad key.
	OnCredentialInvalid func()

	now func() time.Time
}

// NewDispatcher wires the dispatcher's collaborators.
func NewDispatcher(ownerID string) *Dispatcher {
	return &Dispatcher{
		OwnerID:  ownerID,
		Opener:   ExecOpener{},
		Launcher: ExecLauncher{},
		now:      time.Now,
	}
}

// Dispatch runs exactly one call. It never panics and never returns an
// empty Text.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) Result {
	log.Printf("tools: dispatch %s (%s)", call.Name, call.ID)
	switch call.Name {
	case "openUrl":
		return d.openURL(call)
	case "launchApp":
		return d.launchApp(call)
	case "scheduleEvent":
		return d.scheduleEvent(ctx, call)
	case "setAlarm":
		return d.setAlarm(ctx, call)
	case "saveUserDetails":
		return d.saveUserDetails(ctx, call)
	case "generateImage":
		return d.generateImage(ctx, call)
	case "searchProducts":
		return d.searchProducts(ctx, call)
	default:
		err := fmt.Errorf("tools: unknown tool %q", call.Name)
		return Result{Text: fmt.Sprintf("I don't know how to %s yet.", call.Name), Err: err}
	}
}

func (d *Dispatcher) openURL(call Call) Result {
	raw, verr := stringArg(call.Name, call.Args, "url")
	if verr != nil {
		return Result{Text: "I need a web address to open.", Err: verr}
	}
	target, err := normalizeURL(raw)
	if err != nil {
		return Result{Text: fmt.Sprintf("%q doesn't look like a web address I can open.", raw), Err: err}
	}
	if err := d.Opener.Open(target); err != nil {
		// never throws: report the blocked-popup style fallback instead
		return Result{Text: fmt.Sprintf("I couldn't open %s automatically. Your browser may have blocked it.", target), Err: err}
	}
	return Result{Text: fmt.Sprintf("Opening %s.", target)}
}

func (d *Dispatcher) launchApp(call Call) Result {
	app, verr := stringArg(call.Name, call.Args, "app")
	if verr != nil {
		return Result{Text: "I need an app name to launch.", Err: verr}
	}
	if !d.Launcher.Supported() {
		return Result{Text: fmt.Sprintf("I can't launch apps on this device, but you can open %s yourself.", app)}
	}
	if err := d.Launcher.Launch(app); err != nil {
		return Result{Text: fmt.Sprintf("I couldn't start %s here.", app), Err: err}
	}
	return Result{Text: fmt.Sprintf("Launching %s.", app)}
}

func (d *Dispatcher) scheduleEvent(ctx context.Context, call Call) Result {
	title, verr := stringArg(call.Name, call.Args, "title")
	if verr != nil {
		return Result{Text: "I need a title for the event.", Err: verr}
	}
	dateStr, verr := stringArg(call.Name, call.Args, "date")
	if verr != nil {
		return Result{Text: "I need a date for the event.", Err: verr}
	}
	timeStr, verr := stringArg(call.Name, call.Args, "time")
	if verr != nil {
		return Result{Text: "I need a time for the event.", Err: verr}
	}
	at, err := parseDateTime(dateStr, timeStr, d.now())
	if err != nil {
		return Result{Text: fmt.Sprintf("I couldn't understand %q %q as a date and time. Could you say it differently?", dateStr, timeStr), Err: err}
	}
	return d.createReminder(ctx, store.Reminder{OwnerID: d.OwnerID, Title: title, At: at, Kind: "event"},
		fmt.Sprintf("Scheduled %q for %s.", title, spokenTimestamp(at)))
}

func (d *Dispatcher) setAlarm(ctx context.Context, call Call) Result {
	timeStr, verr := stringArg(call.Name, call.Args, "time")
	if verr != nil {
		return Result{Text: "I need a time for the alarm.", Err: verr}
	}
	label := optionalStringArg(call.Args, "label")
	if label == "" {
		label = "Alarm"
	}
	now := d.now()
	at, err := parseDateTime(optionalStringArg(call.Args, "date"), timeStr, now)
	if err != nil {
		return Result{Text: fmt.Sprintf("I couldn't understand %q as a time. Could you say it differently?", timeStr), Err: err}
	}
	// A bare clock time already past today means tomorrow.
	if optionalStringArg(call.Args, "date") == "" && at.Before(now) {
		at = at.AddDate(0, 0, 1)
	}
	return d.createReminder(ctx, store.Reminder{OwnerID: d.OwnerID, Title: label, At: at, Kind: "alarm"},
		fmt.Sprintf("Alarm set for %s.", spokenTimestamp(at)))
}

func (d *Dispatcher) createReminder(ctx context.Context, r store.Reminder, okText string) Result {
	created, err := d.Reminders.Create(ctx, r)
	if err != nil {
		// a failed write means nothing happened
		return Result{Text: "I couldn't save that. Please try again in a moment.", Err: err}
	}
	if d.Notifier != nil {
		d.Notifier.Schedule(created.ID, created.Title, "", created.At)
	}
	return Result{Text: okText, Reminder: &created}
}

func (d *Dispatcher) saveUserDetails(ctx context.Context, call Call) Result {
	details, verr := objectArg(call.Name, call.Args, "details")
	if verr != nil {
		return Result{Text: "I need the details you'd like me to remember.", Err: verr}
	}
	if _, err := d.Profiles.MergeDetails(ctx, d.OwnerID, details); err != nil {
		return Result{Text: "I couldn't save your details right now.", Err: err}
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Result{Text: fmt.Sprintf("Got it, I'll remember your %s.", strings.Join(keys, ", "))}
}

func (d *Dispatcher) generateImage(ctx context.Context, call Call) Result {
	prompt, verr := stringArg(call.Name, call.Args, "prompt")
	if verr != nil {
		return Result{Text: "I need a description of the image to generate.", Err: verr}
	}
	img, err := d.Gen.GenerateImage(ctx, prompt)
	if err != nil {
		return d.genFailure(err)
	}
	url := ""
	if d.Media != nil {
		key := fmt.Sprintf("generated/%s.png", uuid.NewString())
		if u, uerr := d.Media.Upload(ctx, key, "image/png", img); uerr == nil {
			url = u
		} else {
			log.Printf("tools: image upload failed: %v", uerr)
		}
	}
	return Result{Text: fmt.Sprintf("Here's the image I made for %q.", prompt), ImageURL: url}
}

func (d *Dispatcher) searchProducts(ctx context.Context, call Call) Result {
	query, verr := stringArg(call.Name, call.Args, "query")
	if verr != nil {
		return Result{Text: "I need to know what products to look for.", Err: verr}
	}
	summary, products, err := d.Gen.SearchProducts(ctx, query)
	if err != nil {
		return d.genFailure(err)
	}
	if summary == "" {
		summary = fmt.Sprintf("Here's what I found for %q.", query)
	}
	return Result{Text: summary, Products: products}
}

// genFailure maps a classified generation/search error onto its distinct
// user-facing message.
func (d *Dispatcher) genFailure(err error) Result {
	switch gen.Classify(err) {
	case gen.KindQuota:
		return Result{Text: "I've hit my usage limit for now. Please try again later.", Err: err}
	case gen.KindCredential:
		if d.OnCredentialInvalid != nil {
			d.OnCredentialInvalid()
		}
		return Result{Text: "My API key was rejected. Please re-select a valid key in settings.", Err: err}
	case gen.KindBilling:
		return Result{Text: "This feature needs a billing-enabled API key.", Err: err}
	case gen.KindOverloaded:
		return Result{Text: "The service is overloaded right now. Give it a moment and ask again.", Err: err}
	case gen.KindNetwork:
		return Result{Text: "I couldn't reach the service. Check your connection and try again.", Err: err}
	default:
		return Result{Text: "Something went wrong with that request.", Err: err}
	}
}
