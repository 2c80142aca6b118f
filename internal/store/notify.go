package store

import (
	"log"
	"sync"
	"time"
)

// Notification is one due local notification.
type Notification struct {
	ID    string
	Title string
	Body  string
}

// LocalNotifier schedules in-process timers and invokes a delivery callback
// when each fires. Scheduling the same id again replaces the previous timer;
// timestamps in the past are silently ignored.
type LocalNotifier struct {
	deliver func(Notification)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewLocalNotifier builds a notifier. A nil deliver falls back to logging.
func NewLocalNotifier(deliver func(Notification)) *LocalNotifier {
	if deliver == nil {
		deliver = func(n Notification) { log.Printf("notify: %s. %s", n.Title, n.Body) }
	}
	return &LocalNotifier{deliver: deliver, timers: map[string]*time.Timer{}}
}

// Schedule arms a notification for the given time.
func (n *LocalNotifier) Schedule(id, title, body string, at time.Time) {
	delay := time.Until(at)
	if delay <= 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if t, ok := n.timers[id]; ok {
		t.Stop()
	}
	n.timers[id] = time.AfterFunc(delay, func() {
		n.mu.Lock()
		delete(n.timers, id)
		n.mu.Unlock()
		n.deliver(Notification{ID: id, Title: title, Body: body})
	})
}

// Cancel disarms any pending notifications with the given ids. Unknown ids
// are ignored.
func (n *LocalNotifier) Cancel(ids ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, id := range ids {
		if t, ok := n.timers[id]; ok {
			t.Stop()
			delete(n.timers, id)
		}
	}
}

// Pending reports how many notifications are armed.
func (n *LocalNotifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.timers)
}
