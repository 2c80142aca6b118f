package audio

import (
	"sync"
	"time"
)

// Clip is one decoded inbound audio buffer ready for playback.
type Clip struct {
	PCM      []byte
	Duration time.Duration
}

// NewClip derives the clip duration from the buffer length at the output rate.
func NewClip(pcm []byte) Clip {
	return Clip{PCM: pcm, Duration: PCMDuration(len(pcm), OutputSampleRate)}
}

// Playing is a handle to one clip currently rendering on the output device.
type Playing interface {
	// Stop halts rendering immediately. Safe to call more than once.
	Stop()
	// Done is closed when the clip finishes, by completion or by Stop.
	Done() <-chan struct{}
}

// Player renders a PCM16LE mono buffer at OutputSampleRate.
type Player interface {
	Play(pcm []byte) (Playing, error)
}

// Scheduler sequences clips gaplessly against a monotonic playback cursor.
// Each clip starts at max(cursor, now) and advances the cursor by its
// duration, so clips never overlap and never reorder. Interrupt stops every
// scheduled and playing clip and resets the cursor to now. The active set is
// kept alongside the cursor so "stop everything" never has to ask the
// hardware what is playing.
type Scheduler struct {
	player Player
	now    func() time.Time

	mu     sync.Mutex
	cursor time.Time
	active map[uint64]*scheduledClip
	nextID uint64
}

type scheduledClip struct {
	timer   *time.Timer
	playing Playing
	stopped bool
}

// NewScheduler builds a scheduler over the given output player.
func NewScheduler(p Player) *Scheduler {
	return &Scheduler{player: p, now: time.Now, active: make(map[uint64]*scheduledClip)}
}

// Enqueue schedules a clip after all previously enqueued clips.
func (s *Scheduler) Enqueue(c Clip) {
	if len(c.PCM) == 0 || c.Duration <= 0 {
		return
	}
	s.mu.Lock()
	now := s.now()
	start := s.cursor
	if start.Before(now) {
		start = now
	}
	s.cursor = start.Add(c.Duration)
	id := s.nextID
	s.nextID++
	sc := &scheduledClip{}
	s.active[id] = sc
	sc.timer = time.AfterFunc(start.Sub(now), func() { s.startClip(id, c) })
	s.mu.Unlock()
}

func (s *Scheduler) startClip(id uint64, c Clip) {
	s.mu.Lock()
	sc, ok := s.active[id]
	if !ok || sc.stopped {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	playing, err := s.player.Play(c.PCM)
	if err != nil {
		s.remove(id)
		return
	}

	s.mu.Lock()
	sc, ok = s.active[id]
	if !ok || sc.stopped {
		// Interrupted between scheduling and device start.
		s.mu.Unlock()
		playing.Stop()
		return
	}
	sc.playing = playing
	s.mu.Unlock()

	go func() {
		<-playing.Done()
		s.remove(id)
	}()
}

func (s *Scheduler) remove(id uint64) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// Interrupt stops every scheduled or playing clip, clears the active set and
// resets the cursor to now so new clips are not delayed by stale scheduling.
// Calling it with nothing playing is a no-op; calling it twice is the same
// as once.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	stopped := make([]Playing, 0, len(s.active))
	for id, sc := range s.active {
		sc.stopped = true
		if sc.timer != nil {
			sc.timer.Stop()
		}
		if sc.playing != nil {
			stopped = append(stopped, sc.playing)
		}
		delete(s.active, id)
	}
	s.cursor = s.now()
	s.mu.Unlock()
	for _, p := range stopped {
		p.Stop()
	}
}

// ActiveCount reports how many clips are scheduled or playing.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Cursor returns the next available start time.
func (s *Scheduler) Cursor() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
