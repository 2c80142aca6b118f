package audio

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeMic struct {
	mu     sync.Mutex
	frames [][]int16
	closed bool
}

func (m *fakeMic) Read() ([]int16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("stream closed")
	}
	if len(m.frames) == 0 {
		m.mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		m.mu.Lock()
		if m.closed {
			return nil, errors.New("stream closed")
		}
		return []int16{}, nil
	}
	f := m.frames[0]
	m.frames = m.frames[1:]
	return f, nil
}

func (m *fakeMic) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	audio  []string
	images []string
	order  []string
}

func (s *recordingSink) SendAudio(mime, data string) error {
	s.mu.Lock()
	s.audio = append(s.audio, data)
	s.order = append(s.order, "audio")
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) SendImage(mime, data string) error {
	s.mu.Lock()
	s.images = append(s.images, data)
	s.order = append(s.order, "image")
	s.mu.Unlock()
	return nil
}

func TestCapture_StreamsEncodedFrames(t *testing.T) {
	mic := &fakeMic{frames: [][]int16{{1, 2, 3}, {4, 5, 6}}}
	sink := &recordingSink{}
	c := NewCapture(mic, sink)
	c.Start()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		sink.mu.Lock()
		n := len(sink.audio)
		sink.mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	c.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.audio) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(sink.audio))
	}
	want := EncodeBase64(Int16ToPCM16LE([]int16{1, 2, 3}))
	if sink.audio[0] != want {
		t.Fatalf("frame 0 encoding mismatch")
	}
}

func TestCapture_FlushesPendingImageOnceBeforeNextFrame(t *testing.T) {
	mic := &fakeMic{frames: [][]int16{{1}, {2}, {3}}}
	sink := &recordingSink{}
	c := NewCapture(mic, sink)
	c.AttachImage("image/jpeg", "payload")
	c.Start()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		sink.mu.Lock()
		n := len(sink.audio)
		sink.mu.Unlock()
		if n >= 3 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	c.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.images) != 1 {
		t.Fatalf("expected exactly one image send, got %d", len(sink.images))
	}
	if len(sink.order) == 0 || sink.order[0] != "image" {
		t.Fatalf("image must precede the next audio frame, order=%v", sink.order)
	}
}

func TestCapture_StopIsIdempotentAndClosesMic(t *testing.T) {
	mic := &fakeMic{}
	c := NewCapture(mic, &recordingSink{})
	c.Start()
	c.Stop()
	c.Stop()
	mic.mu.Lock()
	closed := mic.closed
	mic.mu.Unlock()
	if !closed {
		t.Fatalf("expected mic closed on stop")
	}
}

func TestCapture_StopWithoutStart(t *testing.T) {
	c := NewCapture(&fakeMic{}, &recordingSink{})
	c.Stop() // must not hang or panic
}
