package audio

import (
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const captureFrames = 1600 // 100ms at 16kHz

var (
	paMu   sync.Mutex
	paRefs int
)

func paAcquire() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return err
		}
	}
	paRefs++
	return nil
}

func paRelease() {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		return
	}
	paRefs--
	if paRefs == 0 {
		_ = portaudio.Terminate()
	}
}

// Microphone is the portaudio-backed Mic at InputSampleRate mono.
type Microphone struct {
	stream *portaudio.Stream
	buffer []int16

	mu     sync.Mutex
	closed bool
}

// OpenMicrophone acquires the default capture device. The caller must Close
// it to release the hardware stream for the next lease holder.
func OpenMicrophone() (*Microphone, error) {
	if err := paAcquire(); err != nil {
		return nil, err
	}
	buffer := make([]int16, captureFrames)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(InputSampleRate), len(buffer), buffer)
	if err != nil {
		paRelease()
		return nil, err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		paRelease()
		return nil, err
	}
	return &Microphone{stream: stream, buffer: buffer}, nil
}

// Read blocks for one hardware buffer and returns a copy of its samples.
func (m *Microphone) Read() ([]int16, error) {
	if err := m.stream.Read(); err != nil {
		return nil, err
	}
	out := make([]int16, len(m.buffer))
	copy(out, m.buffer)
	return out, nil
}

// Close stops and releases the capture stream. Idempotent.
func (m *Microphone) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	err := m.stream.Stop()
	if cerr := m.stream.Close(); cerr != nil && err == nil {
		err = cerr
	}
	paRelease()
	return err
}

// IsDeviceUnavailable reports whether an audio error means no usable capture
// device rather than a transient failure.
func IsDeviceUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no default input device") ||
		strings.Contains(msg, "device unavailable") ||
		strings.Contains(msg, "invalid device")
}

// Speaker renders PCM16LE mono buffers at OutputSampleRate through the
// default output device. One Speaker serves the whole engine; the Scheduler
// serializes clips so writes never interleave.
type Speaker struct {
	mu     sync.Mutex
	closed bool
}

// OpenSpeaker prepares the output device.
func OpenSpeaker() (*Speaker, error) {
	if err := paAcquire(); err != nil {
		return nil, err
	}
	return &Speaker{}, nil
}

const speakerChunk = 1200 // 50ms at 24kHz

// Play starts rendering the buffer and returns a stoppable handle.
func (s *Speaker) Play(pcm []byte) (Playing, error) {
	samples := PCM16LEToInt16(pcm)
	buffer := make([]int16, speakerChunk)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(OutputSampleRate), len(buffer), buffer)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, err
	}
	p := &speakerPlaying{stream: stream, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
	go p.run(samples, buffer)
	return p, nil
}

// Close releases the output device once nothing is playing.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	paRelease()
	return nil
}

type speakerPlaying struct {
	stream *portaudio.Stream
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

func (p *speakerPlaying) run(samples []int16, buffer []int16) {
	defer close(p.doneCh)
	defer func() {
		_ = p.stream.Stop()
		_ = p.stream.Close()
	}()
	for off := 0; off < len(samples); off += len(buffer) {
		select {
		case <-p.stopCh:
			return
		default:
		}
		n := copy(buffer, samples[off:])
		for i := n; i < len(buffer); i++ {
			buffer[i] = 0
		}
		if err := p.stream.Write(); err != nil {
			return
		}
	}
}

func (p *speakerPlaying) Stop()                 { p.once.Do(func() { close(p.stopCh) }) }
func (p *speakerPlaying) Done() <-chan struct{} { return p.doneCh }
