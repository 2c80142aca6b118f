package audio

import (
	"log"
	"sync"
)

// Mic reads one hardware buffer of 16kHz mono samples per call.
type Mic interface {
	Read() ([]int16, error)
	Close() error
}

// FrameSink receives encoded capture frames and out-of-band payloads.
// Sends are fire-and-forget from the pipeline's point of view; back-pressure
// belongs to the transport.
type FrameSink interface {
	SendAudio(mimeType, data string) error
	SendImage(mimeType, data string) error
}

// Capture pulls live microphone buffers, converts them to base64 PCM16LE and
// forwards them to the sink until stopped.
type Capture struct {
	mic  Mic
	sink FrameSink

	mu           sync.Mutex
	pendingImage *pendingImage
	stopCh       chan struct{}
	doneCh       chan struct{}
	started      bool
	stopped      bool
}

type pendingImage struct{ mime, data string }

// NewCapture builds a pipeline over an open microphone and a live sink.
func NewCapture(mic Mic, sink FrameSink) *Capture {
	return &Capture{mic: mic, sink: sink, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
}

// AttachImage stages an out-of-band image payload. It is flushed exactly once,
// immediately before the next audio frame, then cleared. A second attach
// before the flush replaces the first.
func (c *Capture) AttachImage(mimeType, data string) {
	c.mu.Lock()
	c.pendingImage = &pendingImage{mime: mimeType, data: data}
	c.mu.Unlock()
}

// Start begins the read loop. Calling it twice is a no-op.
func (c *Capture) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()
	go c.run()
}

func (c *Capture) run() {
	defer close(c.doneCh)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}
		samples, err := c.mic.Read()
		if err != nil {
			select {
			case <-c.stopCh:
			default:
				log.Printf("capture: mic read error: %v", err)
			}
			return
		}
		if len(samples) == 0 {
			continue
		}
		c.mu.Lock()
		img := c.pendingImage
		c.pendingImage = nil
		c.mu.Unlock()
		if img != nil {
			if err := c.sink.SendImage(img.mime, img.data); err != nil {
				log.Printf("capture: image send error: %v", err)
			}
		}
		if err := c.sink.SendAudio(MimePCM16k, EncodeBase64(Int16ToPCM16LE(samples))); err != nil {
			log.Printf("capture: frame send error: %v", err)
		}
	}
}

// Stop ends the read loop, closes the microphone to unblock any in-flight
// read, and waits for the loop to exit so device teardown is complete when it
// returns. Idempotent; the pending image, if any, is discarded.
func (c *Capture) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.pendingImage = nil
	started := c.started
	close(c.stopCh)
	c.mu.Unlock()
	_ = c.mic.Close()
	if started {
		<-c.doneCh
	}
}
