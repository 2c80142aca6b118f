package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jitendra2007-rbg/friday/internal/audio"
	"github.com/Jitendra2007-rbg/friday/internal/config"
	"github.com/Jitendra2007-rbg/friday/internal/engine"
	"github.com/Jitendra2007-rbg/friday/internal/gen"
	"github.com/Jitendra2007-rbg/friday/internal/httpserver"
	"github.com/Jitendra2007-rbg/friday/internal/live"
	"github.com/Jitendra2007-rbg/friday/internal/session"
	"github.com/Jitendra2007-rbg/friday/internal/store"
	"github.com/Jitendra2007-rbg/friday/internal/stt"
	"github.com/Jitendra2007-rbg/friday/internal/tools"
	"github.com/Jitendra2007-rbg/friday/internal/wakeword"
)

// recognizerMic bundles a recognition stream with the capture device it
// reads from, so stopping the stream also releases the device.
type recognizerMic struct {
	*stt.Service
	mic *audio.Microphone
}

func (r recognizerMic) Stop() {
	r.Service.Stop()
	_ = r.mic.Close()
}

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	lease := engine.NewMicLease(cfg.MicHandoffGrace)

	db := store.NewSupabaseStore(store.SupabaseConfig{
		BaseURL:    cfg.SupabaseURL,
		ServiceKey: cfg.SupabaseServiceRoleKey,
	})
	notifier := store.NewLocalNotifier(nil)

	var media store.MediaStore
	if cfg.SupabaseURL != "" {
		m, err := store.NewSupabaseMedia(store.MediaConfig{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseServiceRoleKey,
			Bucket:         cfg.SupabaseBucket,
		})
		if err != nil {
			log.Printf("media storage disabled: %v", err)
		} else {
			media = m
		}
	}

	dispatcher := tools.NewDispatcher(cfg.OwnerID)
	dispatcher.Reminders = db
	dispatcher.Profiles = db
	dispatcher.Media = media
	dispatcher.Notifier = notifier
	dispatcher.Gen = gen.NewHTTPClient(cfg.GenURL, cfg.GenAPIKey)

	speaker, err := audio.OpenSpeaker()
	if err != nil {
		log.Fatalf("open speaker: %v", err)
	}
	defer speaker.Close()
	playback := audio.NewScheduler(speaker)

	// eng is assigned below; the closures run only after wiring completes.
	var eng *engine.Engine

	sess := session.New(session.Config{
		Dial: func(ctx context.Context) (session.Transport, error) {
			return live.Dial(ctx, cfg.LiveURL, cfg.LiveAPIKey)
		},
		Mic: func(ctx context.Context) (audio.Mic, func(), error) {
			grant, err := lease.Acquire(ctx)
			if err != nil {
				return nil, nil, err
			}
			mic, err := audio.OpenMicrophone()
			if err != nil {
				grant.Release(nil)
				return nil, nil, err
			}
			return mic, func() { grant.Release(nil) }, nil
		},
		Playback: playback,
		Tools:    dispatcher,
		Greeting: cfg.Greeting,
		Hooks: session.Hooks{
			OnStatus:            func(st session.Status) { eng.ConversationEnded(st) },
			OnCredentialInvalid: func() { eng.CredentialInvalid() },
		},
	})

	detector, err := wakeword.NewDetector(
		wakeword.Config{Phrases: cfg.WakePhrases, RestartDelay: cfg.WakeRestartDelay},
		func() (wakeword.Recognizer, error) {
			mic, err := audio.OpenMicrophone()
			if err != nil {
				if audio.IsDeviceUnavailable(err) {
					return nil, wakeword.ErrNoDevice
				}
				return nil, err
			}
			return recognizerMic{
				Service: stt.New(stt.Config{URL: cfg.STTURL, APIKey: cfg.STTAPIKey}, mic),
				mic:     mic,
			}, nil
		},
		wakeword.Events{
			OnActivated: func(phrase string) { eng.Activated(phrase) },
			OnError:     func(err error) { log.Printf("wake listener disabled: %v", err) },
		},
	)
	if err != nil {
		log.Fatalf("wake-word detector: %v", err)
	}

	eng = engine.New(engine.Config{
		Lease:        lease,
		Waker:        detector,
		Conversation: sess,
	})
	dispatcher.OnCredentialInvalid = eng.CredentialInvalid

	if err := eng.Run(context.Background()); err != nil {
		log.Fatalf("engine: %v", err)
	}

	e := httpserver.New(httpserver.Handlers{
		Start:      func() error { return eng.StartConversation(context.Background()) },
		Stop:       eng.StopConversation,
		Snapshot:   eng.Snapshot,
		Transcript: sess.Transcript,
		Reminders:  db,
		OwnerID:    cfg.OwnerID,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	eng.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
