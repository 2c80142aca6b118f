package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	// Live is the streaming inference endpoint the conversation runs over.
	LiveURL    string
	LiveAPIKey string

	// STT backs the wake-word recognizer.
	STTURL    string
	STTAPIKey string

	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseBucket         string

	// Gen serves image generation and product search tool calls.
	GenURL    string
	GenAPIKey string

	OwnerID     string
	WakePhrases []string
	Greeting    string

	// WakeRestartDelay spaces out recognition restarts after an utterance
	// ends without a match.
	WakeRestartDelay time.Duration
	// MicHandoffGrace lets the OS settle between one holder closing the
	// microphone and the next opening it.
	MicHandoffGrace time.Duration
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	liveKey := os.Getenv("LIVE_API_KEY")
	if liveKey == "" {
		log.Println("Warning: LIVE_API_KEY not set - conversations will not connect")
	}
	liveURL := os.Getenv("LIVE_URL")
	if liveURL == "" {
		liveURL = "wss://generativelanguage.googleapis.com/ws/live"
	}

	sttKey := os.Getenv("STT_API_KEY")
	if sttKey == "" {
		log.Println("Warning: STT_API_KEY not set - wake-word detection will not work")
	}
	sttURL := os.Getenv("STT_URL")
	if sttURL == "" {
		sttURL = "wss://streaming.assemblyai.com/v3/ws"
	}

	bucket := os.Getenv("SUPABASE_BUCKET")
	if bucket == "" {
		bucket = "generated-media"
	}

	owner := os.Getenv("OWNER_ID")
	if owner == "" {
		owner = "local-user"
	}

	phrases := splitList(os.Getenv("WAKE_PHRASES"))
	if len(phrases) == 0 {
		phrases = []string{"hey friday", "friday"}
	}

	return Config{
		HTTPAddress:            addr,
		LiveURL:                liveURL,
		LiveAPIKey:             liveKey,
		STTURL:                 sttURL,
		STTAPIKey:              sttKey,
		SupabaseURL:            os.Getenv("SUPABASE_URL"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:         bucket,
		GenURL:                 os.Getenv("GEN_URL"),
		GenAPIKey:              os.Getenv("GEN_API_KEY"),
		OwnerID:                owner,
		WakePhrases:            phrases,
		Greeting:               os.Getenv("GREETING_PROMPT"),
		WakeRestartDelay:       durationMS("WAKE_RESTART_DELAY_MS", 300),
		MicHandoffGrace:        durationMS("MIC_HANDOFF_GRACE_MS", 300),
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationMS(key string, def int) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Millisecond
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("Warning: invalid %s=%q, using %dms", key, v, def)
		return time.Duration(def) * time.Millisecond
	}
	return time.Duration(n) * time.Millisecond
}
