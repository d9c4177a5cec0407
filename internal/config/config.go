package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the terminal configuration.
type Config struct {
	HTTPAddress    string
	BackendBaseURL string
	BackendToken   string
	STTWSEndpoint  string
	DeepgramAPIKey string
	DeepgramModel  string
	IdleTimeout    time.Duration
	Mobile         bool
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file loaded")
	}

	addr := getEnv("HTTP_ADDRESS", ":8080")

	backend := getEnv("BACKEND_BASE_URL", "http://localhost:8000")
	token := os.Getenv("BACKEND_TOKEN")
	if token == "" {
		log.Println("Warning: BACKEND_TOKEN not set - backend requests will be unauthenticated")
	}

	sttWS := os.Getenv("STT_WS_ENDPOINT")
	if sttWS == "" {
		log.Println("Warning: STT_WS_ENDPOINT not set - voice commands must come through the HTTP surface")
	}

	dgKey := os.Getenv("DEEPGRAM_API_KEY")
	if dgKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - speech synthesis will be silent")
	}
	dgModel := getEnv("DEEPGRAM_TTS_MODEL", "aura-2-celeste-es")

	idle := 180 * time.Second
	if raw := os.Getenv("IDLE_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			log.Printf("config: invalid IDLE_TIMEOUT_SECONDS=%q, keeping %s", raw, idle)
		} else {
			idle = time.Duration(secs) * time.Second
		}
	}

	mobile, _ := strconv.ParseBool(os.Getenv("MOBILE_MODE"))

	log.Printf("config: HTTP_ADDRESS=%s backend=%s", addr, backend)
	return Config{
		HTTPAddress:    addr,
		BackendBaseURL: backend,
		BackendToken:   token,
		STTWSEndpoint:  sttWS,
		DeepgramAPIKey: dgKey,
		DeepgramModel:  dgModel,
		IdleTimeout:    idle,
		Mobile:         mobile,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
