package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the interview voice service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowedOrigins []string

	GroqAPIBaseURL     string
	GroqAPIKey         string
	GroqAPIKeySecond   string
	GroqRequestTimeout time.Duration

	GroqSTTModel  string
	GroqLLMModel  string
	GroqEvalModel string

	GroqTTSModel  string
	GroqTTSVoice  string
	GroqTTSFormat string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "parakh"),
		GroqAPIBaseURL:   envOrDefault("GROQ_API_BASE_URL", "https://api.groq.com"),
		GroqAPIKey:       trimmedEnv("GROQ_API_KEY"),
		GroqAPIKeySecond: trimmedEnv("GROQ_API_KEY_2"),
		// Fast, free-tier friendly defaults.
		GroqSTTModel:       envOrDefault("GROQ_STT_MODEL", "whisper-large-v3"),
		GroqLLMModel:       envOrDefault("GROQ_LLM_MODEL", "llama-3.1-8b-instant"),
		GroqEvalModel:      envOrDefault("GROQ_EVAL_MODEL", "llama-3.3-70b-versatile"),
		GroqTTSModel:       envOrDefault("GROQ_TTS_MODEL", "playai-tts"),
		GroqTTSVoice:       envOrDefault("GROQ_TTS_VOICE", "Fritz-PlayAI"),
		GroqTTSFormat:      envOrDefault("GROQ_TTS_FORMAT", "wav"),
		GroqRequestTimeout: 60 * time.Second,
		DatabaseURL:        trimmedEnv("DATABASE_URL"),
		ShutdownTimeout:    15 * time.Second,
	}

	cfg.AllowedOrigins = originsFromEnv()

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GroqRequestTimeout, err = durationFromEnv("GROQ_REQUEST_TIMEOUT", cfg.GroqRequestTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.GroqRequestTimeout < time.Second {
		return Config{}, fmt.Errorf("GROQ_REQUEST_TIMEOUT must be at least 1s")
	}
	if strings.TrimSpace(cfg.GroqTTSFormat) == "" {
		return Config{}, fmt.Errorf("GROQ_TTS_FORMAT must not be empty")
	}

	return cfg, nil
}

// Keys returns the configured Groq API keys in priority order, skipping
// blanks. Duplicate handling is left to the client pool.
func (c Config) Keys() []string {
	var keys []string
	for _, k := range []string{c.GroqAPIKey, c.GroqAPIKeySecond} {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, strings.TrimSpace(k))
		}
	}
	return keys
}

func originsFromEnv() []string {
	seen := map[string]bool{}
	var origins []string
	add := func(raw string) {
		o := strings.TrimRight(strings.TrimSpace(raw), "/")
		if o == "" || seen[o] {
			return
		}
		seen[o] = true
		origins = append(origins, o)
	}

	for _, part := range strings.Split(os.Getenv("APP_ALLOWED_ORIGINS"), ",") {
		add(part)
	}
	// Compat with the single-origin variable used by the web client.
	add(envOrDefault("FRONTEND_URL", "http://localhost:5173"))
	add("http://localhost:3000")
	return origins
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}
