package bootstrap

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string

	GladiaAPIKey     string
	MistralAPIKey    string
	MistralModel     string
	ElevenLabsAPIKey string
	ElevenLabsModel  string
	PreferredSTT     string

	Language       string
	TargetLanguage string
	SampleRate     int
	RequestTimeout time.Duration
	SessionTimeout time.Duration

	HoldThreshold   time.Duration
	DoubleTapWindow time.Duration

	CaptureCommand []string
	QueueCapacity  int

	TimingDBPath  string
	TimingEnabled bool
}

// LoadConfig reads .env files before the environment so a packaged install,
// the working directory, and the user config dir all work without flags.
// Environment variables already set win over file values.
func LoadConfig() *Config {
	loadEnvFiles()

	return &Config{
		ServerAddr: getEnv("DICTON_SERVER_ADDR", "127.0.0.1:8765"),

		GladiaAPIKey:     getEnv("GLADIA_API_KEY", ""),
		MistralAPIKey:    getEnv("MISTRAL_API_KEY", ""),
		MistralModel:     getEnv("MISTRAL_STT_MODEL", ""),
		ElevenLabsAPIKey: getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsModel:  getEnv("ELEVENLABS_MODEL", ""),
		PreferredSTT:     getEnv("STT_PROVIDER", ""),

		Language:       getEnv("STT_LANGUAGE", ""),
		TargetLanguage: getEnv("TRANSLATION_TARGET", "en"),
		SampleRate:     getEnvInt("AUDIO_SAMPLE_RATE", 16000),
		RequestTimeout: getEnvDuration("STT_TIMEOUT", 30*time.Second),
		SessionTimeout: getEnvDuration("SESSION_TIMEOUT", 120*time.Second),

		HoldThreshold:   getEnvDuration("HOLD_THRESHOLD", 100*time.Millisecond),
		DoubleTapWindow: getEnvDuration("DOUBLE_TAP_WINDOW", 300*time.Millisecond),

		CaptureCommand: strings.Fields(getEnv("CAPTURE_COMMAND", "")),
		QueueCapacity:  getEnvInt("AUDIO_QUEUE_CAPACITY", 64),

		TimingDBPath:  getEnv("TIMING_DB_PATH", defaultTimingDBPath()),
		TimingEnabled: getEnv("TIMING_ENABLED", "true") == "true",
	}
}

// envPaths lists the .env locations in load order; the first match wins
// for keys not already present in the environment.
func envPaths() []string {
	paths := []string{}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "dicton", ".env"))
	}
	paths = append(paths, ".env", "/opt/dicton/.env")
	return paths
}

func loadEnvFiles() {
	for _, path := range envPaths() {
		if _, err := os.Stat(path); err == nil {
			godotenv.Load(path)
		}
	}
}

func defaultTimingDBPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "dicton-timings.db"
	}
	return filepath.Join(configDir, "dicton", "timings.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
