package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	// Settings are the user-facing preferences; SettingsFile, when set, overrides them.
	Settings     Settings
	SettingsFile string
	STTModel     string
	PromptFile   string
	// Storage: DatabaseURL wins over DataDir; neither means in-memory only.
	DatabaseURL string
	DataDir     string
	MaxHistory  int
	// Chat requests per minute per client; 0 disables limiting.
	ChatRatePerMin int
	Inject         InjectConfig
	Browser        BrowserConfig
}

// BrowserConfig is used by assistctl when it drives a Chrome tab.
type BrowserConfig struct {
	Headless  bool
	RemoteURL string
}

type InjectConfig struct {
	PollTimeout   time.Duration
	PollInterval  time.Duration
	SettleDelay   time.Duration
	MaxCycles     int
	PendingMaxAge time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:          getEnvDefault("PORT", "8080"),
		AllowedOrigin: getEnvDefault("ALLOWED_ORIGIN", "*"),
		Settings: Settings{
			Provider:     getEnvDefault("PROVIDER", "openai"),
			APIKey:       os.Getenv("OPENAI_API_KEY"),
			Model:        getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature:  float32(getEnvFloatDefault("OPENAI_TEMPERATURE", 0.2)),
			BaseURL:      os.Getenv("OPENAI_BASE_URL"),
			AllowedSites: getEnvListDefault("ALLOWED_SITES", nil),
			UILang:       getEnvDefault("UI_LANG", "de"),
		},
		SettingsFile:   os.Getenv("SETTINGS_FILE"),
		STTModel:       getEnvDefault("OPENAI_STT_MODEL", "whisper-1"),
		PromptFile:     os.Getenv("PROMPT_FILE"),
		DatabaseURL:    os.Getenv("DB_URL"),
		DataDir:        os.Getenv("DATA_DIR"),
		MaxHistory:     getEnvIntDefault("MAX_HISTORY", 40),
		ChatRatePerMin: getEnvIntDefault("CHAT_RATE_PER_MIN", 20),
		Inject: InjectConfig{
			PollTimeout:   getEnvDurationDefault("INJECT_POLL_TIMEOUT", 8*time.Second),
			PollInterval:  getEnvDurationDefault("INJECT_POLL_INTERVAL", 150*time.Millisecond),
			SettleDelay:   getEnvDurationDefault("INJECT_SETTLE_DELAY", 300*time.Millisecond),
			MaxCycles:     getEnvIntDefault("INJECT_MAX_CYCLES", 3),
			PendingMaxAge: getEnvDurationDefault("PENDING_MAX_AGE", 30*time.Minute),
		},
		Browser: BrowserConfig{
			Headless:  getEnvBoolDefault("BROWSER_HEADLESS", false),
			RemoteURL: os.Getenv("CHROME_REMOTE_URL"),
		},
	}
	if cfg.SettingsFile != "" {
		s, err := LoadSettings(cfg.SettingsFile, cfg.Settings)
		if err != nil {
			log.Printf("warning: could not read settings file %s: %v", cfg.SettingsFile, err)
		} else {
			cfg.Settings = s
		}
	}
	if cfg.Settings.APIKey == "" {
		log.Println("warning: no API key configured; chat requests will report missingApiKey")
	}
	return cfg
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("warning: %s=%q is not an integer, using %d", key, v, def)
	}
	return def
}

func getEnvFloatDefault(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("warning: %s=%q is not a number, using %g", key, v, def)
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("warning: %s=%q is not a duration, using %s", key, v, def)
	}
	return def
}
