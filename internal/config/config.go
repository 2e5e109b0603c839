package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Profile ProfileConfig
	LLM     LLMConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port      int
	Token     string  // bearer token for admin endpoints; empty disables auth
	ChatRPS   float64 // sustained /v1/chat requests per second
	ChatBurst int
}

type ProfileConfig struct {
	URL          string
	Subject      string
	KeywordsFile string
	Timeout      string
}

type LLMConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	MaxSteps int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

// FetchTimeout parses Profile.Timeout, falling back to 10s when it is empty
// or invalid.
func (c Config) FetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Profile.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// RequireLLM reports a descriptive error when no model API key is available.
func (c Config) RequireLLM() error {
	if c.LLM.APIKey != "" {
		return nil
	}
	return fmt.Errorf("missing required config: LLM API key. "+
		"Set it via environment variable PERSONA_LLM_API_KEY or GEMINI_API_KEY%s", apiKeyHint())
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:      4100,
			ChatRPS:   2,
			ChatBurst: 5,
		},
		Profile: ProfileConfig{
			URL:     "https://personal-api-orcin.vercel.app/profile",
			Subject: "Muskan",
			Timeout: "10s",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gemini-2.0-flash",
			BaseURL:  "https://generativelanguage.googleapis.com/v1beta/openai/",
			MaxSteps: 5,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, environment variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.persona.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/persona/config.json
// and secrets fall back to $XDG_DATA_HOME/persona/secrets.json.
//
// Environment variables (PERSONA_*) override backend values on all platforms.
// A missing LLM API key is not an error here; see RequireLLM.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not load .env: %v\n", err)
	}
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try platform keychain for secrets still empty.
	for _, s := range specs {
		if !s.secret || s.extract(cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, s.account()); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	return cfg, nil
}

const keychainService = "persona"

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
