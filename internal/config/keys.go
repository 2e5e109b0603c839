package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	aliases []string // fallback env vars, consulted in order when env is unset
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

// account is the keychain account name for a secret key.
func (s keySpec) account() string {
	return strings.ReplaceAll(s.key, ".", "_")
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "PERSONA_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "PERSONA_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "server.chat_rps", typ: kFloat, env: "PERSONA_SERVER_CHAT_RPS",
		apply:   func(cfg *Config, v any) { cfg.Server.ChatRPS = v.(float64) },
		extract: func(cfg Config) any { return cfg.Server.ChatRPS },
	},
	{
		key: "server.chat_burst", typ: kInt, env: "PERSONA_SERVER_CHAT_BURST",
		apply:   func(cfg *Config, v any) { cfg.Server.ChatBurst = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.ChatBurst },
	},
	{
		key: "profile.url", typ: kString, env: "PERSONA_PROFILE_URL",
		apply:   func(cfg *Config, v any) { cfg.Profile.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Profile.URL },
	},
	{
		key: "profile.subject", typ: kString, env: "PERSONA_PROFILE_SUBJECT",
		apply:   func(cfg *Config, v any) { cfg.Profile.Subject = v.(string) },
		extract: func(cfg Config) any { return cfg.Profile.Subject },
	},
	{
		key: "profile.keywords_file", typ: kString, env: "PERSONA_PROFILE_KEYWORDS_FILE",
		apply:   func(cfg *Config, v any) { cfg.Profile.KeywordsFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Profile.KeywordsFile },
	},
	{
		key: "profile.timeout", typ: kString, env: "PERSONA_PROFILE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Profile.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Profile.Timeout },
	},
	{
		key: "llm.provider", typ: kString, env: "PERSONA_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.model", typ: kString, env: "PERSONA_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.base_url", typ: kString, env: "PERSONA_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.api_key", typ: kString, env: "PERSONA_LLM_API_KEY", aliases: []string{"GEMINI_API_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.max_steps", typ: kInt, env: "PERSONA_LLM_MAX_STEPS",
		apply:   func(cfg *Config, v any) { cfg.LLM.MaxSteps = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.MaxSteps },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PERSONA_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "PERSONA_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "PERSONA_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

// lookupEnv returns the first non-empty value among the spec's env var and
// its aliases.
func (s keySpec) lookupEnv() (name, value string) {
	for _, n := range append([]string{s.env}, s.aliases...) {
		if n == "" {
			continue
		}
		if v := os.Getenv(n); v != "" {
			return n, v
		}
	}
	return "", ""
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		name, raw := s.lookupEnv()
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		}
	}
}
