package config

// ConfigBackend persists non-secret settings between runs, keyed by the
// dotted names in the key table. Secrets never pass through it.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}

// setSecretHint tells the user how to store the model key without an
// environment variable.
const setSecretHint = " or run `persona config set llm.api_key <key>`"
