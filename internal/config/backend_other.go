//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

const appDir = "persona"

// xdgPath resolves elem under the XDG base directory named by env, falling
// back to $HOME/rel, then to the working directory.
func xdgPath(env, rel string, elem ...string) string {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			base = "."
		} else {
			base = filepath.Join(home, rel)
		}
	}
	return filepath.Join(append([]string{base}, elem...)...)
}

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), appDir)
}

func configFilePath() string {
	return xdgPath("XDG_CONFIG_HOME", ".config", appDir, "config.json")
}

func apiKeyHint() string {
	return setSecretHint + " (saved to " + secretsFilePath() + ")"
}

// readJSONFile decodes path into v. A missing file leaves v untouched.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSONFile stores v as indented JSON readable only by the owner.
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// jsonFileBackend keeps settings as one flat JSON object keyed by the
// dotted setting names.
type jsonFileBackend struct {
	path     string
	settings map[string]any
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(configFilePath())
}

// newFileBackend loads path. An unreadable or corrupt file is logged and
// treated as empty so the built-in defaults apply.
func newFileBackend(path string) *jsonFileBackend {
	b := &jsonFileBackend{path: path, settings: map[string]any{}}
	if err := readJSONFile(path, &b.settings); err != nil {
		slog.Warn("ignoring settings file", "path", path, "error", err)
		b.settings = nil
	}
	if b.settings == nil {
		b.settings = map[string]any{}
	}
	return b
}

func (b *jsonFileBackend) GetString(key string) (string, bool, error) {
	switch v := b.settings[key].(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	default:
		return fmt.Sprint(v), true, nil
	}
}

func (b *jsonFileBackend) GetInt(key string) (int, bool, error) {
	switch v := b.settings[key].(type) {
	case nil:
		return 0, false, nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt || v > math.MaxInt {
			return 0, true, fmt.Errorf("setting %s = %v is not an integer", key, v)
		}
		return int(v), true, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, true, fmt.Errorf("setting %s is not an integer: %w", key, err)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("setting %s has type %T, want integer", key, v)
	}
}

func (b *jsonFileBackend) SetString(key, val string) error {
	b.settings[key] = val
	return writeJSONFile(b.path, b.settings)
}

func (b *jsonFileBackend) SetInt(key string, val int) error {
	b.settings[key] = val
	return writeJSONFile(b.path, b.settings)
}

func (b *jsonFileBackend) Delete(key string) error {
	delete(b.settings, key)
	return writeJSONFile(b.path, b.settings)
}
