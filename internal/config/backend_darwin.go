//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Settings live in the user defaults domain, inspectable with
// `defaults read com.kalambet.persona`.
const defaultsDomain = "com.kalambet.persona"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "persona")
	}
	return filepath.Join(home, "Library", "Application Support", "persona")
}

func apiKeyHint() string {
	return setSecretHint + " (saved to the login keychain)"
}

type defaultsBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return defaultsBackend{domain: defaultsDomain}
}

// run invokes the defaults tool against the persona domain.
func (b defaultsBackend) run(verb, key string, extra ...string) ([]byte, error) {
	args := append([]string{verb, b.domain, key}, extra...)
	return exec.Command("defaults", args...).CombinedOutput()
}

func (b defaultsBackend) GetString(key string) (string, bool, error) {
	out, err := b.run("read", key)
	val := strings.TrimSpace(string(out))
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return val, true, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		// defaults exits 1 when the key has never been written.
		return "", false, nil
	default:
		return "", false, fmt.Errorf("defaults read %s: %w (%s)", key, err, val)
	}
}

func (b defaultsBackend) GetInt(key string) (int, bool, error) {
	val, ok, err := b.GetString(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, true, fmt.Errorf("setting %s is not an integer: %w", key, err)
	}
	return n, true, nil
}

func (b defaultsBackend) SetString(key, val string) error {
	return b.write(key, "-string", val)
}

func (b defaultsBackend) SetInt(key string, val int) error {
	return b.write(key, "-int", strconv.Itoa(val))
}

func (b defaultsBackend) Delete(key string) error {
	if out, err := b.run("delete", key); err != nil {
		return fmt.Errorf("defaults delete %s: %w (%s)", key, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b defaultsBackend) write(key, typeFlag, val string) error {
	if out, err := b.run("write", key, typeFlag, val); err != nil {
		return fmt.Errorf("defaults write %s: %w (%s)", key, err, strings.TrimSpace(string(out)))
	}
	return nil
}
