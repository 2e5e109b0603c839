//go:build !darwin

package config

import (
	"fmt"
	"path/filepath"
)

// secrets.json maps service -> account -> value and stands in for the
// macOS keychain. It lives next to the session database.
type secretsFile map[string]map[string]string

func secretsFilePath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}

func loadSecrets() (secretsFile, error) {
	s := secretsFile{}
	if err := readJSONFile(secretsFilePath(), &s); err != nil {
		return nil, fmt.Errorf("reading secrets: %w", err)
	}
	return s, nil
}

func keychainExec(service, account string) ([]byte, error) {
	s, err := loadSecrets()
	if err != nil {
		return nil, err
	}
	val, ok := s[service][account]
	if !ok {
		return nil, fmt.Errorf("no secret %s/%s in %s", service, account, secretsFilePath())
	}
	return []byte(val), nil
}

func keychainSet(service, account, value string) error {
	s, err := loadSecrets()
	if err != nil || s == nil {
		// A corrupt file is replaced.
		s = secretsFile{}
	}
	if s[service] == nil {
		s[service] = map[string]string{}
	}
	s[service][account] = value
	return writeJSONFile(secretsFilePath(), s)
}
