package resolver

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// Keyword maps a phrase to the profile field it selects.
type Keyword struct {
	Phrase string `yaml:"phrase" json:"phrase"`
	Field  string `yaml:"field" json:"field"`
}

// Keywords is an ordered keyword table. Order is significant: during
// matching the first phrase contained in the query wins.
type Keywords struct {
	entries []Keyword
}

type keywordsFile struct {
	Keywords []Keyword `yaml:"keywords"`
}

var (
	defaultKeywords    Keywords
	defaultKeywordsErr error
	defaultKeywordsOne sync.Once
)

// DefaultKeywords returns the built-in keyword table.
func DefaultKeywords() Keywords {
	defaultKeywordsOne.Do(func() {
		defaultKeywords, defaultKeywordsErr = ParseKeywords(defaultKeywordsYAML)
		if defaultKeywordsErr == nil {
			slog.Debug("keyword table loaded", "source", "builtin", "count", defaultKeywords.Len())
		}
	})
	if defaultKeywordsErr != nil {
		panic(fmt.Sprintf("resolver: built-in keyword table: %v", defaultKeywordsErr))
	}
	return defaultKeywords
}

// LoadKeywords reads a keyword table from a YAML file. An empty path
// returns the built-in table.
func LoadKeywords(path string) (Keywords, error) {
	if path == "" {
		return DefaultKeywords(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Keywords{}, fmt.Errorf("reading keyword table: %w", err)
	}
	kw, err := ParseKeywords(data)
	if err != nil {
		return Keywords{}, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("keyword table loaded", "source", path, "count", kw.Len())
	return kw, nil
}

// ParseKeywords decodes a YAML keyword table. Phrases are lowercased and
// trimmed; an entry with an empty phrase or field is rejected.
func ParseKeywords(data []byte) (Keywords, error) {
	var f keywordsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Keywords{}, fmt.Errorf("parsing keyword table: %w", err)
	}
	return NewKeywords(f.Keywords...)
}

// NewKeywords builds a table from entries in the given order.
func NewKeywords(entries ...Keyword) (Keywords, error) {
	out := make([]Keyword, 0, len(entries))
	for i, e := range entries {
		phrase := strings.ToLower(strings.TrimSpace(e.Phrase))
		field := strings.TrimSpace(e.Field)
		if phrase == "" {
			return Keywords{}, fmt.Errorf("keyword %d: empty phrase", i)
		}
		if field == "" {
			return Keywords{}, fmt.Errorf("keyword %d (%q): empty field", i, phrase)
		}
		out = append(out, Keyword{Phrase: phrase, Field: field})
	}
	return Keywords{entries: out}, nil
}

// Len returns the number of entries.
func (k Keywords) Len() int { return len(k.entries) }

// Entries returns a copy of the table in declared order.
func (k Keywords) Entries() []Keyword {
	out := make([]Keyword, len(k.entries))
	copy(out, k.entries)
	return out
}

// Matches returns, in declared order, every entry whose phrase occurs in
// the normalized query.
func (k Keywords) Matches(normalized string) []Keyword {
	var out []Keyword
	for _, e := range k.entries {
		if strings.Contains(normalized, e.Phrase) {
			out = append(out, e)
		}
	}
	return out
}
