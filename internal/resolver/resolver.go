// Package resolver maps free-text questions to fields of a profile document.
//
// Resolution runs three stages in strict precedence and the first success
// wins:
//
//  1. keyword phrases, in table order, found inside the normalized query;
//  2. the single top-level field name most similar to the query (ratio >= 0.5);
//  3. the first field, in document order, whose stringified value contains
//     the query.
//
// A stage that selects a field with an empty value yields nothing and the
// next stage runs. When no stage succeeds the result is a miss message that
// echoes the query.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/persona/internal/profile"
)

// DefaultSubject is the person named in miss messages when none is configured.
const DefaultSubject = "Muskan"

// Resolver holds the immutable inputs of resolution. It is safe for
// concurrent use.
type Resolver struct {
	keywords Keywords
	subject  string
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSubject sets the name used in miss messages.
func WithSubject(subject string) Option {
	return func(r *Resolver) {
		if s := strings.TrimSpace(subject); s != "" {
			r.subject = s
		}
	}
}

// WithLogger sets the logger for stage decisions.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver over the given keyword table.
func New(keywords Keywords, opts ...Option) *Resolver {
	r := &Resolver{
		keywords: keywords,
		subject:  DefaultSubject,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Keywords returns the resolver's keyword table.
func (r *Resolver) Keywords() Keywords { return r.keywords }

// Subject returns the name used in miss messages.
func (r *Resolver) Subject() string { return r.subject }

// Normalize case-folds and trims a query.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Resolve matches query against doc. It has no side effects beyond metrics
// and debug logging, and returns the same result for the same inputs.
func (r *Resolver) Resolve(query string, doc *profile.Document) Result {
	res := r.resolve(query, doc)
	recordLookup(res)
	return res
}

func (r *Resolver) resolve(query string, doc *profile.Document) Result {
	q := Normalize(query)

	for _, kw := range r.keywords.Matches(q) {
		v, ok := doc.Get(kw.Field)
		if ok && v.Truthy() {
			r.logger.Debug("resolved by keyword", "phrase", kw.Phrase, "field", kw.Field)
			return valueResult(query, StageKeyword, kw.Field, v)
		}
		r.logger.Debug("keyword field empty", "phrase", kw.Phrase, "field", kw.Field)
	}

	if key, score, ok := closestKey(q, doc.Keys(), fuzzyCutoff); ok {
		v, _ := doc.Get(key)
		if v.Truthy() {
			r.logger.Debug("resolved by fuzzy key", "field", key, "ratio", score)
			return valueResult(query, StageFuzzy, key, v)
		}
		r.logger.Debug("fuzzy field empty", "field", key, "ratio", score)
	}

	for _, f := range doc.Fields() {
		if !f.Value.Searchable() {
			continue
		}
		if strings.Contains(strings.ToLower(f.Value.Text()), q) {
			r.logger.Debug("resolved by value scan", "field", f.Name)
			return valueResult(query, StageScan, f.Name, f.Value)
		}
	}

	r.logger.Debug("no match", "query", query)
	return Result{
		Kind:    KindMiss,
		Stage:   StageNone,
		Query:   query,
		Message: r.MissMessage(query),
	}
}

// MissMessage is the reply given when nothing in the profile matches query.
func (r *Resolver) MissMessage(query string) string {
	return fmt.Sprintf("I don't have knowledge about '%s'. Try asking something else about %s.", query, r.subject)
}

// Lookup fetches a fresh document from src and resolves query against it.
// A fetch failure is returned as a KindFetchError result and no matching
// stage runs.
func (r *Resolver) Lookup(ctx context.Context, src profile.Source, query string) Result {
	start := time.Now()
	doc, err := src.Fetch(ctx)
	fetchSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		res := FetchErrorResult(query, err)
		r.logger.Warn("profile fetch failed", "error", err)
		recordLookup(res)
		return res
	}
	return r.Resolve(query, doc)
}

// FetchErrorResult converts a fetch failure into a result.
func FetchErrorResult(query string, err error) Result {
	details := err.Error()
	var fe *profile.FetchError
	if errors.As(err, &fe) {
		details = fe.Error()
	}
	return Result{
		Kind:    KindFetchError,
		Stage:   StageNone,
		Query:   query,
		Error:   FetchErrorLabel,
		Details: details,
	}
}

func valueResult(query string, stage Stage, field string, v profile.Value) Result {
	return Result{
		Kind:  KindValue,
		Stage: stage,
		Query: query,
		Field: field,
		Value: v,
	}
}
