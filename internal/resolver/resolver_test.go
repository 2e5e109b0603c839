package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/persona/internal/profile"
)

const scenarioJSON = `{"name": "Muskan Fatima, frontend developer", "skills": ["React","Next.js"], "email": "", "social_links": {"github": "url"}}`

func scenarioDoc(t *testing.T) *profile.Document {
	t.Helper()
	doc, err := profile.Decode([]byte(scenarioJSON))
	require.NoError(t, err)
	return doc
}

func newTestResolver() *Resolver {
	return New(DefaultKeywords())
}

func TestResolve_Scenarios(t *testing.T) {
	doc := scenarioDoc(t)
	r := newTestResolver()

	tests := []struct {
		name      string
		query     string
		wantKind  Kind
		wantStage Stage
		wantField string
		wantText  string
	}{
		{"keyword phrase", "who is muskan", KindValue, StageKeyword, "name", "Muskan Fatima, frontend developer"},
		{"keyword with noise", "  WHO IS MUSKAN??  ", KindValue, StageKeyword, "name", "Muskan Fatima, frontend developer"},
		{"falsy keyword field falls through to miss", "contact", KindMiss, StageNone, "", ""},
		{"fuzzy key typo", "skils", KindValue, StageFuzzy, "skills", "[React, Next.js]"},
		{"fuzzy key with space", "socail links", KindValue, StageFuzzy, "social_links", "{github: url}"},
		{"substring scan in list", "react", KindValue, StageScan, "skills", "[React, Next.js]"},
		{"substring scan in map", "url", KindValue, StageScan, "social_links", "{github: url}"},
		{"substring scan in string", "frontend", KindValue, StageScan, "name", "Muskan Fatima, frontend developer"},
		{"keyword github", "show me her github", KindValue, StageKeyword, "social_links", "{github: url}"},
		{"nothing matches", "quantum chromodynamics", KindMiss, StageNone, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(tt.query, doc)
			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Equal(t, tt.wantStage, res.Stage)
			assert.Equal(t, tt.wantField, res.Field)
			assert.Equal(t, tt.query, res.Query)
			if tt.wantKind == KindValue {
				assert.Equal(t, tt.wantText, res.Value.Text())
			}
		})
	}
}

func TestResolve_MissEchoesOriginalQuery(t *testing.T) {
	r := New(DefaultKeywords(), WithSubject("Muskan"))
	res := r.Resolve("  Contact ", scenarioDoc(t))

	require.Equal(t, KindMiss, res.Kind)
	assert.Equal(t, "I don't have knowledge about '  Contact '. Try asking something else about Muskan.", res.Message)
	assert.Equal(t, res.Message, res.Payload())
}

func TestResolve_LaterKeywordWinsWhenEarlierFieldEmpty(t *testing.T) {
	// "email" precedes "github" in the table; email is empty so github's
	// field is returned.
	res := newTestResolver().Resolve("email or github", scenarioDoc(t))

	require.Equal(t, KindValue, res.Kind)
	assert.Equal(t, StageKeyword, res.Stage)
	assert.Equal(t, "social_links", res.Field)
}

func TestResolve_KeywordOrderIsFirstMatchWins(t *testing.T) {
	kw, err := NewKeywords(
		Keyword{Phrase: "contact", Field: "email"},
		Keyword{Phrase: "github", Field: "social_links"},
	)
	require.NoError(t, err)
	doc := profile.NewDocument(
		profile.Field{Name: "email", Value: profile.String("m@example.com")},
		profile.Field{Name: "social_links", Value: profile.Map(profile.Pair{Key: "github", Value: "url"})},
	)

	res := New(kw).Resolve("github contact", doc)
	assert.Equal(t, "email", res.Field)

	reversed, err := NewKeywords(kw.Entries()[1], kw.Entries()[0])
	require.NoError(t, err)
	res = New(reversed).Resolve("github contact", doc)
	assert.Equal(t, "social_links", res.Field)
}

func TestResolve_MissingKeywordFieldIsSkipped(t *testing.T) {
	doc := profile.NewDocument(profile.Field{Name: "name", Value: profile.String("Muskan")})
	res := newTestResolver().Resolve("projects", doc)
	assert.Equal(t, KindMiss, res.Kind)
}

func TestResolve_FuzzyFieldEmptyFallsThroughToScan(t *testing.T) {
	doc := profile.NewDocument(
		profile.Field{Name: "hobbies", Value: profile.List()},
		profile.Field{Name: "bio", Value: profile.String("loves hobbie projects")},
	)
	res := New(Keywords{}).Resolve("hobbie", doc)

	require.Equal(t, KindValue, res.Kind)
	assert.Equal(t, StageScan, res.Stage)
	assert.Equal(t, "bio", res.Field)
}

func TestResolve_ScanMatchesRenderedText(t *testing.T) {
	doc := scenarioDoc(t)
	r := newTestResolver()

	// Lists render as "[a, b]" with unquoted members.
	res := r.Resolve("react, next.js", doc)
	require.Equal(t, KindValue, res.Kind)
	assert.Equal(t, StageScan, res.Stage)
	assert.Equal(t, "skills", res.Field)

	res = r.Resolve("'react'", doc)
	assert.Equal(t, KindMiss, res.Kind)
}

func TestResolve_ScanSkipsScalarsAndNulls(t *testing.T) {
	doc, err := profile.Decode([]byte(`{"year": 2026, "flag": null, "note": "class of 2026"}`))
	require.NoError(t, err)

	res := New(Keywords{}).Resolve("2026", doc)
	require.Equal(t, KindValue, res.Kind)
	assert.Equal(t, "note", res.Field)
}

func TestResolve_EmptyQueryReturnsFirstSearchableField(t *testing.T) {
	doc, err := profile.Decode([]byte(`{"year": 2026, "title": "dev", "name": "x"}`))
	require.NoError(t, err)

	res := newTestResolver().Resolve("", doc)
	require.Equal(t, KindValue, res.Kind)
	assert.Equal(t, StageScan, res.Stage)
	assert.Equal(t, "title", res.Field)
}

func TestResolve_EmptyDocument(t *testing.T) {
	res := newTestResolver().Resolve("skills", profile.NewDocument())
	assert.Equal(t, KindMiss, res.Kind)

	res = newTestResolver().Resolve("skills", nil)
	assert.Equal(t, KindMiss, res.Kind)
}

func TestResolve_Idempotent(t *testing.T) {
	doc := scenarioDoc(t)
	r := newTestResolver()
	for _, q := range []string{"who is muskan", "contact", "skils", "react", "nothing here"} {
		first := r.Resolve(q, doc)
		second := r.Resolve(q, doc)
		assert.Equal(t, first, second, q)
	}
}

func TestLookup_FetchErrorSuppressesStages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := profile.NewClient(srv.URL, time.Second)
	for _, q := range []string{"who is muskan", "skils", "react", ""} {
		res := newTestResolver().Lookup(context.Background(), src, q)
		require.Equal(t, KindFetchError, res.Kind, q)
		assert.Equal(t, StageNone, res.Stage)
		assert.Equal(t, FetchErrorPayload{
			Error:   "Failed to fetch data",
			Details: "Error fetching data: Status code 500",
		}, res.Payload())
	}
}

func TestLookup_FetchesOncePerCall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, scenarioJSON)
	}))
	defer srv.Close()

	src := profile.NewClient(srv.URL, time.Second)
	r := newTestResolver()

	res := r.Lookup(context.Background(), src, "skils")
	require.Equal(t, KindValue, res.Kind)
	assert.Equal(t, []string{"React", "Next.js"}, res.Payload())

	r.Lookup(context.Background(), src, "react")
	assert.Equal(t, int32(2), hits.Load())
}

type errSource struct{ err error }

func (s errSource) Fetch(context.Context) (*profile.Document, error) { return nil, s.err }

func TestFetchErrorResult_PlainError(t *testing.T) {
	res := newTestResolver().Lookup(context.Background(), errSource{errors.New("dial tcp: refused")}, "q")
	assert.Equal(t, KindFetchError, res.Kind)
	assert.Equal(t, "dial tcp: refused", res.Details)
	assert.Equal(t, "Failed to fetch data: dial tcp: refused", res.Text())
}

func TestWithSubject(t *testing.T) {
	r := New(DefaultKeywords(), WithSubject("  Ada "))
	assert.Equal(t, "Ada", r.Subject())
	assert.Contains(t, r.MissMessage("x"), "about Ada.")

	r = New(DefaultKeywords(), WithSubject(""))
	assert.Equal(t, DefaultSubject, r.Subject())
}
