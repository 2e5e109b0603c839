package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
	"name": "Muskan Fatima, frontend developer",
	"skills": ["React", "Next.js"],
	"email": "",
	"social_links": {"github": "url", "linkedin": "li"},
	"graduation": 2026,
	"open_to_work": false,
	"nickname": null
}`

func TestDecode_PreservesOrderAndShapes(t *testing.T) {
	doc, err := Decode([]byte(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"name", "skills", "email", "social_links", "graduation", "open_to_work", "nickname"},
		doc.Keys())

	name, ok := doc.Get("name")
	require.True(t, ok)
	assert.Equal(t, KindString, name.Kind())
	assert.Equal(t, "Muskan Fatima, frontend developer", name.Str())

	skills, _ := doc.Get("skills")
	assert.Equal(t, KindList, skills.Kind())
	assert.Equal(t, []string{"React", "Next.js"}, skills.Items())

	links, _ := doc.Get("social_links")
	assert.Equal(t, KindMap, links.Kind())
	assert.Equal(t, []Pair{{"github", "url"}, {"linkedin", "li"}}, links.Pairs())

	grad, _ := doc.Get("graduation")
	assert.Equal(t, KindScalar, grad.Kind())
	assert.True(t, grad.Truthy())

	otw, _ := doc.Get("open_to_work")
	assert.False(t, otw.Truthy())

	nick, _ := doc.Get("nickname")
	assert.Equal(t, KindNull, nick.Kind())

	_, ok = doc.Get("missing")
	assert.False(t, ok)
}

func TestDecode_DuplicateKeyKeepsFirstPositionLastValue(t *testing.T) {
	doc, err := Decode([]byte(`{"a": "1", "b": "2", "a": "3"}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, doc.Keys())
	v, _ := doc.Get("a")
	assert.Equal(t, "3", v.Str())
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"invalid", `{"name":`, ErrInvalidJSON},
		{"empty", ``, ErrInvalidJSON},
		{"array root", `["a"]`, ErrNotObject},
		{"string root", `"a"`, ErrNotObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecode_NonStringElementsKeepRawText(t *testing.T) {
	doc, err := Decode([]byte(`{"mixed": ["a", 1, true], "nested": {"k": {"x": 1}}}`))
	require.NoError(t, err)

	mixed, _ := doc.Get("mixed")
	assert.Equal(t, []string{"a", "1", "true"}, mixed.Items())

	nested, _ := doc.Get("nested")
	assert.Equal(t, `{k: {"x": 1}}`, nested.Text())
}

func TestValue_Text(t *testing.T) {
	assert.Equal(t, "hello", String("hello").Text())
	assert.Equal(t, "[React, Next.js]", List("React", "Next.js").Text())
	assert.Equal(t, "[]", List().Text())
	assert.Equal(t, "{github: url, linkedin: li}",
		Map(Pair{"github", "url"}, Pair{"linkedin", "li"}).Text())
	assert.Equal(t, "", Null().Text())
}

func TestValue_Truthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"empty string", String(""), false},
		{"string", String("x"), true},
		{"empty list", List(), false},
		{"list", List("a"), true},
		{"empty map", Map(), false},
		{"map", Map(Pair{"k", "v"}), true},
		{"zero", Scalar("0"), false},
		{"zero float", Scalar("0.0"), false},
		{"number", Scalar("3"), true},
		{"false", Scalar("false"), false},
		{"true", Scalar("true"), true},
		{"null", Null(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Truthy())
		})
	}
}

func TestDocument_MarshalJSONKeepsOrder(t *testing.T) {
	doc, err := Decode([]byte(`{"z": "1", "a": ["x"], "m": {"b": "2", "a": "1"}, "n": 5}`))
	require.NoError(t, err)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"1","a":["x"],"m":{"b":"2","a":"1"},"n":5}`, string(out))
}

func TestDocument_NilSafe(t *testing.T) {
	var doc *Document
	assert.Equal(t, 0, doc.Len())
	assert.Nil(t, doc.Keys())
	_, ok := doc.Get("name")
	assert.False(t, ok)
}

func TestDecodeValue(t *testing.T) {
	v, err := DecodeValue([]byte(`["React", 3]`))
	require.NoError(t, err)
	assert.Equal(t, KindList, v.Kind())
	assert.Equal(t, "[React, 3]", v.Text())

	v, err = DecodeValue([]byte(`{"github":"url"}`))
	require.NoError(t, err)
	assert.Equal(t, "{github: url}", v.Text())

	_, err = DecodeValue([]byte(`{`))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}
