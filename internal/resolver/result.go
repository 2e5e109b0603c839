package resolver

import (
	"github.com/kalambet/persona/internal/profile"
)

// Kind classifies a resolution outcome. Exactly one kind is produced per query.
type Kind string

const (
	KindValue      Kind = "value"
	KindMiss       Kind = "miss"
	KindFetchError Kind = "fetch_error"
)

// Stage names the pipeline step that produced a value.
type Stage string

const (
	StageKeyword Stage = "keyword"
	StageFuzzy   Stage = "fuzzy"
	StageScan    Stage = "scan"
	StageNone    Stage = "none"
)

// FetchErrorLabel is the error label reported when the profile cannot be fetched.
const FetchErrorLabel = "Failed to fetch data"

// Result is the outcome of resolving one query.
type Result struct {
	Kind  Kind   `json:"kind"`
	Stage Stage  `json:"stage"`
	Query string `json:"query"`

	// Set for KindValue.
	Field string        `json:"field,omitempty"`
	Value profile.Value `json:"value,omitzero"`

	// Set for KindMiss.
	Message string `json:"message,omitempty"`

	// Set for KindFetchError.
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// FetchErrorPayload is the structured error handed across the tool-call
// boundary when the profile could not be retrieved.
type FetchErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Payload returns the tool-call shape of the result: the field value's
// payload, the miss message, or a FetchErrorPayload.
func (r Result) Payload() any {
	switch r.Kind {
	case KindValue:
		return r.Value.Payload()
	case KindFetchError:
		return FetchErrorPayload{Error: r.Error, Details: r.Details}
	default:
		return r.Message
	}
}

// Text renders the result as a single line of plain text.
func (r Result) Text() string {
	switch r.Kind {
	case KindValue:
		return r.Value.Text()
	case KindFetchError:
		return r.Error + ": " + r.Details
	default:
		return r.Message
	}
}
