// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"strings"
)

// MaxIndexNameLen bounds index names after normalization.
const MaxIndexNameLen = 10

// Index identifies a knowledge index on the backend. Identity is the
// (Name, Restricted) pair: the same name may exist once restricted and
// once unrestricted, and those are two distinct indexes.
type Index struct {
	// Name is the index name, lowercased and trimmed.
	Name string `json:"name" yaml:"name"`

	// Restricted is the access-control flag.
	Restricted bool `json:"restricted" yaml:"restricted"`
}

// IsZero reports whether the index carries no name.
func (ix Index) IsZero() bool { return ix.Name == "" }

// Equal reports identity-pair equality.
func (ix Index) Equal(other Index) bool {
	return ix.Name == other.Name && ix.Restricted == other.Restricted
}

// String renders the index for status lines, e.g. "contracts (restricted)".
func (ix Index) String() string {
	if ix.Restricted {
		return ix.Name + " (restricted)"
	}
	return ix.Name
}

// NormalizeName lowercases and trims an index name. The result may be
// empty; callers that require a valid name must check.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeRef converts any of the wire shapes the backend has used for
// an index reference into a canonical Index. Accepted shapes:
//
//   - a two-element array: [name, restrictedFlag]
//   - an object with "name" and either "restricted" or "is_restricted"
//   - a bare string: the name, unrestricted
//
// Flag coercion: boolean true, "true" (any case), and "1" are truthy;
// everything else is falsy. NormalizeRef is idempotent and never fails:
// malformed input degrades to the zero Index.
func NormalizeRef(ref any) Index {
	switch v := ref.(type) {
	case Index:
		return Index{Name: NormalizeName(v.Name), Restricted: v.Restricted}
	case string:
		return Index{Name: NormalizeName(v)}
	case []any:
		if len(v) != 2 {
			return Index{}
		}
		name, ok := v[0].(string)
		if !ok {
			return Index{}
		}
		return Index{Name: NormalizeName(name), Restricted: truthy(v[1])}
	case map[string]any:
		name, ok := v["name"].(string)
		if !ok {
			return Index{}
		}
		flag, ok := v["restricted"]
		if !ok {
			flag = v["is_restricted"]
		}
		return Index{Name: NormalizeName(name), Restricted: truthy(flag)}
	default:
		return Index{}
	}
}

// truthy implements the backward-compatible flag coercion: older
// backends serialized the restricted flag as the strings "true" or "1".
func truthy(v any) bool {
	switch f := v.(type) {
	case bool:
		return f
	case string:
		return strings.EqualFold(f, "true") || f == "1"
	default:
		return false
	}
}

// UnmarshalJSON accepts any NormalizeRef wire shape, so an index list
// response can be decoded directly into []Index regardless of which
// backend revision produced it.
func (ix *Index) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		*ix = Index{}
		return nil
	}
	*ix = NormalizeRef(raw)
	return nil
}

// Document is a file the backend knows within one index. PreviousPages
// and Growing are fetch-to-fetch diff signals for presentation; they are
// never persisted.
type Document struct {
	// Filename is unique within an index.
	Filename string `json:"filename" yaml:"filename"`

	// TotalPages is the page count the backend last reported.
	TotalPages int `json:"total_pages" yaml:"total_pages"`

	// PreviousPages is the count from the prior fetch, 0 if unseen.
	PreviousPages int `json:"-" yaml:"-"`

	// Growing reports that TotalPages increased since the prior fetch.
	Growing bool `json:"-" yaml:"-"`
}

// JobState is the client-side view of the backend's indexing job.
type JobState string

const (
	JobNotStarted JobState = "not_started"
	JobInProgress JobState = "in_progress"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobSnapshot is a point-in-time observation of an indexing job.
type JobSnapshot struct {
	State    JobState `json:"state" yaml:"state"`
	Progress int      `json:"progress" yaml:"progress"`
	Message  string   `json:"message,omitempty" yaml:"message,omitempty"`
}
