// Package capsule implements the namespaced, typed record store that backs
// all context persistence. Records live in a single SQLite database shared
// across every project, session, and crew on the host; namespaces carry the
// tenant prefix (proj/<hash>/...) that keeps them apart.
package capsule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RecordType classifies how a record's content should be consumed.
type RecordType string

const (
	// TypeSummary is consumed directly as text.
	TypeSummary RecordType = "SUMMARY"
	// TypeMeta is a structured sidecar payload.
	TypeMeta RecordType = "META"
	// TypeCollection groups child records for browsing.
	TypeCollection RecordType = "COLLECTION"
	// TypeSource points at an external artifact.
	TypeSource RecordType = "SOURCE"
	// TypeAlias redirects to another namespace.
	TypeAlias RecordType = "ALIAS"
)

// ErrNotFound is returned when no record exists at a (namespace, title) key.
var ErrNotFound = errors.New("capsule: record not found")

// ErrInvalidNamespace is returned for namespaces that cannot be normalized.
var ErrInvalidNamespace = errors.New("capsule: invalid namespace")

// Record is the unit of persistence. Identity is (Namespace, Title);
// Save upserts on that key.
type Record struct {
	Namespace string                 `json:"namespace"`
	Title     string                 `json:"title"`
	Summary   string                 `json:"summary"`
	Type      RecordType             `json:"type"`
	Content   map[string]interface{} `json:"content,omitempty"`
	Tags      []string               `json:"tags,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	HitCount  int                    `json:"hit_count"`
}

// HasTag reports whether the record carries the given tag.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ContentString returns a string field from the content payload, or "".
func (r *Record) ContentString(key string) string {
	if r.Content == nil {
		return ""
	}
	if s, ok := r.Content[key].(string); ok {
		return s
	}
	return ""
}

// NormalizeNamespace canonicalizes a namespace path: segments are
// lowercased, surrounding and duplicate slashes dropped. At least one
// non-empty segment must remain.
func NormalizeNamespace(ns string) (string, error) {
	parts := strings.Split(ns, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		segments = append(segments, strings.ToLower(p))
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidNamespace, ns)
	}
	return strings.Join(segments, "/"), nil
}

// timeLayout is a fixed-width UTC ISO-8601 form so stored timestamps
// compare lexicographically in the same order as chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
