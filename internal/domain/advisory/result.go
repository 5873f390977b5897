package advisory

import "time"

// Source tells where a result's fields came from.
type Source string

const (
	SourceProvider Source = "provider"
	SourceFallback Source = "fallback"
)

// Result is a recommendation. Fields always holds every field of the
// kind's schema, whatever the Source.
type Result struct {
	Kind        Kind
	Fields      map[string]any
	Source      Source
	Reason      string
	GeneratedAt time.Time
}

// Degraded reports whether the result was synthesised locally.
func (r Result) Degraded() bool {
	return r.Source == SourceFallback
}

// String returns a string field or "" when absent.
func (r Result) String(name string) string {
	s, _ := r.Fields[name].(string)
	return s
}
