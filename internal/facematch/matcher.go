package facematch

import (
	"slices"
	"sync/atomic"
)

// gallery is an immutable snapshot of known identities. It is never mutated
// after being published through Matcher.gallery.
type gallery struct {
	identities []KnownIdentity
}

// Matcher matches query embeddings against the current gallery snapshot.
type Matcher struct {
	tolerance float64
	gallery   atomic.Pointer[gallery]
}

// NewMatcher creates a matcher with the given Euclidean distance tolerance
// and an initial gallery.
func NewMatcher(tolerance float64, identities []KnownIdentity) *Matcher {
	m := &Matcher{tolerance: tolerance}
	m.Reload(identities)
	return m
}

// Tolerance returns the configured distance tolerance.
func (m *Matcher) Tolerance() float64 {
	return m.tolerance
}

// Reload replaces the whole gallery. The slice is copied, so the caller may
// keep modifying its own copy afterwards.
func (m *Matcher) Reload(identities []KnownIdentity) {
	snapshot := &gallery{identities: make([]KnownIdentity, len(identities))}
	for i, id := range identities {
		id.Embedding = slices.Clone(id.Embedding)
		snapshot.identities[i] = id
	}
	m.gallery.Store(snapshot)
}

// Len returns the number of identities in the current gallery.
func (m *Matcher) Len() int {
	return len(m.gallery.Load().identities)
}

// Identities returns a copy of the current gallery in gallery order.
func (m *Matcher) Identities() []KnownIdentity {
	g := m.gallery.Load()
	out := make([]KnownIdentity, len(g.identities))
	for i, id := range g.identities {
		id.Embedding = slices.Clone(id.Embedding)
		out[i] = id
	}
	return out
}

// Match returns the first identity in gallery order whose distance to query is
// strictly below the tolerance. It is not necessarily the closest one: the scan
// stops at the first hit. Entries with a different dimension never match.
func (m *Matcher) Match(query []float32) (Match, bool) {
	return matchIn(m.gallery.Load(), query, m.tolerance)
}

// MatchAll matches every query against one gallery snapshot and returns the
// matches in query order. Queries without a match are skipped; Match.Query
// holds the position of the query that produced each match.
func (m *Matcher) MatchAll(queries [][]float32) []Match {
	g := m.gallery.Load()
	var matches []Match
	for qi, q := range queries {
		if match, ok := matchIn(g, q, m.tolerance); ok {
			match.Query = qi
			matches = append(matches, match)
		}
	}
	return matches
}

func matchIn(g *gallery, query []float32, tolerance float64) (Match, bool) {
	if len(query) == 0 {
		return Match{}, false
	}
	for i := range g.identities {
		known := &g.identities[i]
		if len(known.Embedding) != len(query) {
			continue
		}
		if d := EuclideanDistance(query, known.Embedding); d < tolerance {
			return Match{
				ID:          known.ID,
				DisplayName: known.DisplayName,
				Distance:    d,
				Index:       i,
			}, true
		}
	}
	return Match{}, false
}
