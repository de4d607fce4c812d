// Package facematch decides which registered student a face embedding belongs to.
// The gallery of known faces is held as an immutable snapshot that can be swapped
// at any time without blocking concurrent matches.
package facematch

// KnownIdentity is a registered student and their reference face embedding.
type KnownIdentity struct {
	ID          string    `json:"student_id"`
	DisplayName string    `json:"name"`
	Embedding   []float32 `json:"encoding"`
}

// Match is the identity chosen for a query embedding.
type Match struct {
	ID          string  `json:"student_id"`
	DisplayName string  `json:"name"`
	Distance    float64 `json:"distance"`
	Index       int     `json:"-"` // position in the gallery snapshot
	Query       int     `json:"-"` // position of the query in MatchAll
}
