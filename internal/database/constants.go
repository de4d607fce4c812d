package database

// Attendance history limits
const (
	// DefaultEventLimit is used when an EventFilter has no limit.
	DefaultEventLimit = 100

	// MaxEventLimit caps a single history query.
	MaxEventLimit = 1000
)

// ClampLimit returns a usable history limit for the requested value.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultEventLimit
	}
	return min(limit, MaxEventLimit)
}
