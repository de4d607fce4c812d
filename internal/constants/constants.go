// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Registration constants
const (
	// LookalikeWarningCount is how many nearest students are checked when a
	// new student is registered
	LookalikeWarningCount = 3

	// ImportWorkers is the number of parallel workers for bulk registration
	ImportWorkers = 4

	// RegistrationMaxSize is the longest edge of a registration photo sent to
	// the embedding service
	RegistrationMaxSize = 1920
)

// Shutdown constants
const (
	// ShutdownTimeoutSeconds bounds the graceful HTTP shutdown
	ShutdownTimeoutSeconds = 30
)

// Maintenance constants
const (
	// RetentionCheckHours is how often expired attendance events are purged
	RetentionCheckHours = 6
)
