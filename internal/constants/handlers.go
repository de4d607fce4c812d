package constants

// Handler constants
const (
	// MaxFrameBodySize is the maximum request body for a camera frame (10MB of base64)
	MaxFrameBodySize = 10 << 20

	// MaxUploadSize is the maximum registration photo upload size in bytes (20MB)
	MaxUploadSize = 20 << 20

	// DefaultHistoryLimit is the default number of attendance events returned
	DefaultHistoryLimit = 100

	// DefaultSimilarLimit is the default number of look-alike students returned
	DefaultSimilarLimit = 5
)

// SSE constants
const (
	// EventChannelBuffer is the buffer size of each attendance stream listener
	EventChannelBuffer = 100
)
