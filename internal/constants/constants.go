// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// DefaultTolerance is the maximum Euclidean distance between a probe and its
	// nearest gallery entry for the probe to be identified.
	// Lower values = stricter matching
	DefaultTolerance = 0.6

	// UnknownLabel is the label rendered for faces that matched nobody
	UnknownLabel = "Unknown"

	// DefaultNeighborCount is the number of look-alike entries reported per person
	DefaultNeighborCount = 5
)

// Frame processing constants
const (
	// DefaultFrameScale is the factor frames are shrunk by before face detection.
	// Bounding boxes are multiplied by the same factor afterwards.
	DefaultFrameScale = 4

	// FrameJPEGQuality is the JPEG quality used when sending frames to the extractor
	FrameJPEGQuality = 90
)

// Ledger format constants
const (
	// DateLayout is the persisted calendar date format (YYYY-MM-DD)
	DateLayout = "2006-01-02"

	// TimeLayout is the persisted time-of-day format (HH:MM:SS, 24-hour)
	TimeLayout = "15:04:05"
)

// LedgerHeader is the header row of the persisted attendance file
var LedgerHeader = []string{"Name", "Date", "Time"}

// Reference image constants
const (
	// MaxUploadSize is the maximum reference image upload size in bytes (20MB)
	MaxUploadSize = 20 << 20

	// EventChannelBuffer is the buffer size for recognition event subscribers
	EventChannelBuffer = 32
)
