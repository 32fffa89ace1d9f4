// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Ledger format constants
const (
	// LedgerHeader is the first line of the attendance CSV
	LedgerHeader = "Name,Date,Time"

	// LedgerNameColumn is the first header field
	LedgerNameColumn = "Name"

	// DateLayout and TimeLayout format the Date and Time ledger columns
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// ReferenceExtensions lists the image extensions loaded from the reference store.
var ReferenceExtensions = []string{".jpg", ".jpeg", ".png"}

// SavedReferenceExtension is the extension used for newly registered photos
const SavedReferenceExtension = ".jpg"

// Face matching constants
const (
	// DefaultTolerance is the maximum Euclidean distance between two descriptors
	// still considered the same person. Lower values = stricter matching
	DefaultTolerance = 0.6

	// DefaultDownscaleFactor shrinks live frames before detection
	DefaultDownscaleFactor = 4
)

// Annotation constants
const (
	// BoxThickness is the border width of the rectangle drawn around a recognized face
	BoxThickness = 2

	// LabelStripHeight is the height of the filled strip holding the name
	LabelStripHeight = 35

	// LabelPaddingX and LabelPaddingY offset the name from the strip's bottom-left corner
	LabelPaddingX = 6
	LabelPaddingY = 6
)

// Image constants
const (
	// MaxReferenceImageSize is the maximum dimension (width or height) of a saved reference photo
	MaxReferenceImageSize = 1920

	// DefaultJPEGQuality is used when encoding frames and reference photos
	DefaultJPEGQuality = 90
)

// Handler constants
const (
	// MaxUploadSize is the maximum registration upload size in bytes (20MB)
	MaxUploadSize = 20 << 20

	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// MQTT constants
const (
	// MQTTPublishTimeoutMs bounds a single publish wait
	MQTTPublishTimeoutMs = 2000

	// MQTTDisconnectQuiesceMs is the grace period given to in-flight messages on shutdown
	MQTTDisconnectQuiesceMs = 250
)
