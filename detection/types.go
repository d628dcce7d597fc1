package detection

import "errors"

// ErrDetectorUnavailable is returned by Detect when the underlying model
// never loaded. The failure is local to the one verification attempt; the
// process keeps running.
var ErrDetectorUnavailable = errors.New("detector unavailable: model not loaded")

// DetectionResult is a single detected object above the confidence threshold
type DetectionResult struct {
	Label      string
	Confidence float32
	X          int
	Y          int
	W          int
	H          int
}

// Summary is what the decision policy consumes: a count of the designated
// subject class (person or face, depending on backend) and, for the object
// backend, per-label counts of everything else seen in the frame.
type Summary struct {
	// SubjectCount is the number of persons (object backend) or faces
	// (face backend) detected above the confidence threshold.
	SubjectCount int

	// ObjectCounts maps detected class labels to counts. Nil for the face
	// backend, which only knows about faces.
	ObjectCounts map[string]int
}

// HasAnyOf reports whether at least one of the given labels was detected.
// Always false for the face backend.
func (s Summary) HasAnyOf(labels []string) bool {
	for _, label := range labels {
		if s.ObjectCounts[label] > 0 {
			return true
		}
	}
	return false
}

// Detector is the abstract "count objects of class X in image" capability the
// verification pipeline consumes. Implementations are read-only after load
// and safe for concurrent use by multiple workers.
type Detector interface {
	// Detect runs inference on the image at the given path and summarizes
	// the detections. Returns ErrDetectorUnavailable (wrapped) when the
	// model never loaded, or a decode error for an unreadable image.
	Detect(imagePath string) (Summary, error)

	// Available reports whether the model loaded at startup
	Available() bool

	// Close releases the underlying network
	Close()
}
