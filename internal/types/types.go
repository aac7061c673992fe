package types

import "time"

// DescriptorDim is the length of a face descriptor produced by the extractor.
const DescriptorDim = 128

// Unknown is the name reported for a face that matched no known identity.
const Unknown = "UNKNOWN"

// FaceResult is one face found by the extractor in a single image.
type FaceResult struct {
	Loc []int     `json:"loc"` // [top, right, bottom, left]
	Vec []float64 `json:"vec"` // 128-d face encoding
}

// Identity is a named known person and the descriptor enrolled for them.
type Identity struct {
	Name       string
	Descriptor []float64
}

// MatchResult is the classification of one query descriptor.
// Distance is the best distance seen even when Name is Unknown.
type MatchResult struct {
	Name     string
	Index    int
	Distance float64
}

// Known reports whether the result points at a known identity.
func (m MatchResult) Known() bool {
	return m.Index >= 0
}

// FaceState drives the colour of the on-screen feedback for a face.
type FaceState string

const (
	StateUnknown FaceState = "unknown" // red
	StateMatched FaceState = "matched" // green
	StateCooling FaceState = "cooling" // yellow
)

// Feedback describes how to render one detected face in one frame.
type Feedback struct {
	Frame    int
	Loc      []int
	Name     string
	Distance float64
	State    FaceState
	Recorded bool

	// RecordedAt is the time written to the ledger when Recorded is set.
	RecordedAt time.Time
}
