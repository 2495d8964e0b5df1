package models

import "time"

// Provenance values identify which source decided a verdict.
const (
	ProvenanceRemote        = "remote"
	ProvenanceLocal         = "local"
	ProvenanceRemoteLocal   = "remote+local"
	ProvenanceLocalFallback = "local-fallback"
)

// Verdict is the structured outcome of one verification step. It is
// immutable once produced and is surfaced to the operator as-is.
type Verdict struct {
	Verified          bool     `json:"verified"`
	Reason            string   `json:"reason"`
	Provenance        string   `json:"provenance"`
	Distance          *float64 `json:"distance,omitempty"`
	VerificationToken string   `json:"verificationToken,omitempty"`
}

// CaptureFrame is a single still image taken from a live frame source.
// The payload is an encoded raster (jpeg/png/webp) plus capture metadata.
type CaptureFrame struct {
	MimeType   string
	Data       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}
