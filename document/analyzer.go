// Package document validates captured photo-ID images. The analyzer is a
// pure policy over two black-box engines: OCR text extraction and face
// detection. Five checks run in a fixed order and the first failure wins.
package document

import (
	"context"
	"regexp"
	"strings"

	"github.com/johnmichaeldizon211/APATECH1/facematch"
	"github.com/johnmichaeldizon211/APATECH1/models"

	"golang.org/x/sync/errgroup"
)

// IDType enumerates the accepted photo-ID documents.
type IDType string

const (
	TypePassport      IDType = "Passport"
	TypeDriverLicense IDType = "Driver License"
	TypeNationalID    IDType = "National ID"
	TypeUMID          IDType = "UMID"
	TypeUnknown       IDType = ""
)

// ParseIDType maps a wire value onto a known ID type. Unrecognized values
// fall through to TypeUnknown, which still gets the generic pattern check.
func ParseIDType(value string) IDType {
	switch strings.TrimSpace(value) {
	case string(TypePassport):
		return TypePassport
	case string(TypeDriverLicense):
		return TypeDriverLicense
	case string(TypeNationalID):
		return TypeNationalID
	case string(TypeUMID):
		return TypeUMID
	default:
		return TypeUnknown
	}
}

const (
	// MinLegibleChars is the minimum amount of whitespace-stripped OCR text
	// a readable document scan produces.
	MinLegibleChars = 34

	// MinOCRConfidence is the lowest acceptable OCR confidence (0-100).
	MinOCRConfidence = 40
)

// Keywords returns the fixed keyword set for an ID type. Required hits are
// two when the set has three or more entries, otherwise one.
func Keywords(idType IDType) []string {
	switch idType {
	case TypePassport:
		return []string{"passport", "republic of the philippines", "department of foreign affairs"}
	case TypeDriverLicense:
		return []string{"driver", "license", "land transportation office", "philippines"}
	case TypeNationalID:
		return []string{"philippine identification", "philsys", "republic of the philippines", "national id"}
	case TypeUMID:
		return []string{"umid", "social security system", "government service insurance system", "sss"}
	default:
		return nil
	}
}

var (
	passportNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b[A-Z]\d{7}[A-Z]?\b`),
	}
	driverLicenseNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b[A-Z]\d{2}-\d{2}-\d{6}\b`),
		regexp.MustCompile(`\b\d{11,12}\b`),
	}
	nationalIDNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`),
	}
	umidNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{7}-\d\b`),
		regexp.MustCompile(`\b\d{12}\b`),
	}
	genericNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b[A-Z0-9]{7,18}\b`),
	}
)

func idNumberPatterns(idType IDType) []*regexp.Regexp {
	switch idType {
	case TypePassport:
		return passportNumberPatterns
	case TypeDriverLicense:
		return driverLicenseNumberPatterns
	case TypeNationalID:
		return nationalIDNumberPatterns
	case TypeUMID:
		return umidNumberPatterns
	default:
		return genericNumberPatterns
	}
}

// NormalizeText collapses whitespace runs, trims, and lowercases OCR output.
func NormalizeText(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// HasLikelyIDNumber reports whether any per-type ID number pattern matches
// somewhere in the normalized text.
func HasLikelyIDNumber(idType IDType, text string) bool {
	source := strings.Join(strings.Fields(text), " ")
	for _, pattern := range idNumberPatterns(idType) {
		if pattern.MatchString(source) {
			return true
		}
	}
	return false
}

func countKeywordMatches(text string, keywords []string) int {
	count := 0
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			count++
		}
	}
	return count
}

// OCRResult is what the OCR engine reads off one frame.
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0-100
}

// OCREngine is the external text-recognition collaborator.
type OCREngine interface {
	Recognize(ctx context.Context, frame *models.CaptureFrame) (OCRResult, error)
}

// FaceDetector extracts one descriptor per face found in a frame.
// *facematch.Matcher satisfies it.
type FaceDetector interface {
	DetectAll(ctx context.Context, frame *models.CaptureFrame) ([]facematch.Descriptor, error)
}

// Result is the analyzer's verdict on one scanned document. On success the
// single face found on the document travels along for the later cross-match.
type Result struct {
	Verified       bool
	Reason         string
	FaceDescriptor facematch.Descriptor
}

// Analyzer is stateless: one verdict per (ID type, frame) pair.
type Analyzer struct {
	ocr   OCREngine
	faces FaceDetector
}

func NewAnalyzer(ocr OCREngine, faces FaceDetector) *Analyzer {
	return &Analyzer{ocr: ocr, faces: faces}
}

// Analyze runs the five-check policy. OCR and face detection are independent
// and run concurrently; the checks themselves evaluate in order with the
// first failure short-circuiting the rest.
func (a *Analyzer) Analyze(ctx context.Context, idType IDType, frame *models.CaptureFrame) (Result, error) {
	var (
		ocr   OCRResult
		faces []facematch.Descriptor
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ocr, err = a.ocr.Recognize(gctx, frame)
		return err
	})
	g.Go(func() error {
		var err error
		faces, err = a.faces.DetectAll(gctx, frame)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	normalized := NormalizeText(ocr.Text)

	if keywords := Keywords(idType); len(keywords) > 0 {
		requiredHits := 1
		if len(keywords) >= 3 {
			requiredHits = 2
		}
		if countKeywordMatches(normalized, keywords) < requiredHits {
			return Result{Reason: "ID text does not match the selected ID type."}, nil
		}
	}

	if len(strings.ReplaceAll(normalized, " ", "")) < MinLegibleChars {
		return Result{Reason: "ID scan is unclear. Please capture a clearer image."}, nil
	}

	if ocr.Confidence < MinOCRConfidence {
		return Result{Reason: "ID text is unreadable. Please scan in brighter lighting."}, nil
	}

	if !HasLikelyIDNumber(idType, normalized) {
		return Result{Reason: "No valid ID number pattern detected."}, nil
	}

	if len(faces) < 1 {
		return Result{Reason: "No face detected on the scanned ID."}, nil
	}
	if len(faces) > 1 {
		return Result{Reason: "Multiple faces detected on ID image. Capture only one ID in frame."}, nil
	}

	return Result{
		Verified:       true,
		Reason:         "ID verified by local engine.",
		FaceDescriptor: faces[0],
	}, nil
}
