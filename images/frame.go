package images

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/johnmichaeldizon211/APATECH1/models"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// Minimum requirements for an uploaded capture frame. Anything below these
// floors is rejected as too small/unclear before any OCR or face work runs.
const (
	MinEncodedBytes = 9000
	MinPixelWidth   = 160
	MinPixelHeight  = 120
)

var dataURLPattern = regexp.MustCompile(`^data:image/(png|jpeg|jpg|webp);base64,`)

// IsDataImage reports whether the value looks like a base64 data-URL for a
// supported raster format.
func IsDataImage(value string) bool {
	return dataURLPattern.MatchString(strings.TrimSpace(value))
}

// DecodeDataURL parses a data-URL into a CaptureFrame, decoding the raster
// to learn its dimensions. The frame keeps the original encoded bytes.
func DecodeDataURL(value string) (*models.CaptureFrame, error) {
	value = strings.TrimSpace(value)
	loc := dataURLPattern.FindStringIndex(value)
	if loc == nil {
		return nil, fmt.Errorf("not a supported image data-URL")
	}

	header := value[:loc[1]]
	mimeType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64,")

	data, err := base64.StdEncoding.DecodeString(value[loc[1]:])
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image payload: %w", err)
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	return &models.CaptureFrame{
		MimeType:   mimeType,
		Data:       data,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		CapturedAt: time.Now(),
	}, nil
}

// ValidateFrame applies the wire-level image rules: supported data-URL,
// decodable raster, non-trivial encoded size and pixel dimensions.
func ValidateFrame(value string) (*models.CaptureFrame, error) {
	if !IsDataImage(value) {
		return nil, fmt.Errorf("not a supported image data-URL")
	}

	frame, err := DecodeDataURL(value)
	if err != nil {
		return nil, err
	}

	if len(value) < MinEncodedBytes {
		return nil, fmt.Errorf("image is too small or unclear")
	}
	if frame.Width < MinPixelWidth || frame.Height < MinPixelHeight {
		return nil, fmt.Errorf("image is too small or unclear")
	}

	slog.Debug("Capture frame validated", "mime", frame.MimeType, "width", frame.Width, "height", frame.Height)
	return frame, nil
}

// DecodeImage attempts to decode an image from bytes, trying multiple formats
func DecodeImage(data []byte) (image.Image, error) {
	// Try JPEG first (most common capture encoding)
	if img, err := jpeg.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := png.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// Try generic image decode as fallback
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("unsupported or invalid image format")
}

// EncodeJPEGDataURL renders an in-memory image as a jpeg data-URL, the format
// capture stills travel in. quality follows image/jpeg (1-100).
func EncodeJPEGDataURL(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ResizeToFit scales img to fit within maxW×maxH (keeping aspect ratio)
func ResizeToFit(src image.Image, maxW, maxH int) image.Image {
	bw := src.Bounds().Dx()
	bh := src.Bounds().Dy()

	if maxW <= 0 && maxH <= 0 {
		return src
	}
	if maxW <= 0 {
		scale := float64(maxH) / float64(bh)
		maxW = int(math.Round(float64(bw) * scale))
	}
	if maxH <= 0 {
		scale := float64(maxW) / float64(bw)
		maxH = int(math.Round(float64(bh) * scale))
	}

	scale := math.Min(float64(maxW)/float64(bw), float64(maxH)/float64(bh))
	if scale >= 1.0 {
		return src // already small enough
	}
	w := int(math.Max(1, math.Round(float64(bw)*scale)))
	h := int(math.Max(1, math.Round(float64(bh)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// CatmullRom = high quality, good for photos/faces
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}
