package document

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/johnmichaeldizon211/APATECH1/models"
)

// HTTPOCREngine talks to a text-recognition service over HTTP.
type HTTPOCREngine struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPOCREngine(baseURL string) *HTTPOCREngine {
	return &HTTPOCREngine{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type recognizeRequest struct {
	Image string `json:"image"` // Base64 encoded image
}

// Recognize posts the frame to the recognize endpoint and returns the
// extracted text with its confidence score.
func (e *HTTPOCREngine) Recognize(ctx context.Context, frame *models.CaptureFrame) (OCRResult, error) {
	url := fmt.Sprintf("%s/api/recognize", e.baseURL)

	body, err := json.Marshal(recognizeRequest{
		Image: base64.StdEncoding.EncodeToString(frame.Data),
	})
	if err != nil {
		return OCRResult{}, fmt.Errorf("failed to marshal recognize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return OCRResult{}, fmt.Errorf("failed to create recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return OCRResult{}, fmt.Errorf("failed to execute recognize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return OCRResult{}, fmt.Errorf("recognize failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result OCRResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return OCRResult{}, fmt.Errorf("failed to decode recognize response: %w", err)
	}
	return result, nil
}
