package facematch

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

// HTTPEngine talks to a face-descriptor service over HTTP. The service
// receives a base64 raster and answers with one descriptor per detected face.
type HTTPEngine struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPEngine(baseURL string) *HTTPEngine {
	return &HTTPEngine{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type detectRequest struct {
	Image string `json:"image"` // Base64 encoded image
}

type detectResponse struct {
	Faces []struct {
		Descriptor []float32 `json:"descriptor"`
	} `json:"faces"`
}

// DetectAll posts the frame to the detect endpoint and returns every
// descriptor found.
func (e *HTTPEngine) DetectAll(ctx context.Context, frame *models.CaptureFrame) ([]Descriptor, error) {
	url := fmt.Sprintf("%s/api/detect", e.baseURL)

	body, err := json.Marshal(detectRequest{
		Image: base64.StdEncoding.EncodeToString(frame.Data),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute detect request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("detect failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode detect response: %w", err)
	}

	descriptors := make([]Descriptor, 0, len(decoded.Faces))
	for _, face := range decoded.Faces {
		descriptors = append(descriptors, Descriptor(face.Descriptor))
	}
	return descriptors, nil
}

// HealthCheck verifies the descriptor service is reachable.
func (e *HTTPEngine) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/healthz", e.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// HTTPEngineLoader makes one descriptor-service URL usable as a prioritized
// engine source: Load succeeds only when the service answers its health check.
type HTTPEngineLoader struct {
	BaseURL string
}

func (l HTTPEngineLoader) Name() string { return l.BaseURL }

func (l HTTPEngineLoader) Load(ctx context.Context) (Engine, error) {
	engine := NewHTTPEngine(l.BaseURL)
	if err := engine.HealthCheck(ctx); err != nil {
		return nil, err
	}
	return engine, nil
}
