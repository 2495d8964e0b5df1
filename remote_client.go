package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RemoteVerdict is the remote authority's answer to a verification call.
type RemoteVerdict struct {
	Verified bool     `json:"verified"`
	Reason   string   `json:"reason"`
	Distance *float64 `json:"distance,omitempty"`
}

// RemoteVerifier defines the remote KYC authority operations.
type RemoteVerifier interface {
	// VerifyID asks the authority to validate a document image.
	VerifyID(ctx context.Context, idType, idImage string) (*RemoteVerdict, error)

	// VerifyFace asks the authority to match a selfie against a document.
	VerifyFace(ctx context.Context, idType, idImage, selfieImage string) (*RemoteVerdict, error)

	// HealthCheck verifies the authority is reachable.
	HealthCheck(ctx context.Context) error
}

// RemoteTimeout caps every remote verification call. Past it the
// orchestrator falls back to the local engines.
const RemoteTimeout = 18 * time.Second

// RemoteKycClient implements RemoteVerifier against the authority's HTTP API.
type RemoteKycClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteKycClient(baseURL string) *RemoteKycClient {
	return &RemoteKycClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: RemoteTimeout,
		},
	}
}

func (c *RemoteKycClient) post(ctx context.Context, path string, payload any) (*RemoteVerdict, error) {
	url := fmt.Sprintf("%s%s", c.baseURL, path)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal remote request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create remote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute remote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("remote verification failed with status %d: %s", resp.StatusCode, string(body))
	}

	var verdict RemoteVerdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("failed to decode remote response: %w", err)
	}
	return &verdict, nil
}

func (c *RemoteKycClient) VerifyID(ctx context.Context, idType, idImage string) (*RemoteVerdict, error) {
	verdict, err := c.post(ctx, "/api/kyc/verify-id", map[string]string{
		"idType":  idType,
		"idImage": idImage,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Remote ID verification completed", "verified", verdict.Verified)
	return verdict, nil
}

func (c *RemoteKycClient) VerifyFace(ctx context.Context, idType, idImage, selfieImage string) (*RemoteVerdict, error) {
	verdict, err := c.post(ctx, "/api/kyc/verify-face", map[string]string{
		"idType":      idType,
		"idImage":     idImage,
		"selfieImage": selfieImage,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Remote face verification completed", "verified", verdict.Verified)
	return verdict, nil
}

func (c *RemoteKycClient) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/healthz", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
