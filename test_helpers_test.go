package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/johnmichaeldizon211/APATECH1/images"
	"github.com/johnmichaeldizon211/APATECH1/kycflow"
	"github.com/johnmichaeldizon211/APATECH1/metrics"
	"github.com/johnmichaeldizon211/APATECH1/otp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var testConfig = ServerConfig{
	Host:           "localhost",
	Port:           8081,
	UseTls:         false,
	TlsCertPath:    "",
	TlsPrivKeyPath: "",
}

// noiseImage builds a frame that compresses poorly, so the encoded payload
// clears the minimum-size floor.
func noiseImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	seed := uint32(2463534242)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			seed ^= seed << 13
			seed ^= seed >> 17
			seed ^= seed << 5
			img.Set(x, y, color.RGBA{uint8(seed), uint8(seed >> 8), uint8(seed >> 16), 255})
		}
	}
	return img
}

var (
	testImageOnce sync.Once
	testImage     string
	testImageErr  error
)

func testImageDataURL(t *testing.T) string {
	t.Helper()
	testImageOnce.Do(func() {
		testImage, testImageErr = images.EncodeJPEGDataURL(noiseImage(640, 480), 90)
	})
	require.NoError(t, testImageErr)
	require.GreaterOrEqual(t, len(testImage), images.MinEncodedBytes)
	return testImage
}

// newTestState wires a full server state around fake engines: OCR always
// reads a legible driver license and the face engine always finds the same
// single face.
func newTestState(remote RemoteVerifier) *ServerState {
	orchestrator := newTestOrchestrator(remote, goodLicenseText)
	machine := kycflow.NewMachine(kycflow.NewInMemoryDraftStore(), kycflow.NewInMemoryBookingStore(), orchestrator)

	accounts := NewInMemoryAccountStore()
	accounts.AddAccount(Account{Email: "user@example.com", Mobile: "09171234567", PasswordHash: "legacy-password"})

	return &ServerState{
		orchestrator: orchestrator,
		machine:      machine,
		otpManager:   otp.NewManager(),
		otpSender:    &otp.Sender{DemoMode: true},
		accounts:     accounts,
		metrics:      metrics.New(prometheus.NewRegistry()),
		remote:       remote,
	}
}

func startTestServer(t *testing.T, state *ServerState) *Server {
	t.Helper()

	srv, err := NewServer(state, testConfig)
	require.NoError(t, err)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("server error: %v", err)
		}
	}()

	waitUntilHealthy(t, "http://localhost:8081/api/health")
	t.Cleanup(func() {
		if err := srv.Stop(); err != nil {
			t.Logf("error shutting down server: %v", err)
		}
	})
	return srv
}

func waitUntilHealthy(t *testing.T, url string) {
	t.Helper()
	const maxAttempts = 50
	for i := 0; i < maxAttempts; i++ {
		if resp, err := http.Get(url); err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not start in time")
}

func postJSON[T any](t *testing.T, url string, payload any) (*http.Response, []byte, *T) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	}
	resp, err := http.Post(url, "application/json", body)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var v T
	_ = json.Unmarshal(respBody, &v)

	return resp, respBody, &v
}

func mustStatus(t *testing.T, resp *http.Response, want int, body []byte) {
	t.Helper()
	require.Equalf(t, want, resp.StatusCode, "body: %s", body)
}
