// Package capture manages the live camera session feeding ID and selfie
// scans. A Controller owns at most one open source at a time; opening a new
// facing stops whatever was running first.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/johnmichaeldizon211/APATECH1/models"
)

// Facing selects which camera a source should open.
type Facing string

const (
	FacingUser        Facing = "user"        // front camera, selfie scans
	FacingEnvironment Facing = "environment" // rear camera, document scans
)

// FrameSource is an open camera stream. Frame returns the most recent frame;
// a frame with zero width or height means the stream has not produced a
// usable picture yet.
type FrameSource interface {
	Frame() *models.CaptureFrame
	Close() error
}

// Provider opens camera hardware. Implementations wrap whatever capture
// backend the deployment has.
type Provider interface {
	Open(ctx context.Context, facing Facing) (FrameSource, error)
}

// PreviewSink receives every frame handed out by CaptureStill, for UIs that
// mirror the scan back to the person being verified.
type PreviewSink interface {
	Preview(frame *models.CaptureFrame)
}

// Controller serializes access to the camera. All methods are safe for
// concurrent use.
type Controller struct {
	provider Provider
	preview  PreviewSink

	mu      sync.Mutex
	current FrameSource
	facing  Facing
}

func NewController(provider Provider) *Controller {
	return &Controller{provider: provider}
}

// SetPreviewSink attaches an optional mirror for captured frames.
func (c *Controller) SetPreviewSink(sink PreviewSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preview = sink
}

// Open starts a stream with the requested facing. Any previously open source
// is stopped first, so at most one stream is live at any moment.
func (c *Controller) Open(ctx context.Context, facing Facing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		if err := c.current.Close(); err != nil {
			slog.Warn("Failed to close previous capture source", "facing", c.facing, "error", err)
		}
		c.current = nil
	}

	source, err := c.provider.Open(ctx, facing)
	if err != nil {
		return fmt.Errorf("failed to open %s camera: %w", facing, err)
	}
	c.current = source
	c.facing = facing
	slog.Info("Capture source opened", "facing", facing)
	return nil
}

// CaptureStill grabs the current frame from the open source. The second
// return is false when no source is open or the source has not yet produced
// a frame with real dimensions.
func (c *Controller) CaptureStill() (*models.CaptureFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil, false
	}
	frame := c.current.Frame()
	if frame == nil || frame.Width == 0 || frame.Height == 0 {
		return nil, false
	}
	if c.preview != nil {
		c.preview.Preview(frame)
	}
	return frame, true
}

// Facing reports which camera is currently open. Only meaningful while a
// source is live.
func (c *Controller) Facing() (Facing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facing, c.current != nil
}

// Stop closes the open source. Stopping an already-stopped controller is a
// no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	err := c.current.Close()
	c.current = nil
	if err != nil {
		return fmt.Errorf("failed to close capture source: %w", err)
	}
	return nil
}
