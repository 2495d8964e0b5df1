package capture

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/johnmichaeldizon211/APATECH1/models"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	frame  *models.CaptureFrame
	closed bool
}

func (s *fakeSource) Frame() *models.CaptureFrame { return s.frame }

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeProvider struct {
	sources map[Facing]*fakeSource
	openErr error
	opens   int
}

func (p *fakeProvider) Open(_ context.Context, facing Facing) (FrameSource, error) {
	p.opens++
	if p.openErr != nil {
		return nil, p.openErr
	}
	return p.sources[facing], nil
}

func readyFrame() *models.CaptureFrame {
	return &models.CaptureFrame{
		MimeType:   "image/jpeg",
		Data:       []byte("jpeg bytes"),
		Width:      640,
		Height:     480,
		CapturedAt: time.Now(),
	}
}

func TestControllerCapturesFromOpenSource(t *testing.T) {
	provider := &fakeProvider{sources: map[Facing]*fakeSource{
		FacingEnvironment: {frame: readyFrame()},
	}}
	c := NewController(provider)

	require.NoError(t, c.Open(context.Background(), FacingEnvironment))
	frame, ok := c.CaptureStill()
	require.True(t, ok)
	require.Equal(t, 640, frame.Width)

	facing, open := c.Facing()
	require.True(t, open)
	require.Equal(t, FacingEnvironment, facing)
}

func TestControllerNoCaptureWithoutOpenSource(t *testing.T) {
	c := NewController(&fakeProvider{})
	_, ok := c.CaptureStill()
	require.False(t, ok)
}

func TestControllerNoCaptureBeforeFirstRealFrame(t *testing.T) {
	// A just-opened stream reports zero dimensions until the sensor warms up.
	provider := &fakeProvider{sources: map[Facing]*fakeSource{
		FacingUser: {frame: &models.CaptureFrame{MimeType: "image/jpeg"}},
	}}
	c := NewController(provider)

	require.NoError(t, c.Open(context.Background(), FacingUser))
	_, ok := c.CaptureStill()
	require.False(t, ok)
}

func TestControllerSwitchingFacingStopsPreviousSource(t *testing.T) {
	rear := &fakeSource{frame: readyFrame()}
	front := &fakeSource{frame: readyFrame()}
	provider := &fakeProvider{sources: map[Facing]*fakeSource{
		FacingEnvironment: rear,
		FacingUser:        front,
	}}
	c := NewController(provider)

	require.NoError(t, c.Open(context.Background(), FacingEnvironment))
	require.NoError(t, c.Open(context.Background(), FacingUser))

	require.True(t, rear.closed)
	require.False(t, front.closed)

	facing, open := c.Facing()
	require.True(t, open)
	require.Equal(t, FacingUser, facing)
}

func TestControllerOpenFailureLeavesNothingRunning(t *testing.T) {
	c := NewController(&fakeProvider{openErr: fmt.Errorf("camera busy")})
	err := c.Open(context.Background(), FacingUser)
	require.Error(t, err)

	_, open := c.Facing()
	require.False(t, open)
}

func TestControllerStopIsIdempotent(t *testing.T) {
	source := &fakeSource{frame: readyFrame()}
	provider := &fakeProvider{sources: map[Facing]*fakeSource{FacingUser: source}}
	c := NewController(provider)

	require.NoError(t, c.Open(context.Background(), FacingUser))
	require.NoError(t, c.Stop())
	require.True(t, source.closed)
	require.NoError(t, c.Stop())

	_, ok := c.CaptureStill()
	require.False(t, ok)
}

type recordingSink struct {
	frames []*models.CaptureFrame
}

func (s *recordingSink) Preview(frame *models.CaptureFrame) {
	s.frames = append(s.frames, frame)
}

func TestControllerMirrorsCapturesToPreviewSink(t *testing.T) {
	provider := &fakeProvider{sources: map[Facing]*fakeSource{
		FacingUser: {frame: readyFrame()},
	}}
	c := NewController(provider)
	sink := &recordingSink{}
	c.SetPreviewSink(sink)

	require.NoError(t, c.Open(context.Background(), FacingUser))
	_, ok := c.CaptureStill()
	require.True(t, ok)
	_, ok = c.CaptureStill()
	require.True(t, ok)
	require.Len(t, sink.frames, 2)
}
