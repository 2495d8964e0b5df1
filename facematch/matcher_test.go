package facematch

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/johnmichaeldizon211/APATECH1/models"

	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	// descriptors per frame, keyed by the frame payload
	byKey map[string][]Descriptor
}

func (f *fakeEngine) DetectAll(_ context.Context, frame *models.CaptureFrame) ([]Descriptor, error) {
	return f.byKey[string(frame.Data)], nil
}

type fakeLoader struct {
	name   string
	engine Engine
	err    error
	loads  int
}

func (l *fakeLoader) Name() string { return l.name }

func (l *fakeLoader) Load(_ context.Context) (Engine, error) {
	l.loads++
	if l.err != nil {
		return nil, l.err
	}
	return l.engine, nil
}

func frameWithKey(key string) *models.CaptureFrame {
	return &models.CaptureFrame{MimeType: "image/jpeg", Data: []byte(key), Width: 640, Height: 480}
}

func TestMatcherUsesFirstWorkingSource(t *testing.T) {
	broken := &fakeLoader{name: "primary", err: fmt.Errorf("model download failed")}
	working := &fakeLoader{name: "mirror", engine: &fakeEngine{byKey: map[string][]Descriptor{
		"selfie": {{0.1, 0.2}},
	}}}

	m := NewMatcher(broken, working)

	faces, err := m.DetectAll(context.Background(), frameWithKey("selfie"))
	require.NoError(t, err)
	require.Len(t, faces, 1)

	// Second call must not reload anything.
	_, err = m.DetectAll(context.Background(), frameWithKey("selfie"))
	require.NoError(t, err)
	require.Equal(t, 1, broken.loads)
	require.Equal(t, 1, working.loads)
}

func TestMatcherFailsLoudlyWhenNoSourceLoads(t *testing.T) {
	m := NewMatcher(
		&fakeLoader{name: "a", err: fmt.Errorf("unreachable")},
		&fakeLoader{name: "b", err: fmt.Errorf("corrupt model")},
	)

	_, err := m.DetectAll(context.Background(), frameWithKey("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "any source")

	// The failure is sticky: no retry storm on later calls.
	_, err = m.DetectAll(context.Background(), frameWithKey("x"))
	require.Error(t, err)
}

func TestMatcherNoSourcesConfigured(t *testing.T) {
	m := NewMatcher()
	_, err := m.DetectAll(context.Background(), frameWithKey("x"))
	require.Error(t, err)
}

func TestDistance(t *testing.T) {
	require.Equal(t, 0.0, Distance(Descriptor{1, 2, 3}, Descriptor{1, 2, 3}))
	require.InDelta(t, 5.0, Distance(Descriptor{0, 0}, Descriptor{3, 4}), 1e-9)
	require.True(t, math.IsInf(Distance(Descriptor{1}, Descriptor{1, 2}), 1))
	require.True(t, math.IsInf(Distance(nil, Descriptor{1}), 1))
}

func TestMatchesThresholdIsInclusive(t *testing.T) {
	require.True(t, Matches(0.52))
	require.True(t, Matches(0.40))
	require.False(t, Matches(0.5201))
}

func newCompareMatcher(idFaces, selfieFaces []Descriptor) *Matcher {
	engine := &fakeEngine{byKey: map[string][]Descriptor{
		"id":     idFaces,
		"selfie": selfieFaces,
	}}
	return NewMatcher(&fakeLoader{name: "test", engine: engine})
}

func TestCompareOutcomes(t *testing.T) {
	near := Descriptor{0.0, 0.0}
	nearby := Descriptor{0.3, 0.3} // distance ~0.424
	far := Descriptor{1.0, 1.0}    // distance ~1.414

	tests := []struct {
		name        string
		idFaces     []Descriptor
		selfieFaces []Descriptor
		verified    bool
		reason      string
	}{
		{"match", []Descriptor{near}, []Descriptor{nearby}, true, "Face matched with scanned ID."},
		{"mismatch", []Descriptor{near}, []Descriptor{far}, false, "Face mismatch detected. Please scan again."},
		{"no face on id", nil, []Descriptor{near}, false, "No face found in verified ID image."},
		{"multiple faces on id", []Descriptor{near, far}, []Descriptor{near}, false, "Multiple faces found in the ID image."},
		{"no face in selfie", []Descriptor{near}, nil, false, "No face detected in selfie scan."},
		{"multiple faces in selfie", []Descriptor{near}, []Descriptor{near, far}, false, "Multiple faces detected in selfie frame. Make sure only you are visible."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newCompareMatcher(tt.idFaces, tt.selfieFaces)
			result, err := m.Compare(context.Background(), frameWithKey("id"), frameWithKey("selfie"))
			require.NoError(t, err)
			require.Equal(t, tt.verified, result.Verified)
			require.Equal(t, tt.reason, result.Reason)
		})
	}
}

func TestCompareReportsDistanceOnMatchAndMismatch(t *testing.T) {
	m := newCompareMatcher([]Descriptor{{0, 0}}, []Descriptor{{0.3, 0.4}})
	result, err := m.Compare(context.Background(), frameWithKey("id"), frameWithKey("selfie"))
	require.NoError(t, err)
	require.True(t, result.Verified)
	require.NotNil(t, result.Distance)
	require.InDelta(t, 0.5, *result.Distance, 1e-9)

	m = newCompareMatcher([]Descriptor{{0, 0}}, []Descriptor{{3, 4}})
	result, err = m.Compare(context.Background(), frameWithKey("id"), frameWithKey("selfie"))
	require.NoError(t, err)
	require.False(t, result.Verified)
	require.NotNil(t, result.Distance)
	require.InDelta(t, 5.0, *result.Distance, 1e-9)
}
