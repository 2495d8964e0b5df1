// Package facematch extracts face descriptors from capture frames and
// compares them. The underlying descriptor engine is loaded lazily, exactly
// once per process, from a prioritized list of sources.
package facematch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/johnmichaeldizon211/APATECH1/models"

	"golang.org/x/sync/errgroup"
)

// MatchThreshold is the maximum descriptor distance still considered the
// same person.
const MatchThreshold = 0.52

// Descriptor is a fixed-length numeric face embedding. Smaller pairwise
// distance means more similar.
type Descriptor []float32

// Engine produces one descriptor per face detected in a frame.
type Engine interface {
	DetectAll(ctx context.Context, frame *models.CaptureFrame) ([]Descriptor, error)
}

// EngineLoader constructs an Engine from one model source.
type EngineLoader interface {
	Name() string
	Load(ctx context.Context) (Engine, error)
}

// Matcher wraps a lazily-loaded Engine. The first loader that succeeds wins;
// failover between sources is silent, and only total failure surfaces.
type Matcher struct {
	loaders []EngineLoader

	once    sync.Once
	engine  Engine
	loadErr error
}

func NewMatcher(loaders ...EngineLoader) *Matcher {
	return &Matcher{loaders: loaders}
}

func (m *Matcher) ensureEngine(ctx context.Context) (Engine, error) {
	m.once.Do(func() {
		if len(m.loaders) == 0 {
			m.loadErr = fmt.Errorf("no face engine sources configured")
			return
		}

		var lastErr error
		for _, loader := range m.loaders {
			engine, err := loader.Load(ctx)
			if err != nil {
				slog.Debug("Face engine source failed, trying next", "source", loader.Name(), "error", err)
				lastErr = err
				continue
			}
			slog.Info("Face engine loaded", "source", loader.Name())
			m.engine = engine
			return
		}
		m.loadErr = fmt.Errorf("unable to load face engine from any source: %w", lastErr)
	})

	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.engine, nil
}

// DetectAll returns a descriptor for every face found in the frame.
func (m *Matcher) DetectAll(ctx context.Context, frame *models.CaptureFrame) ([]Descriptor, error) {
	engine, err := m.ensureEngine(ctx)
	if err != nil {
		return nil, err
	}
	return engine.DetectAll(ctx, frame)
}

// Distance returns the Euclidean distance between two descriptors.
// Descriptors of different lengths are maximally distant.
func Distance(a, b Descriptor) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Matches reports whether a descriptor distance counts as the same person.
func Matches(distance float64) bool {
	return distance <= MatchThreshold
}

// Result is the outcome of a local face comparison.
type Result struct {
	Verified bool
	Reason   string
	Distance *float64
}

// Compare runs the full local face check between a verified ID image and a
// selfie: exactly one face required in each frame, then the descriptor
// distance must be within MatchThreshold. Detection for the two frames runs
// concurrently since they are independent.
func (m *Matcher) Compare(ctx context.Context, idFrame, selfieFrame *models.CaptureFrame) (Result, error) {
	var idFaces, selfieFaces []Descriptor

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		idFaces, err = m.DetectAll(gctx, idFrame)
		return err
	})
	g.Go(func() error {
		var err error
		selfieFaces, err = m.DetectAll(gctx, selfieFrame)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if len(idFaces) < 1 {
		return Result{Reason: "No face found in verified ID image."}, nil
	}
	if len(idFaces) > 1 {
		return Result{Reason: "Multiple faces found in the ID image."}, nil
	}
	if len(selfieFaces) < 1 {
		return Result{Reason: "No face detected in selfie scan."}, nil
	}
	if len(selfieFaces) > 1 {
		return Result{Reason: "Multiple faces detected in selfie frame. Make sure only you are visible."}, nil
	}

	distance := Distance(idFaces[0], selfieFaces[0])
	if !Matches(distance) {
		return Result{Reason: "Face mismatch detected. Please scan again.", Distance: &distance}, nil
	}
	return Result{Verified: true, Reason: "Face matched with scanned ID.", Distance: &distance}, nil
}
