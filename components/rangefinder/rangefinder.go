// Package rangefinder defines a forward facing distance sensor measured in whole centimeters.
package rangefinder

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/hoverbot/resource"
)

// API is the resource API of every rangefinder.
const API = resource.APIRangefinder

// ErrTimeout is returned when no echo arrives in time. Callers treat it as "nothing in range".
var ErrTimeout = errors.New("rangefinder: timed out waiting for echo")

// A Rangefinder measures the distance to the nearest object in front of it.
type Rangefinder interface {
	// Distance triggers a single measurement. maxRangeCm is the rated maximum of the
	// sensor; readings beyond it may be reported as ErrTimeout.
	Distance(ctx context.Context, maxRangeCm int) (int, error)

	// Close releases anything the sensor holds.
	Close(ctx context.Context) error
}

// FromDependencies is a helper for getting the rangefinder from a collection of dependencies.
func FromDependencies(deps resource.Dependencies) (Rangefinder, error) {
	return resource.FromDependencies[Rangefinder](deps, API)
}

// Measure takes one reading bounded by timeout and clamps it to [0, maxRangeCm]. A timeout
// or a zero reading resolves to maxRangeCm with no error, so a missed echo is never mistaken
// for an obstacle. Any other error also reports maxRangeCm, alongside the error. When rf is
// Serialized the timeout starts once the lock is held, so waiting for another caller's
// measurement never eats into this one.
func Measure(ctx context.Context, rf Rangefinder, maxRangeCm int, timeout time.Duration) (int, error) {
	if s, ok := rf.(*Serialized); ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		rf = s.rf
	}
	measureCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cm, err := rf.Distance(measureCtx, maxRangeCm)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return maxRangeCm, nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return maxRangeCm, nil
		}
		return maxRangeCm, err
	}
	if cm == 0 {
		return maxRangeCm, nil
	}
	return lo.Clamp(cm, 0, maxRangeCm), nil
}

// Serialized wraps a rangefinder so that at most one measurement is in flight. The
// trigger/echo exchange is not re-entrant: overlapping pings attribute echoes to the
// wrong trigger.
type Serialized struct {
	mu sync.Mutex
	rf Rangefinder
}

// NewSerialized returns rf behind a mutex.
func NewSerialized(rf Rangefinder) *Serialized {
	return &Serialized{rf: rf}
}

// Distance holds the lock for exactly one measurement.
func (s *Serialized) Distance(ctx context.Context, maxRangeCm int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rf.Distance(ctx, maxRangeCm)
}

// Close closes the underlying rangefinder.
func (s *Serialized) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rf.Close(ctx)
}
