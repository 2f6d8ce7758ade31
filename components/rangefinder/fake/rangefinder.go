// Package fake implements a rangefinder that replays scripted readings.
package fake

import (
	"context"
	"sync"
	"time"

	"go.viam.com/hoverbot/components/rangefinder"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/resource"
)

// Model is the model name of the fake rangefinder.
const Model = resource.Model("fake")

// Config describes the configuration of a fake rangefinder.
type Config struct {
	// Readings are returned in order; the last one repeats. A negative reading is a timeout.
	// No readings means nothing is ever in range.
	Readings []int `json:"readings,omitempty"`
	// LatencyMs is slept on every measurement.
	LatencyMs int `json:"latency_ms,omitempty"`
}

func init() {
	resource.RegisterComponent(
		rangefinder.API,
		Model,
		resource.Registration[rangefinder.Rangefinder, *Config]{
			Constructor: func(
				ctx context.Context,
				_ resource.Dependencies,
				cfg resource.Config,
				logger logging.Logger,
			) (rangefinder.Rangefinder, error) {
				newConf, err := resource.NativeConfig[*Config](cfg)
				if err != nil {
					return nil, err
				}
				return NewRangefinder(newConf.Readings, time.Duration(newConf.LatencyMs)*time.Millisecond), nil
			},
			AttributeMapConverter: func(attributes resource.AttributeMap) (*Config, error) {
				return &Config{
					Readings:  attributes.IntSlice("readings"),
					LatencyMs: attributes.Int("latency_ms", 0),
				}, nil
			},
		})
}

// NewRangefinder returns a rangefinder replaying readings.
func NewRangefinder(readings []int, latency time.Duration) *Rangefinder {
	return &Rangefinder{readings: readings, latency: latency}
}

// A Rangefinder replays readings.
type Rangefinder struct {
	mu       sync.Mutex
	readings []int
	latency  time.Duration
	next     int
	calls    int
}

// Distance returns the next scripted reading.
func (r *Rangefinder) Distance(ctx context.Context, maxRangeCm int) (int, error) {
	if r.latency > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(r.latency):
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.readings) == 0 {
		return maxRangeCm, nil
	}
	reading := r.readings[r.next]
	if r.next < len(r.readings)-1 {
		r.next++
	}
	if reading < 0 {
		return 0, rangefinder.ErrTimeout
	}
	return reading, nil
}

// Calls returns how many measurements were taken.
func (r *Rangefinder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Close does nothing.
func (r *Rangefinder) Close(ctx context.Context) error {
	return nil
}
