// Package inject provides components whose behavior is set per test through function fields.
package inject

import (
	"context"

	"go.viam.com/hoverbot/components/rangefinder"
)

// Rangefinder is an injected rangefinder.
type Rangefinder struct {
	rangefinder.Rangefinder
	DistanceFunc func(ctx context.Context, maxRangeCm int) (int, error)
	CloseFunc    func(ctx context.Context) error
}

// Distance calls the injected Distance or the real version.
func (r *Rangefinder) Distance(ctx context.Context, maxRangeCm int) (int, error) {
	if r.DistanceFunc == nil {
		return r.Rangefinder.Distance(ctx, maxRangeCm)
	}
	return r.DistanceFunc(ctx, maxRangeCm)
}

// Close calls the injected Close or the real version.
func (r *Rangefinder) Close(ctx context.Context) error {
	if r.CloseFunc == nil {
		if r.Rangefinder == nil {
			return nil
		}
		return r.Rangefinder.Close(ctx)
	}
	return r.CloseFunc(ctx)
}
