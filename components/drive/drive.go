// Package drive defines the pair of hub motors that move the bot. A drive only knows how to
// hold a direction and how to stop; timing belongs to the caller.
package drive

import (
	"context"
	"fmt"

	"go.viam.com/hoverbot/resource"
)

// API is the resource API of every drive.
const API = resource.APIDrive

// Direction is what the two motors do while the drive is engaged.
type Direction int

// The directions a drive can hold.
const (
	Forward Direction = iota
	Backward
	// PivotLeft turns in place counter-clockwise.
	PivotLeft
	// PivotRight turns in place clockwise.
	PivotRight
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case PivotLeft:
		return "pivot_left"
	case PivotRight:
		return "pivot_right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// A Drive engages both motors in a direction until told to stop.
type Drive interface {
	// Engage starts moving in the given direction and returns immediately.
	Engage(ctx context.Context, dir Direction) error

	// Stop brakes both motors. Stopping a stopped drive is not an error.
	Stop(ctx context.Context) error

	// Close stops the drive and releases its hardware.
	Close(ctx context.Context) error
}

// FromDependencies is a helper for getting the drive from a collection of dependencies.
func FromDependencies(deps resource.Dependencies) (Drive, error) {
	return resource.FromDependencies[Drive](deps, API)
}
