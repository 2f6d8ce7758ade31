// Package board defines the GPIO and interrupt pins the drive and the range sensor are wired to.
package board

import (
	"context"

	"go.viam.com/hoverbot/resource"
)

// API is the resource API of every board.
const API = resource.APIBoard

// A Board represents a physical general purpose board that contains GPIO pins and
// digital interrupts.
type Board interface {
	// GPIOPinByName returns a GPIOPin by name.
	GPIOPinByName(name string) (GPIOPin, error)

	// DigitalInterruptByName returns a digital interrupt by name.
	DigitalInterruptByName(name string) (DigitalInterrupt, error)

	// Close releases every line the board opened and stops its background workers.
	Close(ctx context.Context) error
}

// FromDependencies is a helper for getting the board from a collection of dependencies.
func FromDependencies(deps resource.Dependencies) (Board, error) {
	return resource.FromDependencies[Board](deps, API)
}
