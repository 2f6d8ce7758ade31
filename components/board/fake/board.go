// Package fake implements a fake board.
package fake

import (
	"context"
	"sync"

	"go.viam.com/hoverbot/components/board"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/resource"
)

// Model is the model name of the fake board.
const Model = resource.Model("fake")

// A Config describes the configuration of a fake board.
type Config struct {
	// Pins are created up front with the given initial level. Unknown pins are still
	// created on first use.
	Pins map[string]bool `json:"pins,omitempty"`
}

func init() {
	resource.RegisterComponent(
		board.API,
		Model,
		resource.Registration[board.Board, *Config]{
			Constructor: func(
				ctx context.Context,
				_ resource.Dependencies,
				cfg resource.Config,
				logger logging.Logger,
			) (board.Board, error) {
				newConf, err := resource.NativeConfig[*Config](cfg)
				if err != nil {
					return nil, err
				}
				b := NewBoard(logger)
				for name, high := range newConf.Pins {
					b.GPIOPins[name] = &GPIOPin{high: high}
				}
				return b, nil
			},
		})
}

// NewBoard returns a new fake board.
func NewBoard(logger logging.Logger) *Board {
	return &Board{
		Digitals: map[string]*board.BasicDigitalInterrupt{},
		GPIOPins: map[string]*GPIOPin{},
		logger:   logger,
	}
}

// A Board keeps pin levels in memory.
type Board struct {
	mu         sync.Mutex
	Digitals   map[string]*board.BasicDigitalInterrupt
	GPIOPins   map[string]*GPIOPin
	logger     logging.Logger
	CloseCount int
}

// DigitalInterruptByName returns the interrupt by the given name, creating it if needed.
func (b *Board) DigitalInterruptByName(name string) (board.DigitalInterrupt, error) {
	return b.Digital(name), nil
}

// Digital is like DigitalInterruptByName but returns the concrete interrupt so callers
// can feed ticks.
func (b *Board) Digital(name string) *board.BasicDigitalInterrupt {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.Digitals[name]
	if !ok {
		d = board.NewBasicDigitalInterrupt(name)
		b.Digitals[name] = d
	}
	return d
}

// GPIOPinByName returns the GPIO pin by the given name, creating it if needed.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	return b.Pin(name), nil
}

// Pin is like GPIOPinByName but returns the concrete pin.
func (b *Board) Pin(name string) *GPIOPin {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.GPIOPins[name]
	if !ok {
		p = &GPIOPin{}
		b.GPIOPins[name] = p
	}
	return p
}

// Close counts how many times the board was closed.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CloseCount++
	return nil
}

// A GPIOPin reads back the same set values.
type GPIOPin struct {
	mu       sync.Mutex
	high     bool
	setCount int
}

// Set sets the pin to either low or high.
func (gp *GPIOPin) Set(ctx context.Context, high bool) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.high = high
	gp.setCount++
	return nil
}

// Get gets the high/low state of the pin.
func (gp *GPIOPin) Get(ctx context.Context) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.high, nil
}

// SetCount returns how many times Set was called.
func (gp *GPIOPin) SetCount() int {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.setCount
}
