// Package fake implements a drive that records what it was asked to do.
package fake

import (
	"context"
	"sync"

	"go.viam.com/hoverbot/components/drive"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/resource"
)

// Model is the model name of the fake drive.
const Model = resource.Model("fake")

// Config is empty; the fake drive has nothing to configure.
type Config struct{}

func init() {
	resource.RegisterComponent(
		drive.API,
		Model,
		resource.Registration[drive.Drive, *Config]{
			Constructor: func(
				ctx context.Context,
				_ resource.Dependencies,
				_ resource.Config,
				logger logging.Logger,
			) (drive.Drive, error) {
				return NewDrive(logger), nil
			},
		})
}

// NewDrive returns a stopped fake drive.
func NewDrive(logger logging.Logger) *Drive {
	return &Drive{logger: logger}
}

// Event is one call made on the drive.
type Event struct {
	Stop      bool
	Direction drive.Direction
}

// A Drive records engages and stops.
type Drive struct {
	mu         sync.Mutex
	events     []Event
	engaged    bool
	StopCount  int
	CloseCount int
	logger     logging.Logger
}

// Engage records the direction.
func (d *Drive) Engage(ctx context.Context, dir drive.Direction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, Event{Direction: dir})
	d.engaged = true
	d.logger.Debugw("engaged", "direction", dir)
	return nil
}

// Stop records a stop.
func (d *Drive) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, Event{Stop: true})
	d.engaged = false
	d.StopCount++
	return nil
}

// Close stops the drive.
func (d *Drive) Close(ctx context.Context) error {
	if err := d.Stop(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCount++
	return nil
}

// IsMoving returns whether the last call was an engage.
func (d *Drive) IsMoving() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engaged
}

// Events returns a copy of every recorded call.
func (d *Drive) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// Stops returns how many times Stop was called.
func (d *Drive) Stops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.StopCount
}
