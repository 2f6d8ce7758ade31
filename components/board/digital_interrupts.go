package board

import (
	"context"
	"sync"
	"time"
)

// Tick represents a signal received by an interrupt pin.
type Tick struct {
	Name             string
	High             bool
	TimestampNanosec uint64
}

// Time returns the tick timestamp as a time.Time.
func (t Tick) Time() time.Time {
	return time.Unix(0, int64(t.TimestampNanosec))
}

// A DigitalInterrupt represents a configured interrupt on the board that
// when interrupted, calls the added callbacks.
type DigitalInterrupt interface {
	// Name returns the name of the interrupt.
	Name() string

	// AddCallback adds a callback to be sent a tick every time the interrupt fires.
	AddCallback(c chan Tick)

	// RemoveCallback removes a listener for interrupts.
	RemoveCallback(c chan Tick)
}

// A BasicDigitalInterrupt records how many ticks it has seen and fans every tick out to
// its callbacks. Board implementations feed it through Tick.
type BasicDigitalInterrupt struct {
	name string

	mu        sync.RWMutex
	count     int64
	callbacks []chan Tick
}

// NewBasicDigitalInterrupt returns an interrupt with no callbacks.
func NewBasicDigitalInterrupt(name string) *BasicDigitalInterrupt {
	return &BasicDigitalInterrupt{name: name}
}

// Name returns the name of the interrupt.
func (i *BasicDigitalInterrupt) Name() string {
	return i.name
}

// Value returns the amount of ticks that have occurred.
func (i *BasicDigitalInterrupt) Value() int64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.count
}

// Tick records an interrupt and notifies any interested callbacks. A callback that is not
// ready to receive blocks the tick until ctx is done.
func (i *BasicDigitalInterrupt) Tick(ctx context.Context, high bool, nanoseconds uint64) error {
	i.mu.Lock()
	if high {
		i.count++
	}
	callbacks := append([]chan Tick(nil), i.callbacks...)
	i.mu.Unlock()

	tick := Tick{Name: i.name, High: high, TimestampNanosec: nanoseconds}
	for _, c := range callbacks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c <- tick:
		}
	}
	return nil
}

// AddCallback adds a listener for interrupts.
func (i *BasicDigitalInterrupt) AddCallback(c chan Tick) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.callbacks = append(i.callbacks, c)
}

// RemoveCallback removes a listener for interrupts.
func (i *BasicDigitalInterrupt) RemoveCallback(c chan Tick) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for id := range i.callbacks {
		if i.callbacks[id] == c {
			// To remove this item, we replace it with the last item in the list, then truncate the
			// list by 1.
			i.callbacks[id] = i.callbacks[len(i.callbacks)-1]
			i.callbacks = i.callbacks[:len(i.callbacks)-1]
			break
		}
	}
}
