// Package motion drives the bot for a bounded time and stops early when an obstacle
// appears in front of it.
package motion

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/hoverbot/components/drive"
)

// ErrInvalidMagnitude is returned for requests that are not strictly positive and finite.
var ErrInvalidMagnitude = errors.New("motion magnitude must be positive")

// Kind is what the drive does during a motion.
type Kind int

// The motion kinds.
const (
	Forward Kind = iota
	Backward
	PivotLeft
	PivotRight
)

func (k Kind) String() string {
	return k.direction().String()
}

func (k Kind) direction() drive.Direction {
	switch k {
	case Forward:
		return drive.Forward
	case Backward:
		return drive.Backward
	case PivotLeft:
		return drive.PivotLeft
	case PivotRight:
		return drive.PivotRight
	default:
		return drive.Direction(k)
	}
}

// polled reports whether the forward facing sensor can see where the bot is going.
func (k Kind) polled() bool {
	return k == Forward
}

// Unit is the unit a request's magnitude is expressed in.
type Unit int

// The request units.
const (
	Milliseconds Unit = iota
	Seconds
	Degrees
)

func (u Unit) String() string {
	switch u {
	case Milliseconds:
		return "ms"
	case Seconds:
		return "s"
	case Degrees:
		return "deg"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

// Request asks the engine to move.
type Request struct {
	Kind      Kind
	Magnitude float64
	Unit      Unit
}

func (r Request) validate() error {
	if math.IsNaN(r.Magnitude) || math.IsInf(r.Magnitude, 0) || r.Magnitude <= 0 {
		return errors.Wrapf(ErrInvalidMagnitude, "got %v %s", r.Magnitude, r.Unit)
	}
	return nil
}

// Outcome is how a motion ended. Travelled is in the request's unit.
type Outcome struct {
	Completed   bool
	Travelled   float64
	ObstacleHit bool
	ObstacleCm  int
	Elapsed     time.Duration
}
