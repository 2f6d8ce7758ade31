// Package protocol turns command frames from the peer into motions and answers each one
// with exactly one result frame.
package protocol

import "fmt"

// Status is the outcome reported to the peer.
type Status bool

// The two statuses. A result is a failure unless its operation fully completed.
const (
	Failure Status = false
	Success Status = true
)

func (s Status) String() string {
	if s {
		return "SUCCESS"
	}
	return "FAILURE"
}

// Command is one decoded request from the peer. HasName is false for a frame that
// carried no command string.
type Command struct {
	ID          int
	Name        string
	HasName     bool
	IntParams   []int
	FloatParams []float64
	Text        string
}

// CommandResult answers exactly one Command.
type CommandResult struct {
	ID     int
	Name   string
	Status Status
	Result float64
	Text   string
}

// Op is an operation the bot knows how to perform.
type Op int

// The operation set.
const (
	OpForward Op = iota
	OpBackward
	OpTurnLeft
	OpTurnRight
	OpMove
	OpTurn
	OpPing
)

var opNames = map[Op]string{
	OpForward:   "FORWARD",
	OpBackward:  "BACKWARD",
	OpTurnLeft:  "TURNLEFT",
	OpTurnRight: "TURNRIGHT",
	OpMove:      "move",
	OpTurn:      "turn",
	OpPing:      "PING",
}

var opsByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// LookupOp matches a command name exactly; names are case sensitive.
func LookupOp(name string) (Op, bool) {
	op, ok := opsByName[name]
	return op, ok
}
