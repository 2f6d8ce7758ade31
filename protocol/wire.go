package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// NullName is reported back for a frame that had no command string.
const NullName = "NULL"

// ErrMalformedFrame wraps every decode failure. Malformed frames get no reply.
var ErrMalformedFrame = errors.New("malformed command frame")

// Frame is the JSON shape of both directions of the command channel.
type Frame struct {
	ID        int       `json:"id"`
	Command   *string   `json:"command"`
	Status    string    `json:"status,omitempty"`
	IntData   []int     `json:"intData"`
	FloatData []float64 `json:"floatData"`
	Result    float64   `json:"result"`
	Text      string    `json:"text"`

	// some peers spell the float payload this way for move and turn
	FloatDataAlt []float64 `json:"float_data,omitempty"`
}

// Decode parses one line into a Command.
func Decode(line []byte) (Command, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Command{}, errors.Wrap(ErrMalformedFrame, "expected a JSON object")
	}
	var f Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return Command{}, errors.Wrapf(ErrMalformedFrame, "%v", err)
	}
	cmd := Command{
		ID:          f.ID,
		IntParams:   f.IntData,
		FloatParams: f.FloatData,
		Text:        f.Text,
	}
	if cmd.FloatParams == nil {
		cmd.FloatParams = f.FloatDataAlt
	}
	if f.Command != nil {
		cmd.Name = *f.Command
		cmd.HasName = true
	}
	return cmd, nil
}

// Encode renders a result as one newline terminated frame.
func Encode(res CommandResult) ([]byte, error) {
	name := res.Name
	f := Frame{
		ID:        res.ID,
		Command:   &name,
		Status:    res.Status.String(),
		IntData:   []int{},
		FloatData: []float64{},
		Result:    res.Result,
		Text:      res.Text,
	}
	out, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "encoding result frame")
	}
	return append(out, '\n'), nil
}

// EncodeCommand renders a command frame the way a peer sends it.
func EncodeCommand(cmd Command) ([]byte, error) {
	f := Frame{
		ID:        cmd.ID,
		IntData:   cmd.IntParams,
		FloatData: cmd.FloatParams,
		Text:      cmd.Text,
	}
	if f.IntData == nil {
		f.IntData = []int{}
	}
	if f.FloatData == nil {
		f.FloatData = []float64{}
	}
	if cmd.HasName {
		name := cmd.Name
		f.Command = &name
	}
	out, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "encoding command frame")
	}
	return append(out, '\n'), nil
}

// DecodeResult parses a result frame, as a peer would.
func DecodeResult(line []byte) (CommandResult, error) {
	var f Frame
	if err := json.Unmarshal(bytes.TrimSpace(line), &f); err != nil {
		return CommandResult{}, errors.Wrapf(ErrMalformedFrame, "%v", err)
	}
	res := CommandResult{
		ID:     f.ID,
		Status: Status(f.Status == Success.String()),
		Result: f.Result,
		Text:   f.Text,
	}
	if f.Command != nil {
		res.Name = *f.Command
	}
	return res, nil
}
