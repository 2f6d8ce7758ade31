package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"go.viam.com/hoverbot/protocol"
)

// parseLine turns a typed line such as "FORWARD 500" or "turn -90" into a command
// frame. Every argument after the name goes into the float payload. The name NULL
// sends a frame with no command at all.
func parseLine(id int, line string) (protocol.Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return protocol.Command{}, errors.New("empty command")
	}
	cmd := protocol.Command{ID: id}
	if fields[0] != protocol.NullName {
		cmd.Name = fields[0]
		cmd.HasName = true
	}
	for _, arg := range fields[1:] {
		f, err := cast.ToFloat64E(arg)
		if err != nil {
			return protocol.Command{}, errors.Wrapf(err, "argument %q", arg)
		}
		cmd.FloatParams = append(cmd.FloatParams, f)
	}
	return cmd, nil
}
