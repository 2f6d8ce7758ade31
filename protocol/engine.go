package protocol

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/hoverbot/components/rangefinder"
	"go.viam.com/hoverbot/config"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/motion"
	"go.viam.com/hoverbot/operation"
)

const (
	textNull         = "Received NULL command from server"
	textUnrecognized = "unrecognized command"
	textNoFloatData  = "No data received in floatData[]"
	textBadMs        = "Invalid duration_ms received in floatData[0]"
	textNoFloatDataS = "No data received in float_data[]"
	textBadSeconds   = "Invalid duration_seconds in float_data[0]"
	textBadAngle     = "Invalid angle_degrees in float_data[0]"
	textZeroAngle    = "Zero angle, no turn performed"
)

// Executor runs motions. *motion.Engine is the production implementation.
type Executor interface {
	Execute(ctx context.Context, req motion.Request) (motion.Outcome, error)
}

// Engine dispatches commands one at a time.
type Engine struct {
	motion     Executor
	sensor     rangefinder.Rangefinder
	sensorConf config.SensorConfig
	ops        *operation.Manager
	logger     logging.Logger
}

// NewEngine returns a command engine. sensor is used for PING.
func NewEngine(
	executor Executor,
	sensor rangefinder.Rangefinder,
	sensorConf config.SensorConfig,
	ops *operation.Manager,
	logger logging.Logger,
) *Engine {
	return &Engine{
		motion:     executor,
		sensor:     sensor,
		sensorConf: sensorConf,
		ops:        ops,
		logger:     logger,
	}
}

// Handle runs cmd and always returns its result; a panic while executing becomes a failure.
func (e *Engine) Handle(ctx context.Context, cmd Command) (res CommandResult) {
	res = CommandResult{ID: cmd.ID, Name: cmd.Name, Status: Failure}

	if !cmd.HasName {
		e.logger.Warnw(textNull, "id", cmd.ID)
		res.Name = NullName
		res.Text = textNull
		return res
	}
	op, ok := LookupOp(cmd.Name)
	if !ok {
		e.logger.Warnw("received unrecognized command", "id", cmd.ID, "command", cmd.Name)
		res.Text = textUnrecognized
		return res
	}

	ctx, done := e.ops.Create(ctx, cmd.Name, cmd.FloatParams)
	defer done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorw("command panicked", "id", cmd.ID, "command", cmd.Name, "panic", r)
			res = CommandResult{ID: cmd.ID, Name: cmd.Name, Status: Failure, Text: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	e.logger.Infow("performing command", "id", cmd.ID, "command", cmd.Name, "op", operation.Get(ctx).ID)
	switch op {
	case OpForward, OpBackward, OpTurnLeft, OpTurnRight:
		e.handleTimed(ctx, op, cmd, &res)
	case OpMove:
		e.handleMove(ctx, cmd, &res)
	case OpTurn:
		e.handleTurn(ctx, cmd, &res)
	case OpPing:
		e.handlePing(ctx, &res)
	}
	e.logger.Debugw("command done", "id", cmd.ID, "command", cmd.Name, "status", res.Status, "result", res.Result, "text", res.Text)
	return res
}

func (e *Engine) handleTimed(ctx context.Context, op Op, cmd Command, res *CommandResult) {
	if len(cmd.FloatParams) == 0 {
		res.Text = textNoFloatData
		return
	}
	ms := math.Round(cmd.FloatParams[0])
	if !(ms > 0) || math.IsInf(ms, 0) {
		res.Text = textBadMs
		return
	}

	var (
		kind motion.Kind
		verb string
	)
	switch op {
	case OpBackward:
		kind, verb = motion.Backward, "Moved backward"
	case OpTurnLeft:
		kind, verb = motion.PivotLeft, "Turned left"
	case OpTurnRight:
		kind, verb = motion.PivotRight, "Turned right"
	default:
		kind, verb = motion.Forward, "Moved forward"
	}

	out, ok := e.execute(ctx, motion.Request{Kind: kind, Magnitude: ms, Unit: motion.Milliseconds}, textBadMs, res)
	if !ok {
		return
	}
	res.Status = Success
	res.Result = out.Travelled
	res.Text = fmt.Sprintf("%s for %.2f seconds", verb, ms/1000)
}

func (e *Engine) handleMove(ctx context.Context, cmd Command, res *CommandResult) {
	if len(cmd.FloatParams) == 0 {
		res.Text = textNoFloatDataS
		return
	}
	seconds := cmd.FloatParams[0]
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		res.Text = textBadSeconds
		return
	}
	out, ok := e.execute(ctx, motion.Request{Kind: motion.Forward, Magnitude: seconds, Unit: motion.Seconds}, textBadSeconds, res)
	if !ok {
		return
	}
	res.Status = Success
	res.Result = out.Travelled
	res.Text = fmt.Sprintf("Moved forward for %.2f seconds", seconds)
}

func (e *Engine) handleTurn(ctx context.Context, cmd Command, res *CommandResult) {
	if len(cmd.FloatParams) == 0 {
		res.Text = textNoFloatDataS
		return
	}
	angle := cmd.FloatParams[0]
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		res.Text = textBadAngle
		return
	}
	if angle == 0 {
		res.Status = Success
		res.Text = textZeroAngle
		return
	}

	req := motion.Request{Kind: motion.PivotRight, Magnitude: math.Abs(angle), Unit: motion.Degrees}
	side := "right"
	if angle < 0 {
		req.Kind = motion.PivotLeft
		side = "left"
	}
	if _, ok := e.execute(ctx, req, textBadAngle, res); !ok {
		return
	}
	res.Status = Success
	res.Result = angle
	res.Text = fmt.Sprintf("Turned %s %.1f degrees", side, math.Abs(angle))
}

func (e *Engine) handlePing(ctx context.Context, res *CommandResult) {
	cm, err := rangefinder.Measure(ctx, e.sensor, e.sensorConf.MaxRangeCm, e.sensorConf.Timeout())
	if err != nil {
		e.logger.Warnw("ping failed, reporting max range", "error", err)
	}
	res.Status = Success
	res.Result = float64(cm)
	res.Text = fmt.Sprintf("Distance %d cm", cm)
}

// execute runs req and fills res for every way a motion can fall short. invalidText
// answers a magnitude the motion engine refuses. It reports whether the motion completed.
func (e *Engine) execute(
	ctx context.Context, req motion.Request, invalidText string, res *CommandResult,
) (motion.Outcome, bool) {
	out, err := e.motion.Execute(ctx, req)
	switch {
	case errors.Is(err, motion.ErrInvalidMagnitude):
		e.logger.Warnw("rejected motion", "kind", req.Kind, "error", err)
		res.Text = invalidText
		return out, false
	case err != nil:
		e.logger.Errorw("motion failed", "kind", req.Kind, "error", err)
		res.Result = out.Travelled
		res.Text = fmt.Sprintf("Motion failed: %v", err)
		return out, false
	case out.ObstacleHit:
		res.Result = out.Travelled
		res.Text = fmt.Sprintf(
			"Obstacle detected at %d cm, stopped after %.2f seconds", out.ObstacleCm, out.Elapsed.Seconds())
		return out, false
	case !out.Completed:
		res.Result = out.Travelled
		res.Text = fmt.Sprintf("Motion stopped after %.2f seconds", out.Elapsed.Seconds())
		return out, false
	}
	return out, true
}
