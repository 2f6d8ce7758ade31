package motion

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/hoverbot/components/drive"
	"go.viam.com/hoverbot/components/rangefinder"
	"go.viam.com/hoverbot/config"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/operation"
)

// Engine executes one motion at a time against a drive, watching the rangefinder while
// driving forward.
type Engine struct {
	drive      drive.Drive
	sensor     rangefinder.Rangefinder
	safety     config.SafetyConfig
	sensorConf config.SensorConfig
	clock      clock.Clock
	opMgr      operation.SingleOperationManager
	logger     logging.Logger
}

// NewEngine returns an engine. A nil clk uses the wall clock.
func NewEngine(
	d drive.Drive,
	sensor rangefinder.Rangefinder,
	safety config.SafetyConfig,
	sensorConf config.SensorConfig,
	clk clock.Clock,
	logger logging.Logger,
) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		drive:      d,
		sensor:     sensor,
		safety:     safety,
		sensorConf: sensorConf,
		clock:      clk,
		logger:     logger,
	}
}

func (e *Engine) msPerUnit(u Unit) float64 {
	switch u {
	case Seconds:
		return 1000
	case Degrees:
		return float64(e.safety.FrictionMsPerUnit)
	default:
		return 1
	}
}

// Duration converts a request into actuation time. Execute rejects requests whose
// duration would not fit in a time.Duration.
func (e *Engine) Duration(req Request) time.Duration {
	return time.Duration(req.Magnitude * e.msPerUnit(req.Unit) * float64(time.Millisecond))
}

// Execute engages the drive for the requested amount and stops it. A forward motion
// measures the distance ahead once per poll interval and stops as soon as something is
// within the obstacle threshold.
func (e *Engine) Execute(ctx context.Context, req Request) (Outcome, error) {
	if err := req.validate(); err != nil {
		return Outcome{}, err
	}
	if req.Unit == Degrees && e.safety.FrictionMsPerUnit <= 0 {
		return Outcome{}, errors.Errorf("friction_ms_per_unit must be positive, got %d", e.safety.FrictionMsPerUnit)
	}
	if req.Magnitude*e.msPerUnit(req.Unit)*float64(time.Millisecond) >= math.MaxInt64 {
		return Outcome{}, errors.Wrapf(ErrInvalidMagnitude, "%v %s is longer than any motion can run", req.Magnitude, req.Unit)
	}

	ctx, done := e.opMgr.New(ctx)
	defer done()

	total := e.Duration(req)
	e.logger.Debugw("motion starting", "kind", req.Kind, "magnitude", req.Magnitude, "unit", req.Unit, "duration", total)

	start := e.clock.Now()
	if err := e.drive.Engage(ctx, req.Kind.direction()); err != nil {
		return Outcome{}, multierr.Combine(errors.Wrapf(err, "engaging %s", req.Kind), e.stop(ctx))
	}
	deadline := start.Add(total)

	if req.Kind.polled() {
		hit, cm, err := e.watch(ctx, deadline)
		if err != nil {
			return e.partial(req, start), multierr.Combine(err, e.stop(ctx))
		}
		if hit {
			stopErr := e.stop(ctx)
			out := e.partial(req, start)
			out.ObstacleHit = true
			out.ObstacleCm = cm
			e.logger.Infow("obstacle detected", "distance_cm", cm, "elapsed", out.Elapsed)
			return out, stopErr
		}
	}

	if err := e.sleep(ctx, deadline.Sub(e.clock.Now())); err != nil {
		return e.partial(req, start), multierr.Combine(err, e.stop(ctx))
	}
	if err := e.stop(ctx); err != nil {
		return e.partial(req, start), err
	}
	return Outcome{
		Completed: true,
		Travelled: req.Magnitude,
		Elapsed:   e.clock.Since(start),
	}, nil
}

// watch polls the rangefinder until fewer than one poll interval remains before deadline.
func (e *Engine) watch(ctx context.Context, deadline time.Time) (bool, int, error) {
	poll := e.safety.PollInterval()
	for deadline.Sub(e.clock.Now()) >= poll {
		loopStart := e.clock.Now()
		cm, err := rangefinder.Measure(ctx, e.sensor, e.sensorConf.MaxRangeCm, e.sensorConf.Timeout())
		if ctx.Err() != nil {
			return false, 0, ctx.Err()
		}
		if err != nil {
			e.logger.Warnw("rangefinder error while driving, treating as clear", "error", err)
		}
		if cm <= e.safety.ObstacleThresholdCm {
			return true, cm, nil
		}
		if err := e.sleep(ctx, loopStart.Add(poll).Sub(e.clock.Now())); err != nil {
			return false, 0, err
		}
	}
	return false, 0, nil
}

func (e *Engine) partial(req Request, start time.Time) Outcome {
	elapsed := e.clock.Since(start)
	return Outcome{
		Travelled: float64(elapsed) / float64(time.Millisecond) / e.msPerUnit(req.Unit),
		Elapsed:   elapsed,
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := e.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// stop halts the drive even when ctx is already cancelled.
func (e *Engine) stop(ctx context.Context) error {
	if err := e.drive.Stop(context.WithoutCancel(ctx)); err != nil {
		return errors.Wrap(err, "stopping drive")
	}
	return nil
}

// IsMoving reports whether a motion is in flight.
func (e *Engine) IsMoving() bool {
	return e.opMgr.OpRunning()
}

// Stop cancels any motion in flight and stops the drive.
func (e *Engine) Stop(ctx context.Context) error {
	e.opMgr.CancelRunning(ctx)
	return e.stop(ctx)
}
