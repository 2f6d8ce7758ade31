// Package robot assembles the bot from its configuration and keeps it connected to its peer.
package robot

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/hoverbot/components/board"
	"go.viam.com/hoverbot/components/drive"
	"go.viam.com/hoverbot/components/rangefinder"
	"go.viam.com/hoverbot/config"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/motion"
	"go.viam.com/hoverbot/operation"
	"go.viam.com/hoverbot/protocol"
	"go.viam.com/hoverbot/resource"
)

// Robot owns the hardware and the engines that act on it. A Robot serves one peer
// connection at a time.
type Robot struct {
	cfg *config.Config

	board  board.Board
	sensor *rangefinder.Serialized
	drive  drive.Drive

	motion     *motion.Engine
	commands   *protocol.Engine
	operations *operation.Manager
	clock      clock.Clock

	closeOnce sync.Once
	logger    logging.Logger
}

// New builds every component named in cfg and wires the engines together.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (_ *Robot, err error) {
	var rOpts options
	for _, opt := range opts {
		opt.apply(&rOpts)
	}
	if rOpts.clock == nil {
		rOpts.clock = clock.New()
	}

	r := &Robot{
		cfg:    cfg,
		clock:  rOpts.clock,
		logger: logger,
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, r.closeComponents(ctx))
		}
	}()

	deps := resource.Dependencies{}
	r.board, err = resource.Build[board.Board](ctx, board.API, deps, cfg.Board, logger)
	if err != nil {
		return nil, err
	}
	deps[board.API] = r.board

	rf, err := resource.Build[rangefinder.Rangefinder](ctx, rangefinder.API, deps, cfg.Rangefinder, logger)
	if err != nil {
		return nil, err
	}
	// telemetry and the motion engine share one sensor
	r.sensor = rangefinder.NewSerialized(rf)
	deps[rangefinder.API] = r.sensor

	r.drive, err = resource.Build[drive.Drive](ctx, drive.API, deps, cfg.Drive, logger)
	if err != nil {
		return nil, err
	}

	r.operations = operation.NewManager(logger)
	r.motion = motion.NewEngine(r.drive, r.sensor, cfg.Safety, cfg.Sensor, r.clock, logger.Named("motion"))
	r.commands = protocol.NewEngine(r.motion, r.sensor, cfg.Sensor, r.operations, logger.Named("protocol"))

	logger.Infow("robot ready",
		"identity", cfg.Identity,
		"board", cfg.Board.Model,
		"rangefinder", cfg.Rangefinder.Model,
		"drive", cfg.Drive.Model,
	)
	return r, nil
}

// Config returns the config the robot was built from.
func (r *Robot) Config() *config.Config {
	return r.cfg
}

// OperationManager returns the operation manager for the robot.
func (r *Robot) OperationManager() *operation.Manager {
	return r.operations
}

// Commands returns the command engine.
func (r *Robot) Commands() *protocol.Engine {
	return r.commands
}

// StopAll cancels all current operations and stops the drive.
func (r *Robot) StopAll(ctx context.Context) error {
	r.operations.CancelAll()
	if err := r.motion.Stop(ctx); err != nil {
		return errors.Wrap(err, "failed to stop drive")
	}
	return nil
}

// Close stops the drive and closes every component.
func (r *Robot) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		err = multierr.Combine(r.StopAll(ctx), r.closeComponents(ctx))
	})
	return err
}

// closeComponents closes in reverse build order; the drive and sensor depend on the board.
func (r *Robot) closeComponents(ctx context.Context) error {
	var err error
	if r.drive != nil {
		err = multierr.Combine(err, r.drive.Close(ctx))
	}
	if r.sensor != nil {
		err = multierr.Combine(err, r.sensor.Close(ctx))
	}
	if r.board != nil {
		err = multierr.Combine(err, r.board.Close(ctx))
	}
	return err
}
