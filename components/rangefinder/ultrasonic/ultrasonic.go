// Package ultrasonic implements an HC-SR04 style trigger/echo rangefinder on board pins.
package ultrasonic

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/hoverbot/components/board"
	"go.viam.com/hoverbot/components/rangefinder"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/resource"
)

// Model is the model name of the ultrasonic rangefinder.
const Model = resource.Model("ultrasonic")

// speed of sound in cm/s at room temperature.
const speedOfSoundCmPerSec = 34300.0

const triggerPulse = 10 * time.Microsecond

// Config is used for converting config attributes.
type Config struct {
	TriggerPin    string `json:"trigger_pin"`
	EchoInterrupt string `json:"echo_interrupt_pin"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if len(conf.TriggerPin) == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "trigger_pin")
	}
	if len(conf.EchoInterrupt) == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "echo_interrupt_pin")
	}
	return nil
}

func init() {
	resource.RegisterComponent(
		rangefinder.API,
		Model,
		resource.Registration[rangefinder.Rangefinder, *Config]{
			Constructor: func(
				ctx context.Context,
				deps resource.Dependencies,
				conf resource.Config,
				logger logging.Logger,
			) (rangefinder.Rangefinder, error) {
				newConf, err := resource.NativeConfig[*Config](conf)
				if err != nil {
					return nil, err
				}
				b, err := board.FromDependencies(deps)
				if err != nil {
					return nil, err
				}
				return NewSensor(ctx, b, newConf, logger)
			},
		})
}

// NewSensor creates and configures a new ultrasonic sensor.
func NewSensor(ctx context.Context, b board.Board, conf *Config, logger logging.Logger) (*Sensor, error) {
	logger.Debug("building ultrasonic sensor")
	s := &Sensor{logger: logger}
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	s.cancelCtx = cancelCtx
	s.cancelFunc = cancelFunc

	i, err := b.DigitalInterruptByName(conf.EchoInterrupt)
	if err != nil {
		return nil, errors.Wrapf(err, "ultrasonic: cannot grab digital interrupt %q", conf.EchoInterrupt)
	}
	g, err := b.GPIOPinByName(conf.TriggerPin)
	if err != nil {
		return nil, errors.Wrapf(err, "ultrasonic: cannot grab gpio %q", conf.TriggerPin)
	}
	s.echoInterrupt = i
	s.triggerPin = g

	s.ticks = make(chan board.Tick)
	s.requests = make(chan measurementRequest)
	if err := s.triggerPin.Set(ctx, false); err != nil {
		return nil, errors.Wrap(err, "ultrasonic: cannot set trigger pin to low")
	}
	s.startUpdateLoop()
	return s, nil
}

type measurementRequest struct {
	ctx    context.Context
	result chan measurement
}

type measurement struct {
	cm  int
	err error
}

// Sensor is an ultrasonic rangefinder.
type Sensor struct {
	echoInterrupt           board.DigitalInterrupt
	triggerPin              board.GPIOPin
	ticks                   chan board.Tick
	requests                chan measurementRequest
	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
	logger                  logging.Logger
}

func (s *Sensor) startUpdateLoop() {
	s.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(
		func() {
			s.echoInterrupt.AddCallback(s.ticks)
			defer s.echoInterrupt.RemoveCallback(s.ticks)
			for {
				select {
				case <-s.cancelCtx.Done():
					return
				case req := <-s.requests:
					cm, err := s.measureDistance(req.ctx)
					req.result <- measurement{cm, err}
				// we must consume any ticks from the interrupt that occur outside of a
				// measurement, otherwise the board blocks delivering them.
				case <-s.ticks:
				}
			}
		},
		s.activeBackgroundWorkers.Done,
	)
}

func (s *Sensor) measureDistance(ctx context.Context) (int, error) {
	// we send a high and a low to the trigger pin 10 microseconds
	// apart to signal the sensor to begin sending the sonic pulse
	if err := s.triggerPin.Set(ctx, true); err != nil {
		return 0, errors.Wrap(err, "ultrasonic cannot set trigger pin to high")
	}
	goutils.SelectContextOrWait(ctx, triggerPulse)
	if err := s.triggerPin.Set(ctx, false); err != nil {
		return 0, errors.Wrap(err, "ultrasonic cannot set trigger pin to low")
	}
	// the rising edge marks the pulse leaving, the falling edge the echo arriving
	sent, err := s.waitForEdge(ctx, true)
	if err != nil {
		return 0, err
	}
	received, err := s.waitForEdge(ctx, false)
	if err != nil {
		return 0, err
	}
	echo := received.Time().Sub(sent.Time())
	if echo < 0 {
		return 0, errors.Errorf("ultrasonic: echo ended %s before it started", -echo)
	}
	return int(math.Round(echo.Seconds() * speedOfSoundCmPerSec / 2)), nil
}

func (s *Sensor) waitForEdge(ctx context.Context, high bool) (board.Tick, error) {
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return board.Tick{}, rangefinder.ErrTimeout
			}
			return board.Tick{}, ctx.Err()
		case <-s.cancelCtx.Done():
			return board.Tick{}, errors.New("ultrasonic: sensor closed")
		case tick := <-s.ticks:
			if tick.High == high {
				return tick, nil
			}
		}
	}
}

// Distance triggers one ping and returns the distance to the echo in centimeters. The
// caller's context deadline bounds the wait for the echo.
func (s *Sensor) Distance(ctx context.Context, maxRangeCm int) (int, error) {
	req := measurementRequest{ctx: ctx, result: make(chan measurement, 1)}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.cancelCtx.Done():
		return 0, errors.New("ultrasonic: sensor closed")
	case s.requests <- req:
	}
	res := <-req.result
	if res.err != nil {
		return 0, res.err
	}
	if res.cm > maxRangeCm {
		return 0, rangefinder.ErrTimeout
	}
	return res.cm, nil
}

// Close removes the interrupt callback and stops the update loop.
func (s *Sensor) Close(ctx context.Context) error {
	s.cancelFunc()
	s.activeBackgroundWorkers.Wait()
	return nil
}
