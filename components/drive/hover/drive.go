// Package hover implements a drive for two hoverboard hub motors. Each motor controller
// takes a direction line, a brake line and optionally a speed voltage from an MCP4725 DAC.
package hover

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"go.viam.com/hoverbot/components/board"
	"go.viam.com/hoverbot/components/drive"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/resource"
)

// Model is the model name of the hover drive.
const Model = resource.Model("hover")

// MotorConfig wires one hub motor controller.
type MotorConfig struct {
	DirPin   string `json:"dir_pin"`
	BrakePin string `json:"brake_pin"`
	// ForwardLow flips the direction line for a motor mounted mirrored.
	ForwardLow bool `json:"forward_low,omitempty"`
	// DACAddress is the i2c address of this motor's speed DAC. Zero means no DAC.
	DACAddress int `json:"dac_address,omitempty"`
}

// Config describes the configuration of a hover drive.
type Config struct {
	Left  MotorConfig `json:"left"`
	Right MotorConfig `json:"right"`
	// BrakeActiveHigh is set for controllers that brake on a high line.
	BrakeActiveHigh bool `json:"brake_active_high,omitempty"`
	// I2CBus is the periph bus name the DACs hang off, e.g. "1". Empty uses the first bus.
	I2CBus string `json:"i2c_bus,omitempty"`
	// SpeedMillivolts is the speed voltage applied to both DACs.
	SpeedMillivolts int `json:"speed_mv,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	for side, m := range map[string]MotorConfig{"left": conf.Left, "right": conf.Right} {
		if m.DirPin == "" {
			return goutils.NewConfigValidationFieldRequiredError(path+"."+side, "dir_pin")
		}
		if m.BrakePin == "" {
			return goutils.NewConfigValidationFieldRequiredError(path+"."+side, "brake_pin")
		}
		if m.DACAddress < 0 || m.DACAddress > 0x7F {
			return goutils.NewConfigValidationError(path+"."+side, errors.Errorf("invalid dac_address %d", m.DACAddress))
		}
	}
	return nil
}

func (conf *Config) usesDAC() bool {
	return conf.Left.DACAddress != 0 || conf.Right.DACAddress != 0
}

func init() {
	resource.RegisterComponent(
		drive.API,
		Model,
		resource.Registration[drive.Drive, *Config]{
			Constructor: func(
				ctx context.Context,
				deps resource.Dependencies,
				conf resource.Config,
				logger logging.Logger,
			) (drive.Drive, error) {
				newConf, err := resource.NativeConfig[*Config](conf)
				if err != nil {
					return nil, err
				}
				b, err := board.FromDependencies(deps)
				if err != nil {
					return nil, err
				}
				var bus i2c.BusCloser
				if newConf.usesDAC() {
					if bus, err = i2creg.Open(newConf.I2CBus); err != nil {
						return nil, errors.Wrapf(err, "cannot open i2c bus %q", newConf.I2CBus)
					}
				}
				d, err := NewDrive(ctx, b, bus, newConf, logger)
				if err != nil {
					if bus != nil {
						err = multierr.Combine(err, bus.Close())
					}
					return nil, err
				}
				if bus != nil {
					d.closers = append(d.closers, bus.Close)
				}
				return d, nil
			},
		})
}

type motor struct {
	dir        board.GPIOPin
	brake      board.GPIOPin
	forwardLow bool
	dac        *mcp4725
}

func (m *motor) setDirection(ctx context.Context, forward bool) error {
	return m.dir.Set(ctx, forward != m.forwardLow)
}

// Drive is a pair of hub motors.
type Drive struct {
	mu              sync.Mutex
	left, right     *motor
	brakeActiveHigh bool
	engaged         bool
	closers         []func() error
	logger          logging.Logger
}

// NewDrive returns a stopped drive. bus may be nil when no motor has a DAC.
func NewDrive(ctx context.Context, b board.Board, bus i2c.Bus, conf *Config, logger logging.Logger) (*Drive, error) {
	newMotor := func(mc MotorConfig) (*motor, error) {
		dir, err := b.GPIOPinByName(mc.DirPin)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot grab direction pin %q", mc.DirPin)
		}
		brake, err := b.GPIOPinByName(mc.BrakePin)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot grab brake pin %q", mc.BrakePin)
		}
		m := &motor{dir: dir, brake: brake, forwardLow: mc.ForwardLow}
		if mc.DACAddress != 0 {
			if bus == nil {
				return nil, errors.New("a dac_address needs an i2c bus")
			}
			m.dac = newMCP4725(bus, uint16(mc.DACAddress))
		}
		return m, nil
	}

	left, err := newMotor(conf.Left)
	if err != nil {
		return nil, err
	}
	right, err := newMotor(conf.Right)
	if err != nil {
		return nil, err
	}
	d := &Drive{
		left:            left,
		right:           right,
		brakeActiveHigh: conf.BrakeActiveHigh,
		logger:          logger,
	}

	speed := conf.SpeedMillivolts
	if speed == 0 {
		speed = defaultMillivolts
	}
	if err := d.SetSpeedMillivolts(speed); err != nil {
		return nil, err
	}
	if err := d.Stop(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// SetSpeedMillivolts sets the speed voltage of every motor that has a DAC.
func (d *Drive) SetSpeedMillivolts(mv int) error {
	var errs error
	for _, m := range []*motor{d.left, d.right} {
		if m.dac != nil {
			errs = multierr.Combine(errs, m.dac.setMillivolts(mv))
		}
	}
	return errs
}

// SetSpeedPercent sets the speed as a fraction of the usable voltage range.
func (d *Drive) SetSpeedPercent(pct float64) error {
	return d.SetSpeedMillivolts(percentToMillivolts(pct))
}

func (d *Drive) setBrakes(ctx context.Context, engaged bool) error {
	level := engaged == d.brakeActiveHigh
	return multierr.Combine(
		d.left.brake.Set(ctx, level),
		d.right.brake.Set(ctx, level),
	)
}

// Engage brakes, sets both direction lines for dir and releases the brakes.
func (d *Drive) Engage(ctx context.Context, dir drive.Direction) error {
	leftForward, rightForward := true, true
	switch dir {
	case drive.Forward:
	case drive.Backward:
		leftForward, rightForward = false, false
	case drive.PivotLeft:
		leftForward = false
	case drive.PivotRight:
		rightForward = false
	default:
		return errors.Errorf("unknown direction %v", dir)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.setBrakes(ctx, true); err != nil {
		return err
	}
	if err := multierr.Combine(
		d.left.setDirection(ctx, leftForward),
		d.right.setDirection(ctx, rightForward),
	); err != nil {
		return err
	}
	if err := d.setBrakes(ctx, false); err != nil {
		return err
	}
	d.engaged = true
	d.logger.Debugw("engaged", "direction", dir)
	return nil
}

// Stop brakes both motors and returns the direction lines to forward.
func (d *Drive) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := multierr.Combine(
		d.setBrakes(ctx, true),
		d.left.setDirection(ctx, true),
		d.right.setDirection(ctx, true),
	)
	if d.engaged {
		d.logger.Debug("stopped")
	}
	d.engaged = false
	return err
}

// IsMoving returns whether the brakes are released.
func (d *Drive) IsMoving() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engaged
}

// Close stops the drive and releases the i2c bus if it owns one.
func (d *Drive) Close(ctx context.Context) error {
	err := d.Stop(ctx)
	for _, closer := range d.closers {
		err = multierr.Combine(err, closer())
	}
	d.closers = nil
	return err
}
