package hover

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"periph.io/x/conn/v3/i2c"
)

// Speed voltage limits of the hub motor controllers, in millivolts.
const (
	refMillivolts     = 5000
	minMillivolts     = 300
	defaultMillivolts = 1200

	dacMaxValue = 4095
)

// mcp4725 is the 12 bit DAC feeding a motor controller's speed input.
type mcp4725 struct {
	dev *i2c.Dev
}

func newMCP4725(bus i2c.Bus, addr uint16) *mcp4725 {
	return &mcp4725{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

// clampMillivolts limits a speed voltage to what the controller accepts.
func clampMillivolts(mv int) int {
	return lo.Clamp(mv, minMillivolts, refMillivolts)
}

// percentToMillivolts maps a 0..1 speed onto the usable voltage range.
func percentToMillivolts(pct float64) int {
	pct = lo.Clamp(pct, 0, 1)
	return minMillivolts + int(pct*float64(refMillivolts-minMillivolts))
}

// setMillivolts writes the clamped voltage using the fast write command.
func (d *mcp4725) setMillivolts(mv int) error {
	value := uint16(clampMillivolts(mv) * dacMaxValue / refMillivolts)
	if _, err := d.dev.Write([]byte{byte(value>>8) & 0x0F, byte(value)}); err != nil {
		return errors.Wrapf(err, "cannot write speed voltage to dac 0x%02x", d.dev.Addr)
	}
	return nil
}
