// Package periph implements a board on top of the periph.io host drivers. Pins are
// addressed by their periph names, e.g. "GPIO18" or "18".
package periph

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"go.viam.com/hoverbot/components/board"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/resource"
)

// Model is the model name of the periph board.
const Model = resource.Model("periph")

// edgeWaitTimeout bounds each WaitForEdge so the monitor notices Close.
const edgeWaitTimeout = 50 * time.Millisecond

// Config describes the configuration of a periph board.
type Config struct {
	// DigitalInterrupts are configured for edge detection at construction time.
	DigitalInterrupts []string `json:"digital_interrupts,omitempty"`
}

func init() {
	resource.RegisterComponent(
		board.API,
		Model,
		resource.Registration[board.Board, *Config]{
			Constructor: func(
				ctx context.Context,
				_ resource.Dependencies,
				cfg resource.Config,
				logger logging.Logger,
			) (board.Board, error) {
				newConf, err := resource.NativeConfig[*Config](cfg)
				if err != nil {
					return nil, err
				}
				if _, err := host.Init(); err != nil {
					return nil, errors.Wrap(err, "error initializing host")
				}
				return NewBoard(newConf, gpioreg.ByName, logger)
			},
		})
}

// NewBoard returns a board resolving pin names through lookup.
func NewBoard(conf *Config, lookup func(name string) gpio.PinIO, logger logging.Logger) (*Board, error) {
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	b := &Board{
		lookup:     lookup,
		interrupts: map[string]*board.BasicDigitalInterrupt{},
		logger:     logger,
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}
	for _, name := range conf.DigitalInterrupts {
		if _, err := b.DigitalInterruptByName(name); err != nil {
			return nil, multierr.Combine(err, b.Close(context.Background()))
		}
	}
	return b, nil
}

// A Board drives periph pins.
type Board struct {
	lookup func(name string) gpio.PinIO

	mu         sync.Mutex
	interrupts map[string]*board.BasicDigitalInterrupt
	edgePins   []gpio.PinIO
	logger     logging.Logger

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

func (b *Board) pinByName(name string) (gpio.PinIO, error) {
	pin := b.lookup(name)
	if pin == nil {
		return nil, errors.Errorf("no global pin found for %q", name)
	}
	return pin, nil
}

// GPIOPinByName returns the GPIO pin by the given name if it exists.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	pin, err := b.pinByName(name)
	if err != nil {
		return nil, err
	}
	return gpioPin{pin}, nil
}

// DigitalInterruptByName configures the pin for edge detection on first use and returns
// its interrupt.
func (b *Board) DigitalInterruptByName(name string) (board.DigitalInterrupt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if di, ok := b.interrupts[name]; ok {
		return di, nil
	}
	if b.cancelCtx.Err() != nil {
		return nil, errors.New("board is closed")
	}
	pin, err := b.pinByName(name)
	if err != nil {
		return nil, err
	}
	if err := pin.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, errors.Wrapf(err, "cannot enable edge detection on %q", name)
	}
	di := board.NewBasicDigitalInterrupt(name)
	b.interrupts[name] = di
	b.edgePins = append(b.edgePins, pin)
	b.startMonitor(pin, di)
	return di, nil
}

func (b *Board) startMonitor(pin gpio.PinIO, di *board.BasicDigitalInterrupt) {
	b.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		for b.cancelCtx.Err() == nil {
			if !pin.WaitForEdge(edgeWaitTimeout) {
				continue
			}
			now := time.Now()
			high := pin.Read() == gpio.High
			if err := di.Tick(b.cancelCtx, high, uint64(now.UnixNano())); err != nil {
				return
			}
		}
	}, b.activeBackgroundWorkers.Done)
}

// Close stops edge monitoring and halts every interrupt pin.
func (b *Board) Close(ctx context.Context) error {
	b.cancelFunc()
	b.activeBackgroundWorkers.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	var errs error
	for _, pin := range b.edgePins {
		errs = multierr.Combine(errs, pin.Halt())
	}
	b.edgePins = nil
	return errs
}

type gpioPin struct {
	pin gpio.PinIO
}

func (gp gpioPin) Set(ctx context.Context, high bool) error {
	l := gpio.Low
	if high {
		l = gpio.High
	}
	return gp.pin.Out(l)
}

func (gp gpioPin) Get(ctx context.Context) (bool, error) {
	return gp.pin.Read() == gpio.High, nil
}
