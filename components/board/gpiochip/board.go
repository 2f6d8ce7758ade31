//go:build linux

// Package gpiochip implements a board over the Linux GPIO character device, indirectly
// by way of mkch's gpio package. Pins are named in the config and mapped to line offsets.
package gpiochip

import (
	"context"
	"strconv"
	"sync"

	"github.com/mkch/gpio"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/hoverbot/components/board"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/resource"
)

// Model is the model name of the gpiochip board.
const Model = resource.Model("gpiochip")

const (
	defaultChipPath = "/dev/gpiochip0"
	consumer        = "hoverbot"
)

// Config describes the configuration of a gpiochip board.
type Config struct {
	ChipPath string `json:"gpio_chip_dev,omitempty"`
	// Pins maps pin names to line offsets. A name missing here is parsed as an offset.
	Pins map[string]uint32 `json:"pins,omitempty"`
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
				return NewBoard(newConf, logger), nil
			},
		})
}

// NewBoard returns a board that opens lines lazily on first use.
func NewBoard(conf *Config, logger logging.Logger) *Board {
	chipPath := conf.ChipPath
	if chipPath == "" {
		chipPath = defaultChipPath
	}
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &Board{
		chipPath:   chipPath,
		offsets:    conf.Pins,
		pins:       map[string]*gpioPin{},
		interrupts: map[string]*digitalInterrupt{},
		logger:     logger,
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}
}

// A Board hands out gpiochip lines.
type Board struct {
	chipPath string
	offsets  map[string]uint32

	mu         sync.Mutex
	pins       map[string]*gpioPin
	interrupts map[string]*digitalInterrupt
	logger     logging.Logger

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

func (b *Board) offset(name string) (uint32, error) {
	if offset, ok := b.offsets[name]; ok {
		return offset, nil
	}
	parsed, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return 0, errors.Errorf("unknown pin %q", name)
	}
	return uint32(parsed), nil
}

// GPIOPinByName returns the output line for the named pin.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pin, ok := b.pins[name]; ok {
		return pin, nil
	}
	if _, ok := b.interrupts[name]; ok {
		return nil, errors.Errorf("pin %q is already used as a digital interrupt", name)
	}
	offset, err := b.offset(name)
	if err != nil {
		return nil, err
	}
	pin := &gpioPin{devicePath: b.chipPath, offset: offset}
	b.pins[name] = pin
	return pin, nil
}

// DigitalInterruptByName opens the named line for both edge events and starts
// forwarding them as ticks.
func (b *Board) DigitalInterruptByName(name string) (board.DigitalInterrupt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if di, ok := b.interrupts[name]; ok {
		return di.interrupt, nil
	}
	if b.cancelCtx.Err() != nil {
		return nil, errors.New("board is closed")
	}
	offset, err := b.offset(name)
	if err != nil {
		return nil, err
	}

	chip, err := gpio.OpenChip(b.chipPath)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(chip.Close)

	line, err := chip.OpenLineWithEvents(offset, gpio.Input, gpio.BothEdges, consumer)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open interrupt line %q", name)
	}
	di := &digitalInterrupt{
		interrupt: board.NewBasicDigitalInterrupt(name),
		line:      line,
	}
	b.interrupts[name] = di
	b.startMonitor(di)
	return di.interrupt, nil
}

func (b *Board) startMonitor(di *digitalInterrupt) {
	b.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		for {
			select {
			case <-b.cancelCtx.Done():
				return
			case event := <-di.line.Events():
				goutils.UncheckedError(di.interrupt.Tick(
					b.cancelCtx, event.RisingEdge, uint64(event.Time.UnixNano())))
			}
		}
	}, b.activeBackgroundWorkers.Done)
}

// Close stops every monitor and releases every line.
func (b *Board) Close(ctx context.Context) error {
	b.cancelFunc()
	b.activeBackgroundWorkers.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	var errs error
	for _, di := range b.interrupts {
		errs = multierr.Combine(errs, di.line.Close())
	}
	for _, pin := range b.pins {
		errs = multierr.Combine(errs, pin.close())
	}
	b.interrupts = map[string]*digitalInterrupt{}
	b.pins = map[string]*gpioPin{}
	return errs
}

type digitalInterrupt struct {
	interrupt *board.BasicDigitalInterrupt
	line      *gpio.LineWithEvent
}

type gpioPin struct {
	// These values should both be considered immutable.
	devicePath string
	offset     uint32

	mu   sync.Mutex
	line *gpio.Line
}

// This is a private helper function that should only be called when the mutex is locked. It sets
// pin.line to a valid struct or returns an error.
func (pin *gpioPin) openGpioFd() error {
	if pin.line != nil {
		return nil
	}

	chip, err := gpio.OpenChip(pin.devicePath)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(chip.Close)

	// The 0 just means the default value for this pin is off. We'll set it to the intended value
	// in Set(), below.
	line, err := chip.OpenLine(pin.offset, 0, gpio.Output, consumer)
	if err != nil {
		return err
	}
	pin.line = line
	return nil
}

func (pin *gpioPin) Set(ctx context.Context, isHigh bool) error {
	pin.mu.Lock()
	defer pin.mu.Unlock()

	if err := pin.openGpioFd(); err != nil {
		return err
	}
	var value byte
	if isHigh {
		value = 1
	}
	return pin.line.SetValue(value)
}

func (pin *gpioPin) Get(ctx context.Context) (bool, error) {
	pin.mu.Lock()
	defer pin.mu.Unlock()

	if err := pin.openGpioFd(); err != nil {
		return false, err
	}
	value, err := pin.line.Value()
	if err != nil {
		return false, err
	}
	// We'd expect value to be either 0 or 1, but any non-zero value should be considered high.
	return value != 0, nil
}

func (pin *gpioPin) close() error {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	if pin.line == nil {
		return nil
	}
	err := pin.line.Close()
	pin.line = nil
	return err
}
