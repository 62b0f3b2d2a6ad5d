package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fkcurrie/dma-matrix/internal/config"
	"github.com/fkcurrie/dma-matrix/pkg/dma"
	"github.com/fkcurrie/dma-matrix/pkg/gpio"
	"github.com/fkcurrie/dma-matrix/pkg/mmap"
)

// outputs holds the opened ports and everything that must be closed on exit.
type outputs struct {
	engine  dma.Config
	closers []io.Closer
}

func (o *outputs) Close() error {
	var errs []error
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *outputs) add(c io.Closer) {
	o.closers = append(o.closers, c)
}

// openBackend opens the ports for cfg.Backend.
func openBackend(cfg *config.Config) (*outputs, error) {
	o := &outputs{}
	var err error
	switch cfg.Backend {
	case config.BackendSim:
		err = o.openSim(cfg)
	case config.BackendGPIOCdev:
		err = o.openCdev(cfg.GPIO)
	case config.BackendPeriph:
		err = o.openPeriph(cfg.GPIO)
	case config.BackendMem:
		err = o.openMem(cfg.GPIO)
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		o.Close()
		return nil, err
	}
	return o, nil
}

func (o *outputs) openSim(cfg *config.Config) error {
	g, err := cfg.Geometry()
	if err != nil {
		return err
	}
	data := gpio.NewRecorder(g.BitstreamSize())
	addr := gpio.NewRecorder(g.AddressTableSize())
	o.add(data)
	o.add(addr)
	o.engine = dma.Config{Address: addr, Data: data, Enable: gpio.NopEnable{}}
	return nil
}

func (o *outputs) openCdev(c config.GPIOConfig) error {
	data, err := gpio.NewCdevBus(c.Chip, c.Data)
	if err != nil {
		return err
	}
	o.add(data)
	addr, err := gpio.NewCdevBus(c.Chip, c.Address)
	if err != nil {
		return err
	}
	o.add(addr)
	oe, err := gpio.NewCdevEnable(c.Chip, c.Enable, c.EnableActiveLow)
	if err != nil {
		return err
	}
	o.add(oe)
	o.engine = dma.Config{Address: addr, Data: data, Enable: oe}
	return nil
}

func (o *outputs) openPeriph(c config.GPIOConfig) error {
	data, err := gpio.NewPeriphBus(c.DataPins)
	if err != nil {
		return err
	}
	o.add(data)
	addr, err := gpio.NewPeriphBus(c.AddressPins)
	if err != nil {
		return err
	}
	o.add(addr)
	oe, err := gpio.NewPeriphEnable(c.EnablePin, c.EnableActiveLow)
	if err != nil {
		return err
	}
	o.add(oe)
	o.engine = dma.Config{Address: addr, Data: data, Enable: oe}
	return nil
}

func (o *outputs) openMem(c config.GPIOConfig) error {
	base := uintptr(c.MemBase)
	if base == 0 {
		base = gpio.BCM2711Base
	}
	regs, err := mmap.NewMemoryMap(base, gpio.RegsSize)
	if err != nil {
		return err
	}
	o.add(regs)
	data, err := gpio.NewMemBus(regs, c.Data)
	if err != nil {
		return err
	}
	o.add(data)
	addr, err := gpio.NewMemBus(regs, c.Address)
	if err != nil {
		return err
	}
	o.add(addr)
	oe, err := gpio.NewMemEnable(regs, c.Enable, c.EnableActiveLow)
	if err != nil {
		return err
	}
	o.add(oe)
	o.engine = dma.Config{Address: addr, Data: data, Enable: oe}
	return nil
}
