// Command bus-test walks a single high bit across the configured data and
// address buses and blinks the output-enable line, for checking wiring with
// a meter or logic analyser.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fkcurrie/dma-matrix/internal/config"
	"github.com/fkcurrie/dma-matrix/internal/log"
	"github.com/fkcurrie/dma-matrix/pkg/gpio"
)

func main() {
	configPath := flag.String("config", "/etc/dma-matrix/config.yaml", "Path to config file")
	interval := flag.Duration("interval", time.Second, "Time each bit stays high")
	flag.Parse()

	conf, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Error("failed to load config, using defaults", err, "path", *configPath)
		conf = config.DefaultConfig()
	}
	c := conf.GPIO

	data, err := gpio.NewCdevBus(c.Chip, c.Data)
	if err != nil {
		log.Error("failed to open data bus", err, "chip", c.Chip, "lines", c.Data)
		os.Exit(1)
	}
	defer data.Close()

	addr, err := gpio.NewCdevBus(c.Chip, c.Address)
	if err != nil {
		log.Error("failed to open address bus", err, "chip", c.Chip, "lines", c.Address)
		os.Exit(1)
	}
	defer addr.Close()

	oe, err := gpio.NewCdevEnable(c.Chip, c.Enable, c.EnableActiveLow)
	if err != nil {
		log.Error("failed to open enable line", err, "chip", c.Chip, "line", c.Enable)
		os.Exit(1)
	}
	defer oe.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	type step struct {
		bus   gpio.Bus
		name  string
		lines []int
	}
	steps := []step{{data, "data", c.Data}, {addr, "address", c.Address}}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		for _, s := range steps {
			for bit, line := range s.lines {
				if err := s.bus.WriteByte(1 << bit); err != nil {
					log.Error("failed to drive bus", err, "bus", s.name)
				}
				log.Info("line high", "bus", s.name, "bit", bit, "line", line)
				select {
				case <-sigChan:
					log.Info("received shutdown signal")
					return
				case <-ticker.C:
				}
			}
			if err := s.bus.WriteByte(0); err != nil {
				log.Error("failed to clear bus", err, "bus", s.name)
			}
		}

		log.Info("pulsing output enable", "line", c.Enable)
		if err := oe.Pulse(*interval/2, *interval); err != nil {
			log.Error("failed to pulse enable", err)
		}
	}
}
