package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fkcurrie/dma-matrix/internal/config"
	"github.com/fkcurrie/dma-matrix/internal/log"
	"github.com/fkcurrie/dma-matrix/internal/render"
	"github.com/fkcurrie/dma-matrix/internal/schedule"
	"github.com/fkcurrie/dma-matrix/pkg/dma"
	"github.com/fkcurrie/dma-matrix/pkg/ledmatrix"
)

type flagConfig struct {
	configPath string
	backend    string
	once       bool
	statsEvery time.Duration
}

func parseFlags() flagConfig {
	var cfg flagConfig
	flag.StringVar(&cfg.configPath, "config", "/etc/dma-matrix/config.yaml", "Path to config file")
	flag.StringVar(&cfg.backend, "backend", "", "Output backend: sim, gpiocdev, periph or mem (overrides config)")
	flag.BoolVar(&cfg.once, "once", false, "Render one frame, wait for it to reach the panel and exit")
	flag.DurationVar(&cfg.statsEvery, "stats", 10*time.Second, "Interval between refresh statistics lines")
	flag.Parse()
	return cfg
}

func main() {
	flags := parseFlags()

	conf, err := config.LoadConfig(flags.configPath)
	if err != nil {
		log.Error("failed to load config, using defaults", err, "path", flags.configPath)
		conf = config.DefaultConfig()
	}
	if flags.backend != "" {
		conf.Backend = flags.backend
	}
	level, ok := log.ParseLevel(conf.LogLevel)
	if !ok {
		log.Warn("unknown log level, using INFO", "log_level", conf.LogLevel)
	}
	log.SetLevel(level)

	if err := run(flags, conf); err != nil {
		log.Error("matrix exiting", err)
		os.Exit(1)
	}
	log.Info("matrix exiting")
}

func run(flags flagConfig, conf *config.Config) error {
	geom, err := conf.Geometry()
	if err != nil {
		return err
	}
	log.Info("effective config",
		"panel", fmt.Sprintf("%dx%d", geom.Columns, geom.Rows),
		"bit_depth", geom.BitDepth,
		"pages", geom.Pages,
		"refresh_hz", geom.RefreshHz,
		"row_ticks", geom.RowTicks(),
		"backend", conf.Backend,
		"source", conf.Render.Source,
		"schedule", len(conf.Schedule),
	)

	out, err := openBackend(conf)
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", conf.Backend, err)
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Error("failed to release outputs", err)
		}
	}()

	engine := dma.New(out.engine)
	m, err := ledmatrix.New(geom, engine)
	if err != nil {
		return err
	}
	m.SetBrightness(conf.Brightness)
	if err := m.Begin(); err != nil {
		return fmt.Errorf("failed to start refresh: %w", err)
	}
	defer m.Stop()

	src, err := render.FromConfig(conf.Render)
	if err != nil {
		return err
	}
	renderer := render.NewRenderer(m.Canvas(), src, conf.Render.FPS)

	if flags.once {
		return showOnce(m, renderer)
	}

	loc, err := conf.Location()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", conf.Timezone, err)
	}
	sched, err := schedule.New(m.Canvas(), conf.Schedule, loc)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				if err := reloadSource(flags.configPath, renderer); err != nil {
					log.Error("failed to reload render source", err, "path", flags.configPath)
				}
				continue
			}
			log.Info("signal received, shutting down", "signal", sig.String())
			cancel()
			return
		}
	}()

	stopWatch := startWatch(ctx, m, engine, renderer, flags.statsEvery)
	defer stopWatch()

	if err := renderer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// showOnce renders a single frame and waits for the refresh interrupt to
// swap it in.
func showOnce(m *ledmatrix.Matrix, r *render.Renderer) error {
	if err := r.RenderOnce(); err != nil {
		return err
	}
	deadline := time.Now().Add(2 * time.Second)
	for m.BufferWaiting() {
		if time.Now().After(deadline) {
			return errors.New("frame was not swapped in; is the refresh running?")
		}
		time.Sleep(time.Millisecond)
	}
	log.Info("frame shown", "active", m.Active())
	return nil
}

// reloadSource rereads the render section of the config file and switches
// the renderer to it.
func reloadSource(path string, r *render.Renderer) error {
	conf, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	src, err := render.FromConfig(conf.Render)
	if err != nil {
		return err
	}
	r.SetSource(src)
	log.Info("render source reloaded", "source", conf.Render.Source, "pattern", conf.Render.Pattern, "path", conf.Render.Path)
	return nil
}

// startWatch runs watch in the background. The returned stop function
// cancels it and waits for it to return, so no restart can race a Stop
// that follows.
func startWatch(ctx context.Context, m *ledmatrix.Matrix, e *dma.Engine, r *render.Renderer, every time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		watch(ctx, m, e, r, every)
	}()
	return func() {
		cancel()
		<-done
	}
}

// watch logs refresh statistics and restarts refresh if the engine halts.
// The restart runs between frames so it never overlaps a Show.
func watch(ctx context.Context, m *ledmatrix.Matrix, e *dma.Engine, r *render.Renderer, every time.Duration) {
	if every <= 0 {
		every = 10 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var lastOverflows uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st := m.Stats()
		overflows := e.Overflows()
		log.Debug("refresh stats",
			"overflows", overflows,
			"rate", float64(overflows-lastOverflows)/every.Seconds(),
			"shown", st.Shown,
			"swapped", st.Swapped,
			"replaced", st.Replaced,
			"brightness", m.Brightness(),
		)
		lastOverflows = overflows

		if err := e.Err(); err != nil {
			log.Error("refresh halted, restarting", err)
			r.Locked(func() {
				if err := m.Begin(); err != nil {
					log.Error("failed to restart refresh", err)
				}
			})
		}
	}
}
