// Package schedule changes panel brightness on cron schedules.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fkcurrie/dma-matrix/internal/config"
	"github.com/fkcurrie/dma-matrix/internal/log"
	"github.com/fkcurrie/dma-matrix/internal/types"
)

// lookback bounds the search for an entry's last firing. Every standard
// cron expression fires at least once a year.
const lookback = 366 * 24 * time.Hour

type entry struct {
	expr       string
	sched      cron.Schedule
	brightness float32
}

// Schedule applies brightness entries to a Dimmer.
type Schedule struct {
	cron    *cron.Cron
	target  types.Dimmer
	entries []entry
	loc     *time.Location
}

// New parses entries in standard five-field cron syntax.
func New(target types.Dimmer, entries []config.ScheduleEntry, loc *time.Location) (*Schedule, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Schedule{
		cron:   cron.New(cron.WithLocation(loc)),
		target: target,
		loc:    loc,
	}
	for _, e := range entries {
		sched, err := cron.ParseStandard(e.Cron)
		if err != nil {
			return nil, fmt.Errorf("schedule: entry %q: %w", e.Cron, err)
		}
		ent := entry{expr: e.Cron, sched: sched, brightness: e.Brightness}
		s.entries = append(s.entries, ent)
		s.cron.Schedule(sched, cron.FuncJob(func() { s.apply(ent) }))
	}
	return s, nil
}

func (s *Schedule) apply(e entry) {
	s.target.SetBrightness(e.brightness)
	log.Info("brightness scheduled", "cron", e.expr, "brightness", s.target.Brightness())
}

// Current returns the brightness of the entry that fired most recently
// before now.
func (s *Schedule) Current(now time.Time) (float32, bool) {
	now = now.In(s.loc)
	var (
		best  time.Time
		found bool
		value float32
	)
	for _, e := range s.entries {
		last, ok := lastFire(e.sched, now)
		if ok && (!found || last.After(best)) {
			best, value, found = last, e.brightness, true
		}
	}
	return value, found
}

// lastFire finds the latest activation of sched at or before now. The
// search window grows until it finds one or reaches the lookback.
func lastFire(sched cron.Schedule, now time.Time) (time.Time, bool) {
	for window := time.Hour; ; window *= 4 {
		if window > lookback {
			window = lookback
		}
		var last time.Time
		found := false
		for t := sched.Next(now.Add(-window)); !t.IsZero() && !t.After(now); t = sched.Next(t) {
			last, found = t, true
		}
		if found || window == lookback {
			return last, found
		}
	}
}

// Start applies the current entry, if any, and starts the cron scheduler.
func (s *Schedule) Start() {
	if b, ok := s.Current(time.Now()); ok {
		s.target.SetBrightness(b)
		log.Info("brightness restored from schedule", "brightness", b)
	}
	s.cron.Start()
}

// Stop stops the scheduler. The returned context is done when running jobs
// finish.
func (s *Schedule) Stop() context.Context {
	return s.cron.Stop()
}

// Len returns the number of entries
func (s *Schedule) Len() int {
	return len(s.entries)
}
