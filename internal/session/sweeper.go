package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	robcron "github.com/robfig/cron/v3"
)

const defaultSweepSchedule = "@every 10m"

// Sweeper periodically reclaims expired entries from a file store.
type Sweeper struct {
	store    *FileStore
	schedule robcron.Schedule
	logf     func(format string, args ...any)
	doneCh   chan struct{}
}

// StartSweeper runs sweeps on the given cron schedule (descriptors such as
// "@every 10m" are accepted) until ctx is cancelled.
func StartSweeper(ctx context.Context, store *FileStore, scheduleExpr string, logf func(format string, args ...any)) (*Sweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("session: file store is required")
	}
	expr := strings.TrimSpace(scheduleExpr)
	if expr == "" {
		expr = defaultSweepSchedule
	}
	parser := robcron.NewParser(robcron.Minute | robcron.Hour | robcron.Dom | robcron.Month | robcron.Dow | robcron.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule: %w", err)
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	s := &Sweeper{store: store, schedule: schedule, logf: logf, doneCh: make(chan struct{})}
	go s.loop(ctx)
	return s, nil
}

// Done closes after the sweep loop has exited.
func (s *Sweeper) Done() <-chan struct{} { return s.doneCh }

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.doneCh)
	for {
		now := time.Now()
		timer := time.NewTimer(s.schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		removed, err := s.store.Sweep(time.Now())
		if err != nil {
			s.logf("session sweep failed: %v", err)
			continue
		}
		if removed > 0 {
			s.logf("session sweep reclaimed %d expired entries", removed)
		}
	}
}
