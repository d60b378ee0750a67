package service

import (
	"context"
	"errors"
	"time"

	"radiator_control/internal/logger"
	"radiator_control/internal/metrics"
	"radiator_control/internal/models"
	"radiator_control/internal/repository"
	"radiator_control/internal/schedule"
)

const (
	defaultIdleInterval = 10 * time.Second
	defaultSettleDelay  = 30 * time.Second
)

type SchedulerConfig struct {
	Location    *time.Location
	Idle        time.Duration // sleep while the minute is unchanged
	SettleDelay time.Duration // sleep after an evaluation
}

// SchedulerService fires COMFORT at the start and ECO at the end of every
// range of the weekly schedule. A boundary fires only when the loop
// evaluates its exact minute; a missed minute is not caught up.
type SchedulerService struct {
	planning repository.ScheduleRepo
	modes    Dispatcher
	events   repository.EventRepo
	metrics  *metrics.Metrics
	log      *logger.Logger
	cfg      SchedulerConfig
	now      func() time.Time
}

func NewSchedulerService(planning repository.ScheduleRepo, modes Dispatcher, events repository.EventRepo,
	m *metrics.Metrics, log *logger.Logger, cfg SchedulerConfig) *SchedulerService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Idle <= 0 {
		cfg.Idle = defaultIdleInterval
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	return &SchedulerService{
		planning: planning,
		modes:    modes,
		events:   events,
		metrics:  m,
		log:      orNop(log),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run alternates between IDLE (waiting for a new minute) and EVALUATING
// until ctx is canceled.
func (s *SchedulerService) Run(ctx context.Context) {
	s.log.Infow("scheduler_started", "timezone", s.cfg.Location.String())
	var last time.Time
	for {
		minute := truncateMinute(s.now().In(s.cfg.Location))
		wait := s.cfg.Idle
		if !minute.Equal(last) {
			last = minute
			s.Evaluate(ctx, minute)
			wait = s.cfg.SettleDelay
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			s.log.Infow("scheduler_stopped")
			return
		case <-t.C:
		}
	}
}

// Evaluate fires the boundaries that fall exactly on minute and returns the
// modes applied, in firing order. Ranges ending at 24:00 fire ECO at 00:00
// of the next day.
func (s *SchedulerService) Evaluate(ctx context.Context, minute time.Time) []string {
	minute = truncateMinute(minute)
	w, err := s.planning.Load(ctx)
	if err != nil {
		s.log.Errorw("schedule_source_invalid", "minute", minute.Format("15:04"), "err", err,
			"corrupt", errors.Is(err, schedule.ErrInvalid))
		return nil
	}

	var fired []string
	for _, day := range []time.Time{minute.AddDate(0, 0, -1), minute} {
		for _, e := range w.Day(day.Weekday()) {
			switch {
			case e.End.At(day).Equal(minute):
				s.fire(ctx, models.StateEco, minute)
				fired = append(fired, models.StateEco)
			case e.Start.At(day).Equal(minute):
				s.fire(ctx, models.StateComfort, minute)
				fired = append(fired, models.StateComfort)
			}
		}
	}
	return fired
}

func (s *SchedulerService) fire(ctx context.Context, mode string, minute time.Time) {
	s.metrics.ScheduleTransition(mode)
	s.log.Infow("schedule_boundary", "mode", mode, "at", minute.Format("Mon 15:04"))

	applied, err := s.modes.ApplyMode(ctx, ModeParams{Mode: mode, Source: SourceSchedule})
	meta := map[string]any{"mode": mode, "devices": len(applied)}
	if err != nil {
		s.log.Warnw("schedule_apply_failed", "mode", mode, "err", err)
		meta["error"] = err.Error()
	}
	recordEvent(ctx, s.events, s.log, models.DeviceEvent{
		Type:        models.EventSchedule,
		Description: "schedule " + minute.Format("15:04") + " -> " + mode,
		Metadata:    meta,
	})
}

// truncateMinute works on the absolute instant, so the two passes through a
// repeated wall-clock hour stay distinct minutes.
func truncateMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
