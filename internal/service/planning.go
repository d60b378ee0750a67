package service

import (
	"context"

	"radiator_control/internal/logger"
	"radiator_control/internal/models"
	"radiator_control/internal/repository"
	"radiator_control/internal/schedule"
)

type PlanningService struct {
	repo   repository.ScheduleRepo
	events repository.EventRepo
	log    *logger.Logger
}

func NewPlanningService(repo repository.ScheduleRepo, events repository.EventRepo, log *logger.Logger) *PlanningService {
	return &PlanningService{repo: repo, events: events, log: orNop(log)}
}

// Get returns the stored schedule with all seven weekdays.
func (s *PlanningService) Get(ctx context.Context) (schedule.Weekly, error) {
	return s.repo.Load(ctx)
}

// Replace validates w, stores it and returns the normalized form.
func (s *PlanningService) Replace(ctx context.Context, w schedule.Weekly) (schedule.Weekly, error) {
	normalized, err := schedule.Normalize(w)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, normalized); err != nil {
		return nil, err
	}

	entries := 0
	for _, day := range normalized {
		entries += len(day)
	}
	recordEvent(ctx, s.events, s.log, models.DeviceEvent{
		Type:        models.EventSchedule,
		Description: "planning updated",
		Metadata:    map[string]any{"entries": entries},
	})
	s.log.Infow("planning_updated", "entries", entries)
	return normalized, nil
}
