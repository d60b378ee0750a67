package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"radiator_control/internal/models"
	"radiator_control/internal/repository"
)

const maxLogLimit = 1000

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var errInvalidTimeRange = errors.New("invalid time range: from must be <= to")

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeFilter validates the time range and canonicalizes the rest.
func normalizeFilter(f LogFilter) (repository.EventFilter, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return repository.EventFilter{}, errInvalidTimeRange
	}

	limit := f.Limit
	if limit <= 0 || limit > maxLogLimit {
		limit = maxLogLimit
	}
	return repository.EventFilter{
		From:   from,
		To:     to,
		Type:   strings.TrimSpace(strings.ToUpper(f.Type)),
		Device: strings.TrimSpace(f.Device),
		Limit:  limit,
	}, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.DeviceEvent, error) {
	rf, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, rf)
}

// IsInvalidFilter reports whether err came from a bad LogFilter.
func IsInvalidFilter(err error) bool {
	return errors.Is(err, errInvalidTimeRange)
}
