package service

import (
	"context"
	"time"

	"radiator_control/internal/logger"
	"radiator_control/internal/metrics"
	"radiator_control/internal/models"
	"radiator_control/internal/protocol"
	"radiator_control/internal/repository"
	"radiator_control/internal/state"
)

const (
	defaultMaxAttempts  = 4
	defaultRoundTimeout = 2 * time.Second
	defaultPollInterval = 10 * time.Millisecond
)

type CorrelatorConfig struct {
	Wire         Wire
	Timeout      time.Duration // per round
	MaxAttempts  int           // the attempt that reaches this marks the rest ERROR
	PollInterval time.Duration // upper bound between two inbox reads
}

// CorrelatorService turns the broadcast topic into a request/response
// primitive: it publishes STATE to each target and matches replies by
// content, retrying only the devices that stayed silent.
type CorrelatorService struct {
	transport Transport
	store     *state.Store
	events    repository.EventRepo
	metrics   *metrics.Metrics
	log       *logger.Logger
	cfg       CorrelatorConfig
}

func NewCorrelatorService(t Transport, store *state.Store, events repository.EventRepo,
	m *metrics.Metrics, log *logger.Logger, cfg CorrelatorConfig) *CorrelatorService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRoundTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &CorrelatorService{
		transport: t,
		store:     store,
		events:    events,
		metrics:   m,
		log:       orNop(log),
		cfg:       cfg,
	}
}

// RequestStates queries targets and returns the state each one resolved to.
// Silent devices resolve to ERROR once the attempt budget is spent. Devices
// outside targets are never touched. On ctx cancellation the states resolved
// so far are returned with ctx.Err().
func (s *CorrelatorService) RequestStates(ctx context.Context, targets []string) (map[string]string, error) {
	pending := uniqueNames(targets)
	result := make(map[string]string, len(pending))
	if len(pending) == 0 {
		return result, nil
	}
	if !available(s.transport) {
		return result, ErrTransportUnavailable
	}

	started := time.Now()
	defer func() { s.metrics.ObserveRequest(time.Since(started)) }()

	for attempt := 1; len(pending) > 0; attempt++ {
		if attempt >= s.cfg.MaxAttempts {
			s.markUnreachable(ctx, pending, result)
			break
		}
		remaining, err := s.round(ctx, pending, result)
		if err != nil {
			return result, err
		}
		if len(remaining) > 0 {
			s.log.Debugw("state_request_retry", "attempt", attempt, "remaining", remaining)
		}
		pending = remaining
	}
	return result, nil
}

// round publishes one STATE per target and drains the inbox until every
// target answered or the round timed out. It returns the silent targets.
func (s *CorrelatorService) round(ctx context.Context, targets []string, result map[string]string) ([]string, error) {
	// Take the cursor before publishing so a fast reply cannot be missed.
	cursor := s.transport.Cursor()
	sentAt := time.Now()

	responded := make(map[string]bool, len(targets))
	for _, t := range targets {
		responded[t] = false
	}
	for _, t := range targets {
		if err := s.cfg.Wire.publish(s.transport, protocol.StateRequest(t)); err != nil {
			return nil, err
		}
		s.metrics.StatePublished()
	}

	answered := 0
	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()

	for {
		changed := s.transport.Changed()
		batch, next := s.transport.Since(cursor)
		cursor = next

		for _, r := range batch {
			if r.ReceivedAt.Before(sentAt) {
				continue
			}
			msg, err := protocol.Decode(r.Payload)
			if err != nil {
				s.metrics.MalformedMessage()
				s.log.Debugw("malformed_message_ignored", "payload", string(r.Payload), "err", err)
				continue
			}
			if msg.To != protocol.ControllerID {
				continue
			}
			done, wanted := responded[msg.From]
			if !wanted || done {
				continue
			}
			responded[msg.From] = true
			answered++
			s.resolve(ctx, msg.From, msg.Command, result)
		}

		if answered == len(targets) {
			return nil, nil
		}
		if time.Since(sentAt) > s.cfg.Timeout {
			break
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		case <-timer.C:
		}
	}

	remaining := make([]string, 0, len(targets)-answered)
	for _, t := range targets {
		if !responded[t] {
			remaining = append(remaining, t)
		}
	}
	return remaining, nil
}

func (s *CorrelatorService) resolve(ctx context.Context, device, mode string, result map[string]string) {
	prev, _ := s.store.Get(device)
	s.store.Set(device, mode)
	result[device] = mode
	s.metrics.SetDeviceMode(device, mode)
	s.metrics.StateResult(metrics.OutcomeAnswered, 1)

	if prev != mode {
		recordEvent(ctx, s.events, s.log, models.DeviceEvent{
			Type:        models.EventState,
			Device:      device,
			Description: "reported " + mode,
			Metadata:    map[string]any{"previous": prev, "state": mode},
		})
	}
}

func (s *CorrelatorService) markUnreachable(ctx context.Context, devices []string, result map[string]string) {
	for _, d := range devices {
		s.store.Set(d, models.StateError)
		result[d] = models.StateError
		s.metrics.SetDeviceMode(d, models.StateError)
		recordEvent(ctx, s.events, s.log, models.DeviceEvent{
			Type:        models.EventUnreachable,
			Device:      d,
			Description: "no answer to STATE",
			Metadata:    map[string]any{"attempts": s.cfg.MaxAttempts - 1},
		})
	}
	s.metrics.StateResult(metrics.OutcomeUnreachable, len(devices))
	s.log.Warnw("devices_unreachable", "devices", devices, "attempts", s.cfg.MaxAttempts-1)
}
