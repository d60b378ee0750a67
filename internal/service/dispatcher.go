package service

import (
	"context"
	"fmt"
	"strings"

	"radiator_control/internal/logger"
	"radiator_control/internal/metrics"
	"radiator_control/internal/models"
	"radiator_control/internal/protocol"
	"radiator_control/internal/repository"
	"radiator_control/internal/state"
)

// DispatcherService publishes mode commands. Disabled devices are always
// sent ECO whatever mode was requested.
type DispatcherService struct {
	transport Transport
	devices   repository.DeviceRepo
	store     *state.Store
	events    repository.EventRepo
	metrics   *metrics.Metrics
	log       *logger.Logger
	wire      Wire
}

func NewDispatcherService(t Transport, devices repository.DeviceRepo, store *state.Store,
	events repository.EventRepo, m *metrics.Metrics, log *logger.Logger, wire Wire) *DispatcherService {
	return &DispatcherService{
		transport: t,
		devices:   devices,
		store:     store,
		events:    events,
		metrics:   m,
		log:       orNop(log),
		wire:      wire,
	}
}

// ApplyMode sends p.Mode to p.Targets (every registered device when nil) and
// returns the mode each device was actually sent.
func (s *DispatcherService) ApplyMode(ctx context.Context, p ModeParams) (map[string]string, error) {
	mode := strings.TrimSpace(p.Mode)
	if mode == "" || mode == protocol.CommandState {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, p.Mode)
	}
	source := p.Source
	if source == "" {
		source = SourceAPI
	}

	registered, err := s.devices.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load devices: %w", err)
	}
	disabled := make(map[string]bool, len(registered))
	for _, d := range registered {
		disabled[d.Name] = d.Disabled
	}

	targets := p.Targets
	if targets == nil {
		targets = make([]string, 0, len(registered))
		for _, d := range registered {
			targets = append(targets, d.Name)
		}
	}
	targets = uniqueNames(targets)

	applied := make(map[string]string, len(targets))
	if len(targets) == 0 {
		return applied, nil
	}
	if !available(s.transport) {
		return nil, ErrTransportUnavailable
	}

	for _, target := range targets {
		effective := mode
		if disabled[target] {
			effective = models.StateEco
		}
		if err := s.wire.publish(s.transport, protocol.ModeCommand(target, effective)); err != nil {
			s.log.Errorw("mode_publish_failed", "device", target, "mode", effective, "err", err)
			return applied, err
		}

		applied[target] = effective
		s.store.Set(target, effective)
		s.metrics.SetDeviceMode(target, effective)
		s.metrics.ModeCommand(effective, source)
		recordEvent(ctx, s.events, s.log, models.DeviceEvent{
			Type:        models.EventModeChange,
			Device:      target,
			Description: "mode " + effective,
			Metadata: map[string]any{
				"requested": mode,
				"applied":   effective,
				"disabled":  disabled[target],
				"source":    source,
			},
		})
	}

	s.log.Infow("mode_applied", "mode", mode, "source", source, "devices", len(applied))
	return applied, nil
}
