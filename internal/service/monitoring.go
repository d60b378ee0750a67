package service

import (
	"context"
	"errors"

	"radiator_control/internal/state"
)

// StatesView is what the dashboard shows: the mode of every device and its
// disabled flag. Cached is set when the states were not refreshed from the
// devices.
type StatesView struct {
	States   map[string]string `json:"states"`
	Disabled map[string]bool   `json:"disabled"`
	Cached   bool              `json:"cached"`
}

type MonitoringService struct {
	correlator Correlator
	transport  Transport
	devices    Devices
	store      *state.Store
}

func NewMonitoringService(c Correlator, t Transport, devices Devices, store *state.Store) *MonitoringService {
	return &MonitoringService{correlator: c, transport: t, devices: devices, store: store}
}

// Refresh queries every registered device. When the broker is unreachable it
// falls back to the last known states.
func (s *MonitoringService) Refresh(ctx context.Context) (StatesView, error) {
	if !available(s.transport) {
		return s.view(ctx, true)
	}
	names, err := s.devices.KnownNames(ctx)
	if err != nil {
		return StatesView{}, err
	}
	if _, err := s.correlator.RequestStates(ctx, names); err != nil {
		if errors.Is(err, ErrTransportUnavailable) {
			return s.view(ctx, true)
		}
		return StatesView{}, err
	}
	return s.view(ctx, false)
}

// Current returns the last known states without any network traffic.
func (s *MonitoringService) Current(ctx context.Context) (StatesView, error) {
	return s.view(ctx, true)
}

func (s *MonitoringService) view(ctx context.Context, cached bool) (StatesView, error) {
	disabled, err := s.devices.DisabledMap(ctx)
	if err != nil {
		return StatesView{}, err
	}
	return StatesView{States: s.store.Snapshot(), Disabled: disabled, Cached: cached}, nil
}
