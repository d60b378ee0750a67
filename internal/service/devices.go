package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"radiator_control/internal/logger"
	"radiator_control/internal/metrics"
	"radiator_control/internal/models"
	"radiator_control/internal/repository"
	"radiator_control/internal/state"
)

const maxDeviceNameLen = 63

var (
	ErrDeviceNotFound    = errors.New("device not found")
	ErrDeviceExists      = errors.New("device already exists")
	ErrInvalidDeviceName = errors.New("invalid device name")
)

// DeviceStatus is a registered device with its last known mode.
type DeviceStatus struct {
	models.Device
	State string `json:"state"`
}

// DeviceService keeps the registry table and the state store in step: every
// registered device has a store entry, and removing or renaming a device
// moves or drops that entry.
type DeviceService struct {
	repo    repository.DeviceRepo
	store   *state.Store
	modes   Dispatcher
	events  repository.EventRepo
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewDeviceService(repo repository.DeviceRepo, store *state.Store, modes Dispatcher,
	events repository.EventRepo, m *metrics.Metrics, log *logger.Logger) *DeviceService {
	return &DeviceService{repo: repo, store: store, modes: modes, events: events, metrics: m, log: orNop(log)}
}

// Sync registers the configured devices and seeds DEFAULT for every
// registered device not yet in the store.
func (s *DeviceService) Sync(ctx context.Context, seed []string) error {
	if err := s.repo.EnsureAll(ctx, uniqueNames(seed)); err != nil {
		return err
	}
	names, err := s.KnownNames(ctx)
	if err != nil {
		return err
	}
	s.store.Seed(names...)
	for _, n := range names {
		if v, ok := s.store.Get(n); ok {
			s.metrics.SetDeviceMode(n, v)
		}
	}
	s.log.Infow("devices_loaded", "count", len(names))
	return nil
}

func (s *DeviceService) ListDevices(ctx context.Context) ([]DeviceStatus, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DeviceStatus, 0, len(devices))
	for _, d := range devices {
		st, ok := s.store.Get(d.Name)
		if !ok {
			st = models.StateDefault
		}
		out = append(out, DeviceStatus{Device: d, State: st})
	}
	return out, nil
}

// KnownNames returns the registered device names in order.
func (s *DeviceService) KnownNames(ctx context.Context) ([]string, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
	}
	return names, nil
}

func (s *DeviceService) Register(ctx context.Context, name, ipAddress string) (models.Device, error) {
	name, err := validDeviceName(name)
	if err != nil {
		return models.Device{}, err
	}
	d := models.Device{Name: name, IPAddress: strings.TrimSpace(ipAddress)}
	if err := s.repo.Create(ctx, d); err != nil {
		return models.Device{}, mapRepoErr(err, name)
	}

	s.store.Seed(name)
	s.metrics.SetDeviceMode(name, models.StateDefault)
	recordEvent(ctx, s.events, s.log, models.DeviceEvent{
		Type:        models.EventDevice,
		Device:      name,
		Description: "registered",
		Metadata:    map[string]any{"ip_address": d.IPAddress},
	})
	s.log.Infow("device_registered", "device", name)

	if got, err := s.repo.Get(ctx, name); err == nil {
		return *got, nil
	}
	return d, nil
}

func (s *DeviceService) Rename(ctx context.Context, oldName, newName string) error {
	oldName = strings.TrimSpace(oldName)
	newName, err := validDeviceName(newName)
	if err != nil {
		return err
	}
	if oldName == newName {
		if _, err := s.repo.Get(ctx, oldName); err != nil {
			return mapRepoErr(err, oldName)
		}
		return nil
	}
	if err := s.repo.Rename(ctx, oldName, newName); err != nil {
		return mapRepoErr(err, newName)
	}

	if !s.store.Rename(oldName, newName) {
		s.store.Seed(newName)
	}
	s.metrics.ForgetDevice(oldName)
	if v, ok := s.store.Get(newName); ok {
		s.metrics.SetDeviceMode(newName, v)
	}
	recordEvent(ctx, s.events, s.log, models.DeviceEvent{
		Type:        models.EventDevice,
		Device:      newName,
		Description: "renamed from " + oldName,
		Metadata:    map[string]any{"old_name": oldName, "new_name": newName},
	})
	s.log.Infow("device_renamed", "old_name", oldName, "new_name", newName)
	return nil
}

func (s *DeviceService) Remove(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := s.repo.Delete(ctx, name); err != nil {
		return mapRepoErr(err, name)
	}
	s.store.Remove(name)
	s.metrics.ForgetDevice(name)
	recordEvent(ctx, s.events, s.log, models.DeviceEvent{
		Type:        models.EventDevice,
		Device:      name,
		Description: "removed",
	})
	s.log.Infow("device_removed", "device", name)
	return nil
}

// DisabledMap returns the disabled flag of every registered device.
func (s *DeviceService) DisabledMap(ctx context.Context) (map[string]bool, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(devices))
	for _, d := range devices {
		out[d.Name] = d.Disabled
	}
	return out, nil
}

// SetDisabled stores the flag. Disabling a device pushes ECO to it right
// away when the broker is reachable; the returned map holds what was sent.
func (s *DeviceService) SetDisabled(ctx context.Context, name string, disabled bool) (map[string]string, error) {
	name = strings.TrimSpace(name)
	if err := s.repo.SetDisabled(ctx, name, disabled); err != nil {
		return nil, mapRepoErr(err, name)
	}
	recordEvent(ctx, s.events, s.log, models.DeviceEvent{
		Type:        models.EventOption,
		Device:      name,
		Description: fmt.Sprintf("disabled=%t", disabled),
		Metadata:    map[string]any{"disabled": disabled},
	})
	s.log.Infow("device_option_changed", "device", name, "disabled", disabled)

	if !disabled || s.modes == nil {
		return map[string]string{}, nil
	}
	applied, err := s.modes.ApplyMode(ctx, ModeParams{
		Mode:    models.StateEco,
		Targets: []string{name},
		Source:  SourceOptions,
	})
	if err != nil {
		if errors.Is(err, ErrTransportUnavailable) {
			s.log.Warnw("disable_push_skipped", "device", name, "err", err)
			return map[string]string{}, nil
		}
		return nil, err
	}
	return applied, nil
}

func validDeviceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxDeviceNameLen {
		return "", fmt.Errorf("%w: must be 1-%d characters", ErrInvalidDeviceName, maxDeviceNameLen)
	}
	return name, nil
}

func mapRepoErr(err error, name string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %s", ErrDeviceExists, name)
	default:
		return err
	}
}
