package service

import (
	"context"
	"errors"
	"time"

	"radiator_control/internal/logger"
)

// PollerService refreshes the state of every registered device on a fixed
// interval.
type PollerService struct {
	correlator Correlator
	devices    Devices
	log        *logger.Logger
}

func NewPollerService(c Correlator, devices Devices, log *logger.Logger) *PollerService {
	return &PollerService{correlator: c, devices: devices, log: orNop(log)}
}

// Poll ticks at the given interval until ctx is canceled. A non-positive
// interval returns immediately.
func (p *PollerService) Poll(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *PollerService) pollOnce(ctx context.Context) {
	names, err := p.devices.KnownNames(ctx)
	if err != nil {
		p.log.Errorw("poll_devices_failed", "err", err)
		return
	}
	states, err := p.correlator.RequestStates(ctx, names)
	switch {
	case errors.Is(err, ErrTransportUnavailable):
		p.log.Debugw("poll_skipped", "reason", "transport unavailable")
	case err != nil && ctx.Err() == nil:
		p.log.Errorw("poll_failed", "err", err)
	case err == nil:
		p.log.Debugw("poll_done", "states", states)
	}
}
