package service

import (
	"context"
	"fmt"
	"strings"

	"radiator_control/internal/logger"
	"radiator_control/internal/models"
	"radiator_control/internal/mqtt"
	"radiator_control/internal/protocol"
	"radiator_control/internal/repository"
)

// Transport is the publish side of the MQTT client plus cursor access to
// everything received on the subscribed topic.
type Transport interface {
	Publish(topic string, payload []byte) error
	IsConnected() bool
	Cursor() uint64
	Since(seq uint64) ([]mqtt.Received, uint64)
	Changed() <-chan struct{}
}

// Wire is where and how messages are published.
type Wire struct {
	Topic  string
	Format protocol.Format
}

func (w Wire) publish(t Transport, m protocol.Message) error {
	payload, err := protocol.Encode(m, w.Format)
	if err != nil {
		return err
	}
	if err := t.Publish(w.Topic, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}
	return nil
}

func available(t Transport) bool {
	return t != nil && t.IsConnected()
}

// uniqueNames trims, drops empty names and duplicates, keeping order.
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// recordEvent appends to the event log. A failed append is logged and
// otherwise ignored: the log never blocks device control.
func recordEvent(ctx context.Context, repo repository.EventRepo, log *logger.Logger, e models.DeviceEvent) {
	if repo == nil {
		return
	}
	if err := repo.Append(ctx, e); err != nil {
		log.Warnw("event_append_failed", "type", e.Type, "device", e.Device, "err", err)
	}
}

func orNop(log *logger.Logger) *logger.Logger {
	if log == nil {
		return logger.Nop()
	}
	return log
}
