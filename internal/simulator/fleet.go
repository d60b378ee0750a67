// Package simulator is a fleet of fake radiators speaking the wire protocol,
// for development without hardware and for end-to-end tests.
package simulator

import (
	"context"
	"sort"
	"strings"
	"sync"

	"radiator_control/internal/logger"
	"radiator_control/internal/models"
	"radiator_control/internal/mqtt"
	"radiator_control/internal/protocol"
)

// Broadcast addresses accepted in TO.
const (
	AddressAll  = "ALL"
	AddressStar = "*"
)

// Link is the part of the MQTT client the fleet needs.
type Link interface {
	Publish(topic string, payload []byte) error
	Cursor() uint64
	Since(seq uint64) ([]mqtt.Received, uint64)
	Changed() <-chan struct{}
}

type Option func(*Fleet)

// WithMute makes the named devices ignore every message.
func WithMute(names ...string) Option {
	return func(f *Fleet) {
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				f.mute[n] = struct{}{}
			}
		}
	}
}

// WithFormat selects the encoding of replies.
func WithFormat(format protocol.Format) Option {
	return func(f *Fleet) { f.format = format }
}

func WithLogger(log *logger.Logger) Option {
	return func(f *Fleet) { f.log = log }
}

// Fleet holds the state of every simulated radiator.
type Fleet struct {
	mu      sync.Mutex
	states  map[string]string
	initial string
	mute    map[string]struct{}
	format  protocol.Format
	log     *logger.Logger
}

// NewFleet creates devices in the initial state (DEFAULT when empty).
func NewFleet(devices []string, initial string, opts ...Option) *Fleet {
	if initial = strings.TrimSpace(initial); initial == "" {
		initial = models.StateDefault
	}
	f := &Fleet{
		states:  make(map[string]string, len(devices)),
		initial: initial,
		mute:    make(map[string]struct{}),
		format:  protocol.FormatLiteral,
		log:     logger.Nop(),
	}
	for _, d := range devices {
		if d = strings.TrimSpace(d); d != "" {
			f.states[d] = initial
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Devices returns the simulated device names in order.
func (f *Fleet) Devices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.states))
	for n := range f.states {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// State returns the current mode of a device.
func (f *Fleet) State(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[name]
	return st, ok
}

// Handle reacts to one payload and returns the replies to publish. STATE
// is answered with the current mode; any other command is applied and then
// acknowledged with the new mode. Replies go to the sender.
func (f *Fleet) Handle(payload []byte) [][]byte {
	msg, err := protocol.Decode(payload)
	if err != nil {
		f.log.Debugw("simulator_message_ignored", "payload", string(payload), "err", err)
		return nil
	}

	var replies [][]byte
	for _, target := range f.targets(msg.To) {
		st := f.apply(target, msg.Command)
		out, err := protocol.Encode(protocol.Message{From: target, To: msg.From, Command: st}, f.format)
		if err != nil {
			f.log.Errorw("simulator_encode_failed", "device", target, "err", err)
			continue
		}
		replies = append(replies, out)
	}
	return replies
}

// Serve answers every message on topic until ctx is canceled.
func (f *Fleet) Serve(ctx context.Context, link Link, topic string) {
	cursor := link.Cursor()
	for {
		changed := link.Changed()
		batch, next := link.Since(cursor)
		cursor = next
		for _, r := range batch {
			if r.Topic != topic {
				continue
			}
			for _, reply := range f.Handle(r.Payload) {
				if err := link.Publish(topic, reply); err != nil {
					f.log.Warnw("simulator_publish_failed", "err", err)
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
	}
}

func (f *Fleet) targets(to string) []string {
	to = strings.TrimSpace(to)
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	if to == AddressAll || to == AddressStar {
		for n := range f.states {
			if _, muted := f.mute[n]; !muted {
				out = append(out, n)
			}
		}
		sort.Strings(out)
		return out
	}
	if _, ok := f.states[to]; !ok {
		return nil
	}
	if _, muted := f.mute[to]; muted {
		return nil
	}
	return []string{to}
}

func (f *Fleet) apply(device, command string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.EqualFold(strings.TrimSpace(command), protocol.CommandState) {
		return f.states[device]
	}
	prev := f.states[device]
	f.states[device] = command
	f.log.Infow("simulator_state_changed", "device", device, "previous", prev, "state", command)
	return command
}
