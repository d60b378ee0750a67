package mqtt

import (
	"fmt"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"radiator_control/internal/logger"
)

const brokerListenerID = "radiators-tcp"

// Broker is an in-process MQTT broker for installations without a
// standalone one, and for tests.
type Broker struct {
	server   *mochi.Server
	address  string
	username string
	password string
	log      *logger.Logger
}

// BrokerOption customizes the embedded broker.
type BrokerOption func(*Broker)

// WithCredentials restricts connections to a single username/password pair.
func WithCredentials(username, password string) BrokerOption {
	return func(b *Broker) {
		b.username = username
		b.password = password
	}
}

// NewBroker prepares a broker listening on address (host:port).
func NewBroker(address string, log *logger.Logger, opts ...BrokerOption) *Broker {
	if log == nil {
		log = logger.Nop()
	}
	b := &Broker{
		server:  mochi.New(&mochi.Options{InlineClient: true}),
		address: address,
		log:     log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start registers the auth hook and TCP listener, then serves in the background.
func (b *Broker) Start() error {
	if err := b.addAuthHook(); err != nil {
		return fmt.Errorf("broker auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: brokerListenerID, Address: b.address})
	if err := b.server.AddListener(tcp); err != nil {
		return fmt.Errorf("broker listener %s: %w", b.address, err)
	}

	go func() {
		if err := b.server.Serve(); err != nil {
			b.log.Errorw("mqtt_broker_stopped", "address", b.address, "err", err)
		}
	}()
	b.log.Infow("mqtt_broker_started", "address", b.address)
	return nil
}

// Close stops every listener and disconnects clients.
func (b *Broker) Close() error {
	return b.server.Close()
}

func (b *Broker) addAuthHook() error {
	if b.username == "" {
		return b.server.AddHook(new(auth.AllowHook), nil)
	}
	return b.server.AddHook(new(auth.Hook), &auth.Options{
		Ledger: &auth.Ledger{
			Auth: auth.AuthRules{
				{Username: auth.RString(b.username), Password: auth.RString(b.password), Allow: true},
			},
		},
	})
}
