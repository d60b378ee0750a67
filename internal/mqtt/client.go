// Package mqtt is the publish/subscribe transport: a paho client whose
// inbound messages land in a timestamped Inbox, plus an optional embedded
// broker.
package mqtt

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"radiator_control/internal/config"
	"radiator_control/internal/logger"
)

// Client wraps paho.mqtt.golang. All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTT
	qos    byte
	inbox  *Inbox
	log    *logger.Logger

	subMu         sync.Mutex
	subscriptions map[string]struct{}
}

// New builds a client without connecting. Messages from subscribed topics
// are appended to inbox.
func New(cfg config.MQTT, inbox *Inbox, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if inbox == nil {
		inbox = NewInbox(cfg.Retention)
	}
	qos := byte(cfg.QoS)
	if qos > maxQoS {
		qos = maxQoS
	}

	c := &Client{
		cfg:           cfg,
		qos:           qos,
		inbox:         inbox,
		log:           log,
		subscriptions: make(map[string]struct{}),
	}

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.log.Warnw("mqtt_connection_lost", "broker", brokerURL(cfg), "err", err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.log.Infow("mqtt_reconnecting", "broker", brokerURL(cfg))
	})
	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect starts connecting and waits up to the configured connect timeout.
// On ErrConnectionFailed the client keeps retrying in the background, so the
// transport becomes available as soon as the broker does.
func (c *Client) Connect() error {
	token := c.client.Connect()
	timeout := connectTimeout(c.cfg)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrConnectionFailed, brokerURL(c.cfg), timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(c.cfg), err)
	}
	return nil
}

// IsConnected reports whether the broker is currently reachable.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnectionOpen()
}

// Publish sends payload on topic without waiting for delivery to devices.
func (c *Client) Publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, c.qos, false, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe starts delivering topic into the inbox. It is idempotent. The
// topic is remembered even when the broker is unreachable (ErrNotConnected)
// and subscribed as soon as a connection comes up.
func (c *Client) Subscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	c.subMu.Lock()
	_, known := c.subscriptions[topic]
	c.subscriptions[topic] = struct{}{}
	c.subMu.Unlock()

	if !c.IsConnected() {
		return ErrNotConnected
	}
	if known {
		return nil
	}

	token := c.client.Subscribe(topic, c.qos, c.handleMessage)
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.forget(topic)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Inbox returns the log inbound messages are appended to.
func (c *Client) Inbox() *Inbox {
	return c.inbox
}

// Since reads the inbox from cursor seq.
func (c *Client) Since(seq uint64) ([]Received, uint64) {
	return c.inbox.Since(seq)
}

// Cursor returns the inbox position of the next message.
func (c *Client) Cursor() uint64 {
	return c.inbox.Cursor()
}

// Changed is closed when a new message arrives.
func (c *Client) Changed() <-chan struct{} {
	return c.inbox.Changed()
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.client == nil {
		return
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// handleConnect restores subscriptions; the session is clean on every connect.
func (c *Client) handleConnect() {
	c.log.Infow("mqtt_connected", "broker", brokerURL(c.cfg))

	c.subMu.Lock()
	topics := make([]string, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		topics = append(topics, t)
	}
	c.subMu.Unlock()

	for _, t := range topics {
		c.client.Subscribe(t, c.qos, c.handleMessage)
	}
}

func (c *Client) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("mqtt_handler_panic", "topic", msg.Topic(), "panic", r)
		}
	}()
	c.inbox.Append(msg.Topic(), msg.Payload())
	c.log.Debugw("mqtt_message_received", "topic", msg.Topic(), "payload", string(msg.Payload()))
}
