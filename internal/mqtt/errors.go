package mqtt

import "errors"

// Errors returned by the transport. Use errors.Is to check them.
var (
	// ErrNotConnected is returned when publishing or subscribing without a broker connection.
	ErrNotConnected = errors.New("mqtt: client not connected")
	// ErrConnectionFailed is returned when the initial connection does not complete in time.
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	// ErrPublishFailed is returned when the broker rejects or times out a publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")
	// ErrSubscribeFailed is returned when the broker rejects or times out a subscribe.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")
	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
