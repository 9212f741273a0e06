package vnats

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrNotConnected is returned when the JetStream context or the raw
// connection is accessed before a successful Connect.
var ErrNotConnected = errors.New("vnats: not connected")

// ConnectionError wraps a failure to establish the transport connection
// or to bring up the JetStream subsystem on top of it.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("vnats: connection failed: %s", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// PayloadTooLargeError is returned when an encoded event exceeds the
// configured payload ceiling. It is a caller error and is never retried.
type PayloadTooLargeError struct {
	EventID   uuid.UUID
	EventType string
	Size      int
	Limit     int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("vnats: event payload too large: %d bytes (max: %d bytes), event %s (id %s)",
		e.Size, e.Limit, e.EventType, e.EventID)
}

// PublishError is returned after the publish retry budget has been spent,
// or when a permanent broker-side rejection short-circuits the retries.
// It wraps the last underlying error.
type PublishError struct {
	EventID   uuid.UUID
	EventType string
	Attempts  int
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("vnats: failed to publish event %s (id %s) after %d attempts: %s",
		e.EventType, e.EventID, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// ConsumerError wraps failures to set up a durable consumer or its pull
// subscription. Per-message failures never surface as ConsumerError; they
// are converted into nak decisions and metrics.
type ConsumerError struct {
	Stream   string
	Consumer string
	Err      error
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("vnats: consumer %q on stream %q: %s", e.Consumer, e.Stream, e.Err)
}

func (e *ConsumerError) Unwrap() error {
	return e.Err
}

// isPermanentPublishErr reports whether a broker-side rejection cannot be
// fixed by retrying. Authorization failures and request rejections burn no
// retry budget; everything else is treated as transient.
func isPermanentPublishErr(err error) bool {
	if errors.Is(err, nats.ErrMaxPayload) ||
		errors.Is(err, nats.ErrAuthorization) ||
		errors.Is(err, nats.ErrAuthExpired) ||
		errors.Is(err, nats.ErrBadSubject) {
		return true
	}

	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400 || apiErr.Code == 403
	}

	return false
}

// errKind maps an error to a low-cardinality label for metrics.
func errKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, nats.ErrTimeout):
		return "timeout"
	case errors.Is(err, nats.ErrNoResponders):
		return "no_responders"
	case errors.Is(err, nats.ErrConnectionClosed):
		return "connection_closed"
	case errors.Is(err, nats.ErrAuthorization):
		return "authorization"
	case errors.Is(err, nats.ErrMaxPayload):
		return "max_payload"
	}

	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("api_%d", apiErr.ErrorCode)
	}

	return "other"
}
