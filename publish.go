package vnats

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nuid"
)

// Identity headers attached to every published message. Caller-supplied
// headers never override these.
const (
	HeaderEventID       = "event-id"
	HeaderEventVersion  = "event-version"
	HeaderSourceService = "source-service"
	HeaderCorrelationID = "correlation-id"
	HeaderReplyTo       = "reply-to"
)

// jetPublisher is the slice of the JetStream API the publisher needs.
type jetPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// PublisherOption sets a publisher option.
type PublisherOption func(*Publisher)

// WithDefaultTimeout sets the per-attempt publish timeout.
func WithDefaultTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.timeout = d
	}
}

// WithMaxRetries sets the total attempt budget. Every attempt, including
// the first, counts toward it.
func WithMaxRetries(n int) PublisherOption {
	return func(p *Publisher) {
		p.maxRetries = n
	}
}

// WithBackoffBase sets the base of the exponential backoff in seconds:
// the wait after the first failed attempt is base^0, then base^1, and so
// on.
func WithBackoffBase(base float64) PublisherOption {
	return func(p *Publisher) {
		p.backoffBase = base
	}
}

// WithPublisherLogger sets the publisher's logger.
func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = l
	}
}

// PublishOpt sets a per-call publish option.
type PublishOpt func(*publishOpts)

type publishOpts struct {
	headers    map[string]string
	timeout    time.Duration
	sequential bool
}

// WithHeaders attaches caller headers to the message. Identity headers
// take precedence on collision.
func WithHeaders(h map[string]string) PublishOpt {
	return func(o *publishOpts) {
		o.headers = h
	}
}

// WithTimeout overrides the publisher's default per-attempt timeout for
// this call.
func WithTimeout(d time.Duration) PublishOpt {
	return func(o *publishOpts) {
		o.timeout = d
	}
}

// Sequential makes PublishBatch publish strictly in order, one event at a
// time, stopping at the first failure. The default is parallel fan-out.
func Sequential() PublishOpt {
	return func(o *publishOpts) {
		o.sequential = true
	}
}

// Publisher reliably delivers typed events to the broker with bounded
// retries and exponential backoff.
type Publisher struct {
	client      *Client
	timeout     time.Duration
	maxRetries  int
	backoffBase float64
	logger      *slog.Logger

	// js and sleep are injectable for tests.
	js    jetPublisher
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPublisher returns a publisher over the client's JetStream context.
func NewPublisher(client *Client, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client:      client,
		timeout:     5 * time.Second,
		maxRetries:  3,
		backoffBase: 2.0,
		logger:      slog.Default(),
		sleep:       sleepCtx,
	}

	for _, f := range opts {
		f(p)
	}

	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) broker() (jetPublisher, error) {
	if p.js != nil {
		return p.js, nil
	}
	return p.client.JetStream()
}

// Publish serializes the event, routes it by its type string, and writes
// it to the stream with up to maxRetries attempts. Oversized payloads fail
// immediately without touching the broker; transient failures back off
// base^attempt seconds between attempts. After the budget is spent the
// last cause is returned wrapped in a PublishError.
func (p *Publisher) Publish(ctx context.Context, event Event, opts ...PublishOpt) (*jetstream.PubAck, error) {
	o := publishOpts{timeout: p.timeout}
	for _, f := range opts {
		f(&o)
	}

	js, err := p.broker()
	if err != nil {
		return nil, err
	}

	payload, err := event.Marshal()
	if err != nil {
		return nil, err
	}

	payloadSizeBytes.WithLabelValues(event.Type).Observe(float64(len(payload)))

	if limit := p.client.cfg.MaxPayloadBytes; len(payload) > limit {
		return nil, &PayloadTooLargeError{
			EventID:   event.ID,
			EventType: event.Type,
			Size:      len(payload),
			Limit:     limit,
		}
	}

	msg := &nats.Msg{
		Subject: event.Type,
		Data:    payload,
		Header:  p.buildHeaders(event, o.headers),
	}

	var lastErr error

	for attempt := 0; attempt < p.maxRetries; attempt++ {
		actx, cancel := context.WithTimeout(ctx, o.timeout)
		start := time.Now()
		ack, err := js.PublishMsg(actx, msg)
		cancel()

		publishDurationSeconds.WithLabelValues(event.Type).Observe(time.Since(start).Seconds())

		if err == nil {
			eventsPublishedTotal.WithLabelValues(event.Type, ack.Stream, "success").Inc()
			p.logger.Info("published event",
				"event_id", event.ID,
				"event_type", event.Type,
				"stream", ack.Stream,
				"sequence", ack.Sequence,
				"attempt", attempt+1)
			return ack, nil
		}

		lastErr = err

		if attempt > 0 {
			publishRetriesTotal.WithLabelValues(event.Type, strconv.Itoa(attempt+1)).Inc()
		}

		p.logger.Warn("publish attempt failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"attempt", attempt+1,
			"max_retries", p.maxRetries,
			"error", err)

		if isPermanentPublishErr(err) {
			p.logger.Error("permanent publish error, not retrying",
				"event_id", event.ID, "event_type", event.Type, "error", err)
			return nil, p.fail(event, attempt+1, err)
		}

		if attempt < p.maxRetries-1 {
			wait := time.Duration(math.Pow(p.backoffBase, float64(attempt)) * float64(time.Second))
			if err := p.sleep(ctx, wait); err != nil {
				return nil, p.fail(event, attempt+1, err)
			}
		}
	}

	return nil, p.fail(event, p.maxRetries, lastErr)
}

func (p *Publisher) fail(event Event, attempts int, cause error) error {
	eventsPublishedTotal.WithLabelValues(event.Type, "unknown", "failure").Inc()
	publishErrorsTotal.WithLabelValues(event.Type, errKind(cause)).Inc()

	p.logger.Error("failed to publish event",
		"event_id", event.ID,
		"event_type", event.Type,
		"attempts", attempts,
		"last_error", cause)

	return &PublishError{
		EventID:   event.ID,
		EventType: event.Type,
		Attempts:  attempts,
		Err:       cause,
	}
}

func (p *Publisher) buildHeaders(event Event, caller map[string]string) nats.Header {
	h := nats.Header{}
	for k, v := range caller {
		h.Set(k, v)
	}

	h.Set(HeaderEventID, event.ID.String())
	h.Set(HeaderEventVersion, event.Version)
	h.Set(HeaderSourceService, event.Metadata.SourceService)
	if event.Metadata.CorrelationID != "" {
		h.Set(HeaderCorrelationID, event.Metadata.CorrelationID)
	}

	return h
}

// PublishBatch publishes multiple events and returns their acks in input
// order. By default all events are published concurrently with fail-fast
// semantics: if any publish fails the whole call fails. With Sequential()
// the events are published strictly in order and the batch stops at the
// first failure. An empty batch returns an empty ack list with no broker
// interaction.
func (p *Publisher) PublishBatch(ctx context.Context, events []Event, opts ...PublishOpt) ([]*jetstream.PubAck, error) {
	if len(events) == 0 {
		p.logger.Warn("publish batch called with no events")
		return []*jetstream.PubAck{}, nil
	}

	var o publishOpts
	for _, f := range opts {
		f(&o)
	}

	p.logger.Info("publishing batch",
		"count", len(events), "parallel", !o.sequential)

	acks := make([]*jetstream.PubAck, len(events))

	if o.sequential {
		for i := range events {
			ack, err := p.Publish(ctx, events[i], opts...)
			if err != nil {
				return nil, err
			}
			acks[i] = ack
		}
		return acks, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for i := range events {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			ack, err := p.Publish(ctx, events[i], opts...)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			acks[i] = ack
		}(i)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	p.logger.Info("published batch", "count", len(events))
	return acks, nil
}

// PublishWithReply publishes the event with a reply-to header for
// request/reply style usage. Retry semantics are identical to Publish.
func (p *Publisher) PublishWithReply(ctx context.Context, event Event, replySubject string, opts ...PublishOpt) (*jetstream.PubAck, error) {
	o := publishOpts{}
	for _, f := range opts {
		f(&o)
	}

	headers := make(map[string]string, len(o.headers)+1)
	for k, v := range o.headers {
		headers[k] = v
	}
	headers[HeaderReplyTo] = replySubject

	return p.Publish(ctx, event, append(opts, WithHeaders(headers))...)
}

// NewInbox returns a unique inbox-style subject for replies.
func NewInbox() string {
	return fmt.Sprintf("_INBOX.%s", nuid.Next())
}
