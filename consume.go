package vnats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Handler processes one decoded event. The handler owns acknowledgment:
// it must call msg.Ack on success or msg.Nak on failure; the library never
// acks or naks on the handler's behalf. A returned error or panic naks the
// message and is isolated to it.
type Handler func(ctx context.Context, event Event, msg jetstream.Msg) error

// ConsumerState is the lifecycle state of a Consumer instance.
type ConsumerState int32

const (
	StateCreated ConsumerState = iota
	StateSubscribing
	StateRunning
	StateStopping
	StateStopped
)

func (s ConsumerState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubscribing:
		return "subscribing"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// pullConsumer is the slice of the JetStream consumer API the fetch loop
// needs.
type pullConsumer interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
	Info(ctx context.Context) (*jetstream.ConsumerInfo, error)
}

// consumerAdmin covers durable-cursor administration on a stream.
type consumerAdmin interface {
	lookup(ctx context.Context, stream, durable string) (pullConsumer, error)
	create(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (pullConsumer, error)
	remove(ctx context.Context, stream, durable string) error
}

type jsAdmin struct {
	js jetstream.JetStream
}

func (a jsAdmin) lookup(ctx context.Context, stream, durable string) (pullConsumer, error) {
	return a.js.Consumer(ctx, stream, durable)
}

func (a jsAdmin) create(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (pullConsumer, error) {
	return a.js.CreateConsumer(ctx, stream, cfg)
}

func (a jsAdmin) remove(ctx context.Context, stream, durable string) error {
	return a.js.DeleteConsumer(ctx, stream, durable)
}

// ConsumerOption sets a consumer option.
type ConsumerOption func(*Consumer)

// WithBatchSize sets the maximum number of messages fetched per pull.
func WithBatchSize(n int) ConsumerOption {
	return func(c *Consumer) {
		c.batchSize = n
	}
}

// WithFetchTimeout bounds each pull request. A fetch that times out with
// no messages is the normal idle case, not an error.
func WithFetchTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.fetchTimeout = d
	}
}

// WithConsumerLogger sets the consumer's logger.
func WithConsumerLogger(l *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = l
	}
}

// Consumer maintains a durable, named pull cursor over a stream, fetches
// bounded batches, and dispatches decoded events to a handler. A Consumer
// runs at most once: after it stops, construct a new instance (with the
// same durable name to resume from the last acknowledged position).
type Consumer struct {
	client       *Client
	stream       string
	cfg          ConsumerConfig
	batchSize    int
	fetchTimeout time.Duration
	logger       *slog.Logger

	state    atomic.Int32
	stopOnce sync.Once
	stopCh   chan struct{}

	// admin, pc and teardown are injectable for tests.
	admin    consumerAdmin
	pc       pullConsumer
	teardown func(ctx context.Context) error
}

// NewConsumer returns a consumer for the durable cursor described by cfg
// over the named stream.
func NewConsumer(client *Client, stream string, cfg ConsumerConfig, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		client:       client,
		stream:       stream,
		cfg:          cfg,
		batchSize:    10,
		fetchTimeout: 5 * time.Second,
		logger:       slog.Default(),
		stopCh:       make(chan struct{}),
	}

	for _, f := range opts {
		f(c)
	}

	if c.cfg.MaxAckPending == 0 && client != nil {
		c.cfg.MaxAckPending = client.cfg.MaxPendingMessages
	}

	return c
}

// State returns the current lifecycle state.
func (c *Consumer) State() ConsumerState {
	return ConsumerState(c.state.Load())
}

// Subscribe ensures the durable cursor exists, then runs the
// fetch-dispatch loop until Stop is called or ctx is cancelled. On
// cancellation the consumer passes through the stopping state, bounded by
// gracefulTimeout, before returning the cancellation cause. Subscribe
// returns a ConsumerError if the cursor cannot be set up.
func (c *Consumer) Subscribe(ctx context.Context, handler Handler, gracefulTimeout time.Duration) error {
	if !c.state.CompareAndSwap(int32(StateCreated), int32(StateSubscribing)) {
		return &ConsumerError{
			Stream:   c.stream,
			Consumer: c.cfg.DurableName,
			Err:      fmt.Errorf("subscribe called in state %s", c.State()),
		}
	}

	pc, err := c.ensureConsumer(ctx)
	if err != nil {
		c.state.Store(int32(StateStopped))
		return &ConsumerError{Stream: c.stream, Consumer: c.cfg.DurableName, Err: err}
	}
	c.pc = pc

	c.state.Store(int32(StateRunning))
	c.logger.Info("started pull subscription",
		"stream", c.stream,
		"consumer", c.cfg.DurableName,
		"filter_subjects", c.cfg.FilterSubjects)

	return c.fetchLoop(ctx, handler, gracefulTimeout)
}

func (c *Consumer) ensureConsumer(ctx context.Context) (pullConsumer, error) {
	admin := c.admin
	if admin == nil {
		js, err := c.client.JetStream()
		if err != nil {
			return nil, err
		}
		admin = jsAdmin{js: js}
		c.admin = admin
	}

	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	jcfg, err := c.cfg.toJetStream()
	if err != nil {
		return nil, err
	}

	pc, err := admin.lookup(ctx, c.stream, c.cfg.DurableName)
	if err == nil {
		c.logger.Info("using existing consumer",
			"stream", c.stream, "consumer", c.cfg.DurableName)
		return pc, nil
	}
	if !errors.Is(err, jetstream.ErrConsumerNotFound) {
		return nil, err
	}

	pc, err = admin.create(ctx, c.stream, jcfg)
	if err != nil {
		return nil, err
	}

	c.logger.Info("created consumer",
		"stream", c.stream, "consumer", c.cfg.DurableName)
	return pc, nil
}

func (c *Consumer) fetchLoop(ctx context.Context, handler Handler, gracefulTimeout time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return c.shutdown(gracefulTimeout, ctx.Err())
		case <-c.stopCh:
			return c.shutdown(gracefulTimeout, nil)
		default:
		}

		batch, err := c.pc.Fetch(c.batchSize, jetstream.FetchMaxWait(c.fetchTimeout))
		if err != nil {
			if isFetchTimeout(err) {
				continue
			}
			// The loop must survive fetch errors; pause so a broken
			// connection does not spin the loop.
			c.logger.Error("error fetching batch", "error", err)
			consumerErrorsTotal.WithLabelValues(c.cfg.DurableName, errKind(err)).Inc()
			_ = sleepCtx(ctx, time.Second)
			continue
		}

		// Dispatch the whole batch before the next fetch; ordering
		// within a batch is preserved.
		for msg := range batch.Messages() {
			c.process(ctx, msg, handler)
		}

		if err := batch.Error(); err != nil && !isFetchTimeout(err) {
			c.logger.Error("batch error", "error", err)
			consumerErrorsTotal.WithLabelValues(c.cfg.DurableName, errKind(err)).Inc()
		}
	}
}

func isFetchTimeout(err error) bool {
	return errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, jetstream.ErrNoMessages)
}

// process handles a single message. The in-flight gauge is balanced on
// every exit path: success, decode failure, or handler error/panic.
func (c *Consumer) process(ctx context.Context, msg jetstream.Msg, handler Handler) {
	name := c.cfg.DurableName

	consumerProcessingMessages.WithLabelValues(name).Inc()
	defer consumerProcessingMessages.WithLabelValues(name).Dec()

	var event Event
	if err := event.Unmarshal(msg.Data()); err != nil {
		// Poison message: presumed corrupt, nak without invoking the
		// handler.
		c.logger.Error("failed to decode message",
			"subject", msg.Subject(), "consumer", name, "error", err)
		consumerErrorsTotal.WithLabelValues(name, "decode").Inc()
		eventsConsumedTotal.WithLabelValues("unknown", name, "nak").Inc()
		c.nak(msg)
		return
	}

	start := time.Now()
	err := c.invoke(ctx, event, msg, handler)
	consumeDurationSeconds.WithLabelValues(event.Type, name).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Error("error processing message",
			"event_id", event.ID,
			"event_type", event.Type,
			"consumer", name,
			"error", err)
		consumerErrorsTotal.WithLabelValues(name, errKind(err)).Inc()
		eventsConsumedTotal.WithLabelValues(event.Type, name, "error").Inc()
		c.nak(msg)
		return
	}

	eventsConsumedTotal.WithLabelValues(event.Type, name, "ack").Inc()
}

// invoke runs the handler, converting a panic into an error so one
// message cannot kill the fetch loop.
func (c *Consumer) invoke(ctx context.Context, event Event, msg jetstream.Msg, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler(ctx, event, msg)
}

func (c *Consumer) nak(msg jetstream.Msg) {
	if err := msg.Nak(); err != nil {
		c.logger.Error("nak failed", "consumer", c.cfg.DurableName, "error", err)
	}
}

// Stop requests a graceful stop. It always succeeds from the caller's
// perspective; teardown errors are logged by the fetch loop, never
// surfaced. Safe to call multiple times.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info("stopping consumer",
			"stream", c.stream, "consumer", c.cfg.DurableName)
		close(c.stopCh)
	})
}

// shutdown tears down the pull subscription, bounded by the grace period,
// then unconditionally moves to the terminal stopped state. cause is the
// cancellation error to propagate, or nil for an explicit stop.
func (c *Consumer) shutdown(grace time.Duration, cause error) error {
	c.state.Store(int32(StateStopping))
	c.logger.Info("graceful shutdown initiated",
		"consumer", c.cfg.DurableName, "timeout", grace)

	if c.teardown != nil {
		done := make(chan error, 1)
		go func() {
			done <- c.teardown(context.Background())
		}()

		t := time.NewTimer(grace)
		defer t.Stop()

		select {
		case err := <-done:
			if err != nil {
				c.logger.Error("error during teardown", "error", err)
			}
		case <-t.C:
			c.logger.Warn("graceful shutdown timeout, forcing stop",
				"consumer", c.cfg.DurableName)
		}
	}

	c.state.Store(int32(StateStopped))
	c.logger.Info("consumer stopped", "consumer", c.cfg.DurableName)
	return cause
}

// Delete removes the durable cursor from the stream so it can be
// recreated, for example with a different subject filter. The consumer
// must not be running.
func (c *Consumer) Delete(ctx context.Context) error {
	if s := c.State(); s == StateRunning || s == StateSubscribing {
		return &ConsumerError{
			Stream:   c.stream,
			Consumer: c.cfg.DurableName,
			Err:      fmt.Errorf("cannot delete consumer in state %s", s),
		}
	}

	admin := c.admin
	if admin == nil {
		js, err := c.client.JetStream()
		if err != nil {
			return err
		}
		admin = jsAdmin{js: js}
	}

	if err := admin.remove(ctx, c.stream, c.cfg.DurableName); err != nil {
		return &ConsumerError{Stream: c.stream, Consumer: c.cfg.DurableName, Err: err}
	}

	c.logger.Info("deleted consumer",
		"stream", c.stream, "consumer", c.cfg.DurableName)
	return nil
}

// UpdateLag refreshes the consumer lag gauge from the broker's view of
// pending messages. Call it periodically from a metrics ticker.
func (c *Consumer) UpdateLag(ctx context.Context) error {
	if c.pc == nil {
		return &ConsumerError{
			Stream:   c.stream,
			Consumer: c.cfg.DurableName,
			Err:      errors.New("not subscribed"),
		}
	}

	info, err := c.pc.Info(ctx)
	if err != nil {
		return err
	}

	consumerLagMessages.WithLabelValues(c.stream, c.cfg.DurableName).Set(float64(info.NumPending))
	return nil
}
