package vnats

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ClientOption sets a client option.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used by the client.
func WithLogger(l *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = l
	}
}

// Client owns the lifecycle of a single logical connection to the broker
// and brings up the JetStream subsystem on top of it. It is safe for use
// by multiple goroutines; Publisher and Consumer instances share one
// Client.
type Client struct {
	cfg    Config
	logger *slog.Logger

	// mu guards connect/disconnect transitions. Steady-state reads go
	// through the connected flag without the lock.
	mu        sync.Mutex
	connected atomic.Bool

	nc *nats.Conn
	js jetstream.JetStream
}

// NewClient returns an unconnected client for the configuration. Call
// Connect before handing it to publishers or consumers.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	o := &clientOptions{logger: slog.Default()}
	for _, f := range opts {
		f(o)
	}

	return &Client{
		cfg:    cfg,
		logger: o.logger,
	}
}

// Connect establishes the transport connection and, when JetStream is
// enabled, creates the stream context and declares all configured streams.
// Connect is idempotent: calling it on an already-connected client logs a
// warning and returns nil without touching the transport.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() && c.nc != nil && !c.nc.IsClosed() {
		c.logger.Warn("already connected", "client_name", c.cfg.ClientName)
		return nil
	}

	if err := c.cfg.Validate(); err != nil {
		return &ConnectionError{Err: err}
	}

	c.logger.Info("connecting",
		"servers", c.cfg.Servers,
		"client_name", c.cfg.ClientName)

	nc, err := nats.Connect(strings.Join(c.cfg.Servers, ","), c.connectOptions()...)
	if err != nil {
		return &ConnectionError{Err: err}
	}

	c.nc = nc
	c.connected.Store(true)
	connectionStatus.WithLabelValues(c.cfg.ClientName).Set(1)

	c.logger.Info("connected", "connected_url", nc.ConnectedUrl())

	if c.cfg.EnableJetStream {
		if err := c.setupJetStream(ctx); err != nil {
			nc.Close()
			c.nc = nil
			c.connected.Store(false)
			connectionStatus.WithLabelValues(c.cfg.ClientName).Set(0)
			return &ConnectionError{Err: err}
		}
	}

	return nil
}

func (c *Client) connectOptions() []nats.Option {
	opts := []nats.Option{
		nats.Name(c.cfg.ClientName),
		nats.MaxReconnects(c.cfg.MaxReconnectAttempts),
		nats.ReconnectWait(c.cfg.ReconnectWait),
		nats.Timeout(c.cfg.ConnectTimeout),

		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("disconnected from NATS", "error", err)
			c.connected.Store(false)
			connectionStatus.WithLabelValues(c.cfg.ClientName).Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("reconnected to NATS", "connected_url", nc.ConnectedUrl())
			c.connected.Store(true)
			connectionStatus.WithLabelValues(c.cfg.ClientName).Set(1)
			reconnectionAttemptsTotal.WithLabelValues(c.cfg.ClientName, "success").Inc()
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			c.logger.Error("NATS error", "error", err)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.logger.Info("NATS connection closed")
			c.connected.Store(false)
			connectionStatus.WithLabelValues(c.cfg.ClientName).Set(0)
		}),
	}

	if c.cfg.EnableAuth {
		if c.cfg.Token != "" {
			opts = append(opts, nats.Token(c.cfg.Token))
		} else if c.cfg.Username != "" {
			opts = append(opts, nats.UserInfo(c.cfg.Username, c.cfg.Password))
		}
	}

	if c.cfg.EnableTLS {
		if c.cfg.TLSCertFile != "" && c.cfg.TLSKeyFile != "" {
			opts = append(opts, nats.ClientCert(c.cfg.TLSCertFile, c.cfg.TLSKeyFile))
		}
		if c.cfg.TLSCACertFile != "" {
			opts = append(opts, nats.RootCAs(c.cfg.TLSCACertFile))
		}
	}

	return opts
}

func (c *Client) setupJetStream(ctx context.Context) error {
	var (
		js  jetstream.JetStream
		err error
	)

	if c.cfg.JetStreamDomain != "" {
		js, err = jetstream.NewWithDomain(c.nc, c.cfg.JetStreamDomain)
	} else {
		js, err = jetstream.New(c.nc)
	}
	if err != nil {
		return err
	}

	c.js = js
	c.logger.Info("JetStream context created")

	c.ensureStreams(ctx)

	return nil
}

// ensureStreams declares every configured stream, creating absent ones and
// updating existing ones in place. Failures are isolated per stream: one
// stream's drift or admin error must not prevent the others from being
// declared, and never aborts startup.
func (c *Client) ensureStreams(ctx context.Context) {
	for _, sc := range c.cfg.Streams {
		if err := c.ensureStream(ctx, sc); err != nil {
			c.logger.Error("failed to create/update stream",
				"stream", sc.Name, "error", err)
		}
	}
}

func (c *Client) ensureStream(ctx context.Context, sc StreamConfig) error {
	jsc, err := sc.toJetStream()
	if err != nil {
		return err
	}

	_, err = c.js.Stream(ctx, sc.Name)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		if _, err := c.js.CreateStream(ctx, jsc); err != nil {
			return err
		}
		c.logger.Info("created stream", "stream", sc.Name, "subjects", sc.Subjects)
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := c.js.UpdateStream(ctx, jsc); err != nil {
		var apiErr *jetstream.APIError
		if errors.As(err, &apiErr) {
			// Incompatible config already on the server. Keep running
			// with the existing stream rather than failing startup.
			c.logger.Warn("stream exists with different config",
				"stream", sc.Name, "error", err)
			return nil
		}
		return err
	}

	c.logger.Info("updated stream", "stream", sc.Name, "subjects", sc.Subjects)
	return nil
}

// Close drains in-flight work and closes the transport. Safe to call
// multiple times and before Connect.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nc == nil {
		return nil
	}

	if !c.nc.IsClosed() {
		if err := c.nc.Drain(); err != nil {
			c.logger.Error("error draining connection", "error", err)
			c.nc.Close()
		}
	}

	c.nc = nil
	c.js = nil
	c.connected.Store(false)
	connectionStatus.WithLabelValues(c.cfg.ClientName).Set(0)

	c.logger.Info("connection closed", "client_name", c.cfg.ClientName)
	return nil
}

// JetStream returns the stream context. Fails fast with ErrNotConnected
// before a successful Connect or when JetStream is disabled.
func (c *Client) JetStream() (jetstream.JetStream, error) {
	if !c.connected.Load() || c.js == nil {
		return nil, ErrNotConnected
	}
	return c.js, nil
}

// Conn returns the raw transport connection. Fails fast with
// ErrNotConnected before a successful Connect.
func (c *Client) Conn() (*nats.Conn, error) {
	if !c.connected.Load() || c.nc == nil {
		return nil, ErrNotConnected
	}
	return c.nc, nil
}

// IsConnected reports the best-effort connection state. It is lock-free;
// staleness only causes an operation to fail fast and be retried.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.nc != nil && !c.nc.IsClosed()
}
