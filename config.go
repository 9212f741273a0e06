package vnats

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/nats-io/nats.go/jetstream"
)

// Config holds all connection and stream settings. Construct it once at
// process start (DefaultConfig or LoadConfig) and pass it by value into
// NewClient; library internals never read ambient configuration.
type Config struct {
	// Connection settings.
	Servers              []string      `yaml:"servers" env:"NATS_SERVERS" env-default:"nats://localhost:4222"`
	ClientName           string        `yaml:"client_name" env:"NATS_CLIENT_NAME" env-default:"vertector-nats-client"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" env:"NATS_MAX_RECONNECT_ATTEMPTS" env-default:"10"`
	ReconnectWait        time.Duration `yaml:"reconnect_wait" env:"NATS_RECONNECT_WAIT" env-default:"2s"`

	// Authentication. Token wins over username/password when both are set.
	EnableAuth bool   `yaml:"enable_auth" env:"NATS_ENABLE_AUTH" env-default:"false"`
	Username   string `yaml:"username" env:"NATS_USERNAME"`
	Password   string `yaml:"password" env:"NATS_PASSWORD"`
	Token      string `yaml:"token" env:"NATS_TOKEN"`

	// TLS.
	EnableTLS     bool   `yaml:"enable_tls" env:"NATS_ENABLE_TLS" env-default:"false"`
	TLSCACertFile string `yaml:"tls_ca_cert_file" env:"NATS_TLS_CA_CERT_FILE"`
	TLSCertFile   string `yaml:"tls_cert_file" env:"NATS_TLS_CERT_FILE"`
	TLSKeyFile    string `yaml:"tls_key_file" env:"NATS_TLS_KEY_FILE"`

	// JetStream.
	EnableJetStream bool   `yaml:"enable_jetstream" env:"NATS_ENABLE_JETSTREAM" env-default:"true"`
	JetStreamDomain string `yaml:"jetstream_domain" env:"NATS_JETSTREAM_DOMAIN"`

	// Timeouts.
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"NATS_CONNECT_TIMEOUT" env-default:"5s"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"NATS_REQUEST_TIMEOUT" env-default:"5s"`

	// Performance tuning.
	MaxPayloadBytes    int `yaml:"max_payload_bytes" env:"NATS_MAX_PAYLOAD_BYTES" env-default:"1048576"`
	MaxPendingMessages int `yaml:"max_pending_messages" env:"NATS_MAX_PENDING_MESSAGES" env-default:"65536"`

	// Observability.
	ServiceName string `yaml:"service_name" env:"NATS_SERVICE_NAME" env-default:"vertector-nats"`

	// Streams declared idempotently on Connect.
	Streams []StreamConfig `yaml:"streams"`
}

// StreamConfig describes a durable log to be created or updated at startup.
type StreamConfig struct {
	Name      string        `yaml:"name" env:"NATS_STREAM_NAME"`
	Subjects  []string      `yaml:"subjects" env:"NATS_STREAM_SUBJECTS"`
	Retention string        `yaml:"retention" env:"NATS_STREAM_RETENTION" env-default:"interest"`
	Storage   string        `yaml:"storage" env:"NATS_STREAM_STORAGE" env-default:"file"`
	MaxAge    time.Duration `yaml:"max_age" env:"NATS_STREAM_MAX_AGE" env-default:"168h"`
	MaxBytes  int64         `yaml:"max_bytes" env:"NATS_STREAM_MAX_BYTES" env-default:"10737418240"`
	Replicas  int           `yaml:"replicas" env:"NATS_STREAM_REPLICAS" env-default:"1"`
	Discard   string        `yaml:"discard" env:"NATS_STREAM_DISCARD" env-default:"old"`
}

// ConsumerConfig describes a durable cursor over a stream. Reusing the same
// DurableName resumes consumption from the last acknowledged position.
type ConsumerConfig struct {
	DurableName string        `yaml:"durable_name" env:"NATS_CONSUMER_DURABLE_NAME"`
	AckPolicy   string        `yaml:"ack_policy" env:"NATS_CONSUMER_ACK_POLICY" env-default:"explicit"`
	AckWait     time.Duration `yaml:"ack_wait" env:"NATS_CONSUMER_ACK_WAIT" env-default:"30s"`
	MaxDeliver  int           `yaml:"max_deliver" env:"NATS_CONSUMER_MAX_DELIVER" env-default:"3"`

	// FilterSubjects is always applied server-side: the full list is part
	// of the durable consumer configuration and the client never narrows
	// the pull request itself, so multi-subject filtering behaves the same
	// whether one or many filters are set.
	FilterSubjects []string `yaml:"filter_subjects" env:"NATS_CONSUMER_FILTER_SUBJECTS"`

	DeliverPolicy string        `yaml:"deliver_policy" env:"NATS_CONSUMER_DELIVER_POLICY" env-default:"all"`
	StartSequence uint64        `yaml:"start_sequence" env:"NATS_CONSUMER_START_SEQUENCE"`
	StartTime     time.Time     `yaml:"start_time" env:"NATS_CONSUMER_START_TIME"`
	ReplayPolicy  string        `yaml:"replay_policy" env:"NATS_CONSUMER_REPLAY_POLICY" env-default:"instant"`
	MaxAckPending int           `yaml:"max_ack_pending" env:"NATS_CONSUMER_MAX_ACK_PENDING"`
}

// AcademicStream is the default stream for academic domain events.
func AcademicStream() StreamConfig {
	return StreamConfig{
		Name: "ACADEMIC_EVENTS",
		Subjects: []string{
			"academic.course.*",
			"academic.assignment.*",
			"academic.exam.*",
			"academic.quiz.*",
			"academic.lab.*",
			"academic.study.*",
			"academic.challenge.*",
			"academic.schedule.*",
			"academic.profile.*",
		},
		// Interest retention allows multiple consumers over one stream.
		Retention: "interest",
		Storage:   "file",
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  10 << 30,
		Replicas:  1,
		Discard:   "old",
	}
}

// NotesStream is the default stream for note events.
func NotesStream() StreamConfig {
	return StreamConfig{
		Name:      "NOTES_EVENTS",
		Subjects:  []string{"notes.*"},
		Retention: "interest",
		Storage:   "file",
		MaxAge:    30 * 24 * time.Hour,
		MaxBytes:  10 << 30,
		Replicas:  1,
		Discard:   "old",
	}
}

// DefaultConfig returns the documented defaults with the two default
// streams declared.
func DefaultConfig() Config {
	return Config{
		Servers:              []string{"nats://localhost:4222"},
		ClientName:           "vertector-nats-client",
		MaxReconnectAttempts: 10,
		ReconnectWait:        2 * time.Second,
		EnableJetStream:      true,
		ConnectTimeout:       5 * time.Second,
		RequestTimeout:       5 * time.Second,
		MaxPayloadBytes:      1 << 20,
		MaxPendingMessages:   65536,
		ServiceName:          "vertector-nats",
		Streams:              []StreamConfig{AcademicStream(), NotesStream()},
	}
}

// LoadConfig reads configuration from the environment on top of the
// defaults. Stream definitions stay at their defaults unless replaced by
// the caller afterwards.
func LoadConfig() (Config, error) {
	cfg := Config{Streams: []StreamConfig{AcademicStream(), NotesStream()}}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

// Validate checks the ranges the broker enforces so misconfiguration fails
// at startup rather than on first use.
func (c Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("at least one server URL required")
	}
	if c.MaxReconnectAttempts < -1 {
		return fmt.Errorf("max_reconnect_attempts must be >= -1, got %d", c.MaxReconnectAttempts)
	}
	if c.MaxPayloadBytes < 1024 {
		return fmt.Errorf("max_payload_bytes must be >= 1024, got %d", c.MaxPayloadBytes)
	}
	if c.MaxPendingMessages < 1 {
		return fmt.Errorf("max_pending_messages must be >= 1, got %d", c.MaxPendingMessages)
	}
	for _, s := range c.Streams {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("stream %q: %w", s.Name, err)
		}
	}
	return nil
}

func (s StreamConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name required")
	}
	if len(s.Subjects) == 0 {
		return fmt.Errorf("at least one subject required")
	}
	if s.MaxAge < 0 {
		return fmt.Errorf("max_age must be >= 0, got %s", s.MaxAge)
	}
	if s.MaxBytes < -1 {
		return fmt.Errorf("max_bytes must be >= -1, got %d", s.MaxBytes)
	}
	if s.Replicas < 1 || s.Replicas > 5 {
		return fmt.Errorf("replicas must be between 1 and 5, got %d", s.Replicas)
	}
	if _, err := s.toJetStream(); err != nil {
		return err
	}
	return nil
}

func (c ConsumerConfig) Validate() error {
	if c.DurableName == "" {
		return fmt.Errorf("durable_name required")
	}
	if c.AckWait < time.Second {
		return fmt.Errorf("ack_wait must be >= 1s, got %s", c.AckWait)
	}
	if c.MaxDeliver < -1 {
		return fmt.Errorf("max_deliver must be >= -1, got %d", c.MaxDeliver)
	}
	if _, err := c.toJetStream(); err != nil {
		return err
	}
	return nil
}

func (s StreamConfig) toJetStream() (jetstream.StreamConfig, error) {
	var retention jetstream.RetentionPolicy
	switch s.Retention {
	case "limits":
		retention = jetstream.LimitsPolicy
	case "interest":
		retention = jetstream.InterestPolicy
	case "workqueue":
		retention = jetstream.WorkQueuePolicy
	default:
		return jetstream.StreamConfig{}, fmt.Errorf("unknown retention policy %q", s.Retention)
	}

	var storage jetstream.StorageType
	switch s.Storage {
	case "file":
		storage = jetstream.FileStorage
	case "memory":
		storage = jetstream.MemoryStorage
	default:
		return jetstream.StreamConfig{}, fmt.Errorf("unknown storage type %q", s.Storage)
	}

	var discard jetstream.DiscardPolicy
	switch s.Discard {
	case "old":
		discard = jetstream.DiscardOld
	case "new":
		discard = jetstream.DiscardNew
	default:
		return jetstream.StreamConfig{}, fmt.Errorf("unknown discard policy %q", s.Discard)
	}

	return jetstream.StreamConfig{
		Name:      s.Name,
		Subjects:  s.Subjects,
		Retention: retention,
		Storage:   storage,
		MaxAge:    s.MaxAge,
		MaxBytes:  s.MaxBytes,
		Replicas:  s.Replicas,
		Discard:   discard,
	}, nil
}

func (c ConsumerConfig) toJetStream() (jetstream.ConsumerConfig, error) {
	var ack jetstream.AckPolicy
	switch c.AckPolicy {
	case "explicit":
		ack = jetstream.AckExplicitPolicy
	case "all":
		ack = jetstream.AckAllPolicy
	case "none":
		ack = jetstream.AckNonePolicy
	default:
		return jetstream.ConsumerConfig{}, fmt.Errorf("unknown ack policy %q", c.AckPolicy)
	}

	var deliver jetstream.DeliverPolicy
	switch c.DeliverPolicy {
	case "all":
		deliver = jetstream.DeliverAllPolicy
	case "last":
		deliver = jetstream.DeliverLastPolicy
	case "new":
		deliver = jetstream.DeliverNewPolicy
	case "by_start_sequence":
		deliver = jetstream.DeliverByStartSequencePolicy
	case "by_start_time":
		deliver = jetstream.DeliverByStartTimePolicy
	default:
		return jetstream.ConsumerConfig{}, fmt.Errorf("unknown deliver policy %q", c.DeliverPolicy)
	}

	var replay jetstream.ReplayPolicy
	switch c.ReplayPolicy {
	case "instant":
		replay = jetstream.ReplayInstantPolicy
	case "original":
		replay = jetstream.ReplayOriginalPolicy
	default:
		return jetstream.ConsumerConfig{}, fmt.Errorf("unknown replay policy %q", c.ReplayPolicy)
	}

	jc := jetstream.ConsumerConfig{
		Durable:        c.DurableName,
		AckPolicy:      ack,
		AckWait:        c.AckWait,
		MaxDeliver:     c.MaxDeliver,
		FilterSubjects: c.FilterSubjects,
		DeliverPolicy:  deliver,
		ReplayPolicy:   replay,
		MaxAckPending:  c.MaxAckPending,
	}

	switch deliver {
	case jetstream.DeliverByStartSequencePolicy:
		jc.OptStartSeq = c.StartSequence
	case jetstream.DeliverByStartTimePolicy:
		t := c.StartTime
		jc.OptStartTime = &t
	}

	return jc, nil
}
