package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-nest/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "nest-bridge-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// fakeMessage implements pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// recordingLogger captures log calls.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
	infos  []string
}

func (l *recordingLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func TestBuildClientOptions(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*config.MQTTConfig)
		wantScheme string
		wantUser   string
		wantTLS    bool
	}{
		{
			name:       "plain tcp",
			mutate:     func(*config.MQTTConfig) {},
			wantScheme: "tcp",
		},
		{
			name:       "tls",
			mutate:     func(c *config.MQTTConfig) { c.Broker.TLS = true },
			wantScheme: "ssl",
			wantTLS:    true,
		},
		{
			name: "credentials",
			mutate: func(c *config.MQTTConfig) {
				c.Auth.Username = "bridge"
				c.Auth.Password = "pw"
			},
			wantScheme: "tcp",
			wantUser:   "bridge",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			opts := buildClientOptions(cfg)

			if len(opts.Servers) != 1 {
				t.Fatalf("Servers = %d, want 1", len(opts.Servers))
			}
			if opts.Servers[0].Scheme != tt.wantScheme {
				t.Errorf("scheme = %q, want %q", opts.Servers[0].Scheme, tt.wantScheme)
			}
			if opts.Servers[0].Host != "127.0.0.1:1883" {
				t.Errorf("host = %q, want 127.0.0.1:1883", opts.Servers[0].Host)
			}
			if opts.ClientID != "nest-bridge-test" {
				t.Errorf("ClientID = %q", opts.ClientID)
			}
			if opts.Username != tt.wantUser {
				t.Errorf("Username = %q, want %q", opts.Username, tt.wantUser)
			}
			if (opts.TLSConfig != nil) != tt.wantTLS {
				t.Errorf("TLSConfig set = %v, want %v", opts.TLSConfig != nil, tt.wantTLS)
			}
			if !opts.CleanSession {
				t.Error("CleanSession = false, want true")
			}
			if !opts.AutoReconnect {
				t.Error("AutoReconnect = false, want true")
			}
			if opts.MaxReconnectInterval != 5*time.Second {
				t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
			}
		})
	}
}

func TestWithWill(t *testing.T) {
	c := newClient(testConfig(), WithWill(Will{
		Topic:    "graylogic/health/nest",
		Payload:  []byte(`{"status":"offline"}`),
		QoS:      1,
		Retained: true,
	}))

	if !c.options.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if c.options.WillTopic != "graylogic/health/nest" {
		t.Errorf("WillTopic = %q", c.options.WillTopic)
	}
	if !strings.Contains(string(c.options.WillPayload), "offline") {
		t.Errorf("WillPayload = %s", c.options.WillPayload)
	}
	if !c.options.WillRetained {
		t.Error("WillRetained = false, want true")
	}
}

func TestWithWill_EmptyTopicIgnored(t *testing.T) {
	c := newClient(testConfig(), WithWill(Will{}))
	if c.options.WillEnabled {
		t.Error("WillEnabled = true for empty topic")
	}
}

func TestNewClient_NotConnected(t *testing.T) {
	c := newClient(testConfig())

	if c.IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client = %v", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	c := newClient(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() = %v, want context.Canceled", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := newClient(testConfig())

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "graylogic/state/nest/a", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "graylogic/state/nest/a", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"single-level wildcard", "graylogic/state/nest/+", []byte("x"), 1, ErrInvalidTopic},
		{"multi-level wildcard", "graylogic/state/#", []byte("x"), 1, ErrInvalidTopic},
		{"not connected", "graylogic/state/nest/a", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newClient(testConfig())
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, noop, ErrInvalidTopic},
		{"invalid qos", "graylogic/command/nest/#", 3, noop, ErrInvalidQoS},
		{"nil handler", "graylogic/command/nest/#", 1, nil, ErrSubscribeFailed},
		{"not connected", "graylogic/command/nest/#", 1, noop, ErrNotConnected},
		{"wildcard allowed until connect", "graylogic/command/nest/+", 0, noop, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0 after failed subscribes", c.SubscriptionCount())
	}
}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	logger := &recordingLogger{}
	c := newClient(testConfig(), WithLogger(logger))

	wrapped := c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, &fakeMessage{topic: "graylogic/command/nest/a"})

	if len(logger.errors) != 1 {
		t.Fatalf("errors logged = %d, want 1", len(logger.errors))
	}
}

func TestWrapHandler_LogsError(t *testing.T) {
	logger := &recordingLogger{}
	c := newClient(testConfig())
	c.SetLogger(logger)

	var gotTopic string
	var gotPayload []byte
	wrapped := c.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, payload
		return errors.New("bad payload")
	})
	wrapped(nil, &fakeMessage{topic: "graylogic/command/nest/a", payload: []byte("{}")})

	if gotTopic != "graylogic/command/nest/a" || string(gotPayload) != "{}" {
		t.Errorf("handler received %q %q", gotTopic, gotPayload)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warns logged = %d, want 1", len(logger.warns))
	}
}

func TestHandlerError_CarriesTopic(t *testing.T) {
	cause := errors.New("unknown command")
	err := handlerError("graylogic/command/nest/09aa01ac431600", cause)

	if !errors.Is(err, ErrHandlerFailed) || !errors.Is(err, cause) {
		t.Errorf("handlerError() = %v, want ErrHandlerFailed wrapping cause", err)
	}
	if !strings.Contains(err.Error(), "graylogic/command/nest/09aa01ac431600") {
		t.Errorf("handlerError() = %q, want topic in message", err)
	}
}

func TestConnectionCallbacks(t *testing.T) {
	c := newClient(testConfig())

	var connected, disconnected int
	var lostErr error
	c.SetOnConnect(func() { connected++ })
	c.SetOnDisconnect(func(err error) {
		disconnected++
		lostErr = err
	})

	c.handleConnect()
	c.handleDisconnect(errors.New("network down"))

	if connected != 1 || disconnected != 1 {
		t.Errorf("callbacks = %d/%d, want 1/1", connected, disconnected)
	}
	if lostErr == nil || lostErr.Error() != "network down" {
		t.Errorf("disconnect error = %v", lostErr)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
}

// Compile-time check that fakeMessage satisfies the paho interface.
var _ pahomqtt.Message = (*fakeMessage)(nil)
