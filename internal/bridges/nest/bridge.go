package nest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	nestapi "github.com/nerrad567/gray-logic-nest/internal/nest"
)

// Bridge operation constants.
const (
	// topicParts is the number of parts in a command or request topic:
	// graylogic/{category}/nest/{address}.
	topicParts = 4

	defaultPollInterval   = 30 * time.Second
	defaultCommandTimeout = 15 * time.Second
	readAllTimeout        = 2 * time.Minute
)

// Logger is the structured logger used by the bridge.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func orNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

// MQTTClient is the subset of the MQTT client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
}

// Authorizer performs the PIN flow. *nestapi.Session satisfies it.
type Authorizer interface {
	AuthorizationRequired() bool
	AuthorizeURL() string
	RequestToken(ctx context.Context, pin string) error
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	BridgeID string
	Version  string

	// APIURL is reported in health messages.
	APIURL string

	// PIN is exchanged for a token at start when no token is cached.
	PIN string

	PollInterval   time.Duration
	HealthInterval time.Duration
	CommandTimeout time.Duration

	// MQTTClient is required.
	MQTTClient MQTTClient

	// Sessions holds the shared Nest session. Required.
	Sessions *SessionHolder

	// Auth is optional; without it the session is assumed authorized.
	Auth Authorizer

	// Registry and Recorder are optional.
	Registry Registry
	Recorder StateRecorder

	Logger Logger
}

// Bridge connects the controller to Gray Logic Core over MQTT.
//
// It routes command and request topics to the controller, runs the
// long-poll loop and reports health.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	bridgeID       string
	pin            string
	pollInterval   time.Duration
	commandTimeout time.Duration

	mqtt       MQTTClient
	auth       Authorizer
	host       *MQTTHost
	controller *Controller
	health     *HealthReporter
	logger     Logger

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// NewBridge creates a bridge. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("session holder is required")
	}
	if opts.BridgeID == "" {
		opts.BridgeID = "nest-bridge"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}

	host := NewMQTTHost(opts.MQTTClient, opts.BridgeID)
	controller, err := NewController(ControllerOptions{
		Sessions: opts.Sessions,
		Host:     host,
		Registry: opts.Registry,
		Recorder: opts.Recorder,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		bridgeID:       opts.BridgeID,
		pin:            opts.PIN,
		pollInterval:   opts.PollInterval,
		commandTimeout: opts.CommandTimeout,
		mqtt:           opts.MQTTClient,
		auth:           opts.Auth,
		host:           host,
		controller:     controller,
		logger:         orNop(opts.Logger),
		done:           make(chan struct{}),
		ctx:            ctx,
		ctxCancel:      ctxCancel,
	}

	var authState AuthState
	if opts.Auth != nil {
		authState = opts.Auth
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.BridgeID,
		Version:   opts.Version,
		APIURL:    opts.APIURL,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Auth:      authState,
		Stats:     controller.Stats,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Controller returns the bridge's controller.
func (b *Bridge) Controller() *Controller {
	return b.controller
}

// Start loads the registry, subscribes to MQTT and starts health reporting
// and the poll loop. Authorization and the first discovery run in the
// background.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Error("failed to publish starting status", "error", err)
	}

	if _, err := b.controller.LoadRegistry(ctx); err != nil {
		b.logger.Error("failed to load thermostat registry", "error", err)
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", commandTopic)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logger.Info("subscribed to requests", "topic", requestTopic)

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logger.Error("failed to publish healthy status", "error", err)
	}

	b.wg.Add(1)
	go b.run(ctx)

	b.logger.Info("bridge started",
		"bridge_id", b.bridgeID,
		"thermostats", b.controller.Count())
	return nil
}

// Stop shuts the bridge down and waits for the poll loop to exit.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()
		b.logger.Info("bridge stopped")
	})
}

// OnMQTTReconnect drops the published-state cache so every driver is
// published again on the next poll.
func (b *Bridge) OnMQTTReconnect() {
	b.host.ClearStateCache()
}

// run authorizes, discovers and then polls until stopped.
func (b *Bridge) run(ctx context.Context) {
	defer b.wg.Done()

	if b.authorize(ctx) {
		if err := b.controller.Discover(ctx); err != nil {
			b.logger.Error("discovery failed", "error", err)
		}
	}

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			if !b.authorized() {
				continue
			}
			if failed := b.controller.LongPoll(b.ctx); failed > 0 {
				b.logger.Warn("poll completed with failures", "failed", failed)
			}
		}
	}
}

// authorize exchanges the configured PIN when no token is cached.
// Without a PIN it logs where to get one and reports false.
func (b *Bridge) authorize(ctx context.Context) bool {
	if b.authorized() {
		return true
	}
	if b.pin != "" {
		b.logger.Info("PIN found in config, requesting token")
		err := b.auth.RequestToken(ctx, b.pin)
		if err == nil {
			return true
		}
		b.logger.Error("token request failed", "error", err)
	}
	b.logger.Warn("nest authorization required: visit the URL, approve access, "+
		"then set nest.pin (or NEST_BRIDGE_PIN) to the code shown and restart",
		"authorize_url", b.auth.AuthorizeURL())
	return false
}

func (b *Bridge) authorized() bool {
	return b.auth == nil || !b.auth.AuthorizationRequired()
}

// handleMQTTMessage routes incoming MQTT messages by topic category.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) != topicParts {
		b.logger.Error("invalid topic format", "topic", topic)
		return
	}

	switch parts[1] {
	case "command":
		b.handleCommand(parts[3], payload)
	case "request":
		b.handleRequest(payload)
	default:
		b.logger.Error("unknown message type", "type", parts[1])
	}
}

// handleCommand executes a command and publishes its acknowledgment.
func (b *Bridge) handleCommand(address string, payload []byte) {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.Error("failed to parse command", "error", err)
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if address == "" {
		address = msg.DeviceID
	}

	b.logger.Info("received command",
		"command_id", msg.ID,
		"address", address,
		"command", msg.Command,
		"source", msg.Source)

	ctx, cancel := context.WithTimeout(b.ctx, b.commandTimeout)
	defer cancel()

	var err error
	if !b.authorized() {
		err = ErrNotAuthorized
	} else if address == ControllerAddress {
		err = b.controller.DispatchController(ctx, msg.Command)
	} else {
		var cmd Command
		cmd, err = NewCommand(msg.Command, msg.Value)
		if err == nil {
			err = b.controller.Dispatch(ctx, address, cmd)
		}
	}

	if err != nil {
		b.publishAckError(msg, address, ErrorCode(err), err.Error())
		return
	}
	b.publishAck(msg, address, AckAccepted)
}

// ErrorCode maps a command error onto an acknowledgment error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownDevice):
		return ErrCodeNotConfigured
	case errors.Is(err, ErrUnknownCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrUnknownMode), errors.Is(err, ErrMissingValue), errors.Is(err, ErrInvalidValue):
		return ErrCodeInvalidParameters
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, nestapi.ErrAuthorizationRequired):
		return ErrCodeNotAuthorized
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, ErrDeviceUnreachable), errors.Is(err, nestapi.ErrTransient):
		return ErrCodeDeviceUnreachable
	case errors.Is(err, ErrDiscoveryFailed):
		return ErrCodeBridgeError
	default:
		return ErrCodeProtocolError
	}
}

func (b *Bridge) publishAck(cmd CommandMessage, address string, status AckStatus) {
	payload, err := json.Marshal(NewAckMessage(cmd, status, address))
	if err != nil {
		b.logger.Error("failed to marshal ack", "error", err)
		return
	}
	if err := b.mqtt.Publish(AckTopic(address), payload, 1, false); err != nil {
		b.logger.Error("failed to publish ack", "error", err)
	}
}

func (b *Bridge) publishAckError(cmd CommandMessage, address, code, message string) {
	payload, err := json.Marshal(NewAckError(cmd, address, code, message))
	if err != nil {
		b.logger.Error("failed to marshal ack error", "error", err)
		return
	}
	if err := b.mqtt.Publish(AckTopic(address), payload, 1, false); err != nil {
		b.logger.Error("failed to publish ack error", "error", err)
	}
	b.logger.Error("command failed",
		"command_id", cmd.ID,
		"address", address,
		"code", code,
		"message", message)
}

// handleRequest answers discover, read_state and read_all requests.
func (b *Bridge) handleRequest(payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logger.Error("failed to parse request", "error", err)
		return
	}

	b.logger.Info("received request",
		"request_id", req.RequestID,
		"action", req.Action)

	var resp ResponseMessage
	switch req.Action {
	case "discover":
		resp = b.handleDiscover(req)
	case "read_state":
		resp = b.handleReadState(req)
	case "read_all":
		resp = b.handleReadAll(req)
	default:
		resp = failedResponse(req, ErrCodeInvalidCommand, fmt.Sprintf("unknown action: %s", req.Action))
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		b.logger.Error("failed to marshal response", "error", err)
		return
	}
	if err := b.mqtt.Publish(ResponseTopic(req.RequestID), respPayload, 1, false); err != nil {
		b.logger.Error("failed to publish response", "error", err)
	}
}

func (b *Bridge) handleDiscover(req RequestMessage) ResponseMessage {
	ctx, cancel := context.WithTimeout(b.ctx, readAllTimeout)
	defer cancel()

	if err := b.controller.Discover(ctx); err != nil {
		return failedResponse(req, ErrorCode(err), err.Error())
	}
	return successResponse(req, map[string]any{"thermostats": b.controller.Thermostats()})
}

func (b *Bridge) handleReadState(req RequestMessage) ResponseMessage {
	if req.DeviceID == "" {
		return failedResponse(req, ErrCodeInvalidParameters, "device_id is required")
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.commandTimeout)
	defer cancel()

	if err := b.controller.Query(ctx, req.DeviceID); err != nil {
		return failedResponse(req, ErrorCode(err), err.Error())
	}
	status, _ := b.controller.Thermostat(req.DeviceID)
	return successResponse(req, map[string]any{"thermostat": status})
}

func (b *Bridge) handleReadAll(req RequestMessage) ResponseMessage {
	ctx, cancel := context.WithTimeout(b.ctx, readAllTimeout)
	defer cancel()

	failures := b.controller.QueryAll(ctx)
	data := map[string]any{"thermostats": b.controller.Thermostats()}
	if len(failures) > 0 {
		failed := make(map[string]string, len(failures))
		for address, err := range failures {
			failed[address] = err.Error()
		}
		data["failed"] = failed
	}
	return successResponse(req, data)
}

func successResponse(req RequestMessage, data map[string]any) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      data,
	}
}

func failedResponse(req RequestMessage, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error:     &ResponseError{Code: code, Message: message},
	}
}
