// Package mqtt announces registration outcomes on an MQTT broker so other
// tooling can react when a machine joins Foreman.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Event outcomes, also used as the last topic segment.
const (
	OutcomeRegistered = "registered"
	OutcomeFailed     = "failed"
	OutcomeSkipped    = "skipped"
)

// Event is the JSON payload published for one registration attempt.
type Event struct {
	Host      string    `json:"host,omitempty"`
	HostID    int       `json:"host_id,omitempty"`
	Server    string    `json:"server,omitempty"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// publishFunc sends one message and waits for the broker to acknowledge it.
type publishFunc func(topic string, qos byte, retained bool, payload []byte) error

// Announcer publishes registration events. A zero BrokerURL makes every
// method a no-op.
type Announcer struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	client  pahomqtt.Client
	publish publishFunc
}

// NewAnnouncer creates an announcer. Call Connect before Announce.
func NewAnnouncer(cfg Config, logger *zap.Logger) *Announcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.ClientID == "" {
		cfg.ClientID = def.ClientID
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = def.TopicPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Announcer{cfg: cfg, logger: logger}
}

// Enabled reports whether a broker is configured.
func (a *Announcer) Enabled() bool {
	return a.cfg.BrokerURL != ""
}

// Connect dials the broker. It is a no-op when no broker is configured.
func (a *Announcer) Connect() error {
	if !a.Enabled() {
		a.logger.Debug("mqtt announcer disabled: no broker configured")
		return nil
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(a.cfg.BrokerURL).
		SetClientID(a.cfg.ClientID).
		SetConnectTimeout(a.cfg.Timeout)
	if a.cfg.Username != "" {
		opts.SetUsername(a.cfg.Username)
		opts.SetPassword(a.cfg.Password) //nolint:gosec // G101: config field
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(a.cfg.Timeout) {
		return fmt.Errorf("connect to %s: timed out after %s", a.cfg.BrokerURL, a.cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", a.cfg.BrokerURL, err)
	}

	a.mu.Lock()
	a.client = client
	a.publish = a.clientPublish
	a.mu.Unlock()

	a.logger.Info("mqtt connected to broker", zap.String("broker_url", a.cfg.BrokerURL))
	return nil
}

// Announce publishes ev on <prefix>/host/<outcome>. Timestamp is filled in
// when zero.
func (a *Announcer) Announce(ev Event) error {
	a.mu.Lock()
	publish := a.publish
	a.mu.Unlock()
	if publish == nil {
		return nil
	}

	if ev.Outcome == "" {
		return errors.New("announce: event without outcome")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	topic := a.Topic(ev.Outcome)
	if err := publish(topic, a.cfg.QoS, a.cfg.Retain, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	a.logger.Debug("mqtt event published", zap.String("mqtt_topic", topic))
	return nil
}

// Topic returns the topic used for outcome.
func (a *Announcer) Topic(outcome string) string {
	return a.cfg.TopicPrefix + "/host/" + outcome
}

// Close disconnects from the broker, if connected.
func (a *Announcer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil && a.client.IsConnected() {
		a.client.Disconnect(250)
		a.logger.Info("mqtt disconnected")
	}
	a.client = nil
	a.publish = nil
}

func (a *Announcer) clientPublish(topic string, qos byte, retained bool, payload []byte) error {
	token := a.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(a.cfg.Timeout) {
		return fmt.Errorf("timed out after %s", a.cfg.Timeout)
	}
	return token.Error()
}
