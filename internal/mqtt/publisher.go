// Package mqtt forwards pipeline events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/signify/internal/app"
	"github.com/ayusman/signify/internal/log"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	// quiesce is how long Disconnect waits for in-flight work, in ms.
	quiesce = 250
)

// Config configures a Publisher.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// client is the subset of paho.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// Publisher is an app.Sink publishing each event as JSON to
// <prefix>/<event type>.
type Publisher struct {
	cfg    Config
	client client

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewPublisher connects to the broker and returns a Publisher. The client
// reconnects on its own after the initial connection.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker not configured")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "signify"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "signify"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(BrokerURL(cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c paho.Client) {
		log.Infow("MQTT connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(c paho.Client, err error) {
		log.Warnw("MQTT connection lost, reconnecting", "broker", cfg.Broker, "error", err)
	}

	c := paho.NewClient(opts)

	log.Infow("Connecting to MQTT broker", "broker", cfg.Broker)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connection to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return newPublisher(cfg, c), nil
}

func newPublisher(cfg Config, c client) *Publisher {
	return &Publisher{cfg: cfg, client: c}
}

// Publish sends e without waiting for the broker. Events are dropped while
// the connection is down.
func (p *Publisher) Publish(e app.Event) {
	if !p.client.IsConnectionOpen() {
		p.dropped.Add(1)
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		p.failed.Add(1)
		log.Warnw("Failed to encode event", "type", e.Type, "error", err)
		return
	}

	topic := Topic(p.cfg.TopicPrefix, e.Type)
	token := p.client.Publish(topic, p.cfg.QoS, false, payload)
	p.published.Add(1)

	go func() {
		if !token.WaitTimeout(publishTimeout) {
			p.failed.Add(1)
			log.Debugw("MQTT publish timed out", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			p.failed.Add(1)
			log.Warnw("MQTT publish failed", "topic", topic, "error", err)
		}
	}()
}

// Stats returns the published, dropped and failed counts.
func (p *Publisher) Stats() (published, dropped, failed uint64) {
	return p.published.Load(), p.dropped.Load(), p.failed.Load()
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.client.Disconnect(quiesce)
	log.Info("MQTT publisher closed")
	return nil
}

// Topic returns the topic for events of type t.
func Topic(prefix string, t app.EventType) string {
	return strings.TrimSuffix(prefix, "/") + "/" + string(t)
}

// BrokerURL adds the tcp scheme to a bare host:port.
func BrokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
