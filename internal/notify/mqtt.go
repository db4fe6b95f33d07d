package notify

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTConfig configures the broker connection of an MQTTSink.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	// ConnectWait bounds how long DialMQTT waits for the first connection.
	// Zero means five seconds.
	ConnectWait time.Duration
}

// publisher is the subset of mqtt.Client used by MQTTSink.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes events to an MQTT topic.
type MQTTSink struct {
	client publisher
	topic  string
	qos    byte
}

// DialMQTT connects to the broker and returns a sink and the client to
// disconnect on shutdown. An unreachable broker is not an error: the client
// keeps retrying in the background and sends fail until it connects.
func DialMQTT(cfg MQTTConfig, logger *zap.Logger) (*MQTTSink, mqtt.Client, error) {
	wait := cfg.ConnectWait
	if wait <= 0 {
		wait = 5 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(wait)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("Lost MQTT connection", zap.String("broker", cfg.Broker), zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(wait) {
		logger.Warn("MQTT broker unreachable, retrying in background", zap.String("broker", cfg.Broker))
	} else if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, err)
	}
	return NewMQTTSink(client, cfg.Topic, cfg.QoS), client, nil
}

// NewMQTTSink returns a sink on an already connected client.
func NewMQTTSink(client publisher, topic string, qos byte) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: qos}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Send implements Sink. It waits for the broker until ctx is done.
func (s *MQTTSink) Send(ctx context.Context, ev Event) error {
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	token := s.client.Publish(s.topic, s.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", s.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}
