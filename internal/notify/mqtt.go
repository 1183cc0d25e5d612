// Package notify publishes occupancy events to an MQTT broker for external
// subscribers. Delivery is best-effort: a failed publish is reported to the
// tracker's log and the event is not retried.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"parkvision-service/internal/domain/occupancy"
)

const (
	connectRetryInterval = 5 * time.Second
	publishTimeout       = 5 * time.Second
)

type Options struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      int
}

// MQTTNotifier implements occupancy.EventSink over an auto-reconnecting MQTT
// client. Events are published to <topic>/<zone-id>.
type MQTTNotifier struct {
	client mqtt.Client
	topic  string
	qos    byte
	log    zerolog.Logger
}

func NewMQTTNotifier(opts Options, log zerolog.Logger) *MQTTNotifier {
	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	clientOpts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", opts.Broker).Msg("connected to MQTT broker")
	})
	clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	n := &MQTTNotifier{
		client: mqtt.NewClient(clientOpts),
		topic:  opts.Topic,
		qos:    byte(opts.QoS),
		log:    log,
	}
	// Connect in the background; SetConnectRetry keeps trying so a broker
	// outage at startup never blocks the pipeline.
	n.client.Connect()
	return n
}

func (n *MQTTNotifier) WriteEvent(ctx context.Context, ev occupancy.Event) error {
	if !n.client.IsConnected() {
		return fmt.Errorf("mqtt publish %s: not connected", ev.ZoneID)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", n.topic, ev.ZoneID)
	token := n.client.Publish(topic, n.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
}
