package forwarder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/benmeehan/findmy-agent/internal/models"
	"github.com/benmeehan/findmy-agent/pkg/mqtt"
	"github.com/rs/zerolog"
)

// MQTTForwarder publishes each reading as JSON to a broker topic.
type MQTTForwarder struct {
	topic          string
	qos            int
	publishTimeout time.Duration
	mqttClient     mqtt.MQTTClient
	logger         zerolog.Logger
}

// NewMQTTForwarder creates an MQTTForwarder.
func NewMQTTForwarder(topic string, qos int, publishTimeout time.Duration, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *MQTTForwarder {
	return &MQTTForwarder{
		topic:          topic,
		qos:            qos,
		publishTimeout: publishTimeout,
		mqttClient:     mqttClient,
		logger:         logger,
	}
}

// Name implements Forwarder.
func (m *MQTTForwarder) Name() string {
	return "mqtt"
}

// Forward implements Forwarder. The broker cannot tell duplicates apart, so
// every successful publish is reported as stored.
func (m *MQTTForwarder) Forward(ctx context.Context, updates []models.LocationUpdate) []models.ForwardOutcome {
	outcomes := make([]models.ForwardOutcome, len(updates))
	for i, update := range updates {
		if ctx.Err() != nil {
			outcomes[i] = models.OutcomeFailed
			continue
		}
		if err := m.publish(update); err != nil {
			m.logger.Error().
				Err(err).
				Str("topic", m.topic).
				Str("device_id", update.DeviceID).
				Msg("Failed to publish location message to MQTT")
			outcomes[i] = models.OutcomeFailed
			continue
		}
		outcomes[i] = models.OutcomeStoredNew
	}
	return outcomes
}

func (m *MQTTForwarder) publish(update models.LocationUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}

	token := m.mqttClient.Publish(m.topic, byte(m.qos), false, payload)
	if m.publishTimeout > 0 {
		if !token.WaitTimeout(m.publishTimeout) {
			return errPublishTimeout
		}
	} else {
		token.Wait()
	}
	return token.Error()
}
