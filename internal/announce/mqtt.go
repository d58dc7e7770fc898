package announce

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/device-control/dcc/internal/config"
)

// StatusPublisher mirrors device availability and update state to an
// MQTT broker: retained online/offline on the availability topic
// (with a last-will fallback) and retained state documents on
// lifecycle transitions.
type StatusPublisher struct {
	client mqtt.Client
	prefix string
	log    *zap.Logger
}

// StartStatusPublisher connects to the configured broker. Returns an
// error if the broker is unreachable; callers treat the publisher as
// optional.
func StartStatusPublisher(cfg config.MQTTConfig, hostname string, log *zap.Logger) (*StatusPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}

	availTopic := cfg.TopicPrefix + "/status"

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID("dcc-" + hostname)
	opts.SetAutoReconnect(true)
	opts.SetWill(availTopic, "offline", 0, true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info("connected to MQTT broker", zap.String("broker", cfg.Broker))
		c.Publish(availTopic, 0, true, "online")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connection failed: %w", token.Error())
	}

	return &StatusPublisher{client: client, prefix: cfg.TopicPrefix, log: log}, nil
}

// PublishState publishes a retained state document.
func (p *StatusPublisher) PublishState(state map[string]interface{}) {
	payload, err := json.Marshal(state)
	if err != nil {
		p.log.Warn("failed to marshal MQTT state", zap.Error(err))
		return
	}
	token := p.client.Publish(p.prefix+"/state", 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		p.log.Warn("failed to publish MQTT state", zap.Error(token.Error()))
	}
}

// Close marks the device offline and disconnects.
func (p *StatusPublisher) Close() {
	token := p.client.Publish(p.prefix+"/status", 0, true, "offline")
	token.Wait()
	p.client.Disconnect(250)
}
