// Package eventclient is the concrete implementation of the external
// event-agent transport client: it publishes epoch.Detector events to
// an MQTT broker and relays inbound config-toggle messages back to the
// detector's OnConfigEnabled/OnConfigDisabled callbacks.
//
// paho.mqtt.golang's built-in auto-reconnect owns the reconnect loop,
// and a small bounded ring buffer drops the oldest buffered message
// first for anything sent while disconnected.
package eventclient

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ConfigToggle is the shape of an inbound config message: whether the
// host is enabling or disabling config mode for an event type, and any
// accompanying parameters.
type ConfigToggle struct {
	ConfigStateEnabled bool           `json:"config_state_enabled"`
	EventType          string         `json:"event_type"`
	Options            map[string]any `json:"options"`
}

// ConfigCallbacks is the on_config_enabled/on_config_disabled
// capability pair the detector implements.
type ConfigCallbacks interface {
	OnConfigEnabled(eventType string, params map[string]any)
	OnConfigDisabled(eventType string, params map[string]any)
}

// Client publishes epoch events to an MQTT topic and subscribes to a
// config-toggle topic.
type Client struct {
	client      mqtt.Client
	eventTopic  string
	bufSize     int

	mu     sync.Mutex
	buffer []message
}

type message struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

// Options configures a Client at construction.
type Options struct {
	Broker      string
	ClientID    string
	EventTopic  string
	ConfigTopic string
	// BufSize bounds the number of events buffered while disconnected,
	// oldest dropped first once the buffer fills.
	BufSize int
}

// New connects to the broker and subscribes to the config-toggle
// topic, invoking cb's callbacks as toggle messages arrive.
func New(opts Options, cb ConfigCallbacks) (*Client, error) {
	if opts.BufSize <= 0 {
		opts.BufSize = 10
	}

	c := &Client{
		eventTopic: opts.EventTopic,
		bufSize:    opts.BufSize,
	}

	mqttOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Printf("eventclient: connected to %s", opts.Broker)
			c.flushBuffered()
		})

	client := mqtt.NewClient(mqttOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("eventclient: connect: %w", token.Error())
	}
	c.client = client

	token := client.Subscribe(opts.ConfigTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var toggle ConfigToggle
		if err := json.Unmarshal(msg.Payload(), &toggle); err != nil {
			log.Printf("eventclient: config toggle unmarshal error: %v", err)
			return
		}
		if toggle.ConfigStateEnabled {
			cb.OnConfigEnabled(toggle.EventType, toggle.Options)
		} else {
			cb.OnConfigDisabled(toggle.EventType, toggle.Options)
		}
	})
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("eventclient: subscribe config topic: %w", token.Error())
	}

	return c, nil
}

// SendEvent publishes an event, matching epoch.EventClient. If the
// client is currently disconnected, the message is buffered (oldest
// dropped first past BufSize) and flushed once reconnected.
func (c *Client) SendEvent(eventType string, data map[string]any) error {
	msg := message{EventType: eventType, Data: data}

	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		c.buffer = append(c.buffer, msg)
		if len(c.buffer) > c.bufSize {
			dropped := c.buffer[0]
			c.buffer = c.buffer[1:]
			log.Printf("eventclient: not connected, dropping buffered message: %+v", dropped)
		}
		c.mu.Unlock()
		return nil
	}

	return c.publish(msg)
}

func (c *Client) publish(msg message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("eventclient: marshal: %w", err)
	}
	token := c.client.Publish(c.eventTopic, 0, false, payload)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return fmt.Errorf("eventclient: publish: %w", token.Error())
	}
	return nil
}

func (c *Client) flushBuffered() {
	c.mu.Lock()
	buffered := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	for _, msg := range buffered {
		if err := c.publish(msg); err != nil {
			log.Printf("eventclient: failed to flush buffered message: %v", err)
		}
	}
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.client.Disconnect(250)
}
