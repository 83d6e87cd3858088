package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	bufferCapacity = 64
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an MQTT broker. It connects in the background
// and keeps retrying; events published while offline are buffered and
// replayed on (re)connection.
type RealPublisher struct {
	client paho.Client
	bootID string
	log    zerolog.Logger

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // at least one connection has been made
}

// NewRealPublisher creates a publisher for broker. It does not block on the
// connection. The last will marks the dashboard offline.
func NewRealPublisher(broker, clientID, bootID string, log zerolog.Logger) *RealPublisher {
	log = log.With().Str("component", "mqtt").Logger()
	p := &RealPublisher{
		bootID: bootID,
		log:    log,
		buf:    newRingBuffer(bufferCapacity, log),
	}

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventShutdown,
		Reason:    ReasonMQTTDisconnect,
		BootID:    bootID,
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn().Err(err).Msg("connection lost")
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	pending := p.buf.drainAll()
	p.mu.Unlock()

	p.log.Info().Bool("reconnect", reconnect).Int("buffered", len(pending)).Msg("connected")

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{
			Timestamp: time.Now(),
			Event:     EventReconnected,
			BootID:    p.bootID,
		})
		pending = append([]bufferedMsg{{topic: TopicSystem, payload: payload, qos: 1}}, pending...)
	}

	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			p.log.Warn().Err(err).Msg("replay failed")
		}
	}
}

// PublishSystem sends a lifecycle event, buffering it while offline.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	if event.BootID == "" {
		event.BootID = p.bootID
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	msg := bufferedMsg{
		topic:    TopicSystem,
		payload:  payload,
		qos:      qosFor(event),
		retained: event.Retained,
	}

	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		p.log.Debug().Str("event", event.Event).Msg("offline, buffered")
		return nil
	}

	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
