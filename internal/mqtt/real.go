package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/phone-diagnostics/internal/logic"
)

// DefaultBufferSize is the number of messages held while the broker is unreachable.
const DefaultBufferSize = 64

// WillReason is the reason carried by the last-will message.
const WillReason = "MQTT_DISCONNECT"

// brokerClient is the subset of paho.Client used for publishing.
type brokerClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// RealPublisher publishes to an actual MQTT broker. Messages sent while the
// connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client     brokerClient
	disconnect func(quiesce uint)

	mu       sync.Mutex
	buf      *ringBuffer
	flushing bool
}

// NewRealPublisher creates a publisher connected to the given broker.
// The client id is suffixed with the session id so two probes on one broker
// do not kick each other off.
func NewRealPublisher(broker, sessionID string) (*RealPublisher, error) {
	p := &RealPublisher{buf: newRingBuffer(DefaultBufferSize)}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    WillReason,
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("phone-diag-" + sessionID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) {
			log.Printf("mqtt: connected to %s", broker)
			p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	client := paho.NewClient(opts)
	p.client = client
	p.disconnect = client.Disconnect

	// With connect retry enabled the token only completes once connected, so a
	// timeout leaves the client retrying in the background while messages buffer.
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: %s not reachable yet, buffering until connected", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// PublishResult sends a resolved test result to the results topic.
func (p *RealPublisher) PublishResult(sessionID string, event logic.Event) error {
	payload, err := FormatResultPayload(sessionID, event)
	if err != nil {
		return fmt.Errorf("format result payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicResults, payload: payload, qos: 1})
}

// PublishReport sends the export document, retained so late subscribers see
// the last report for each session.
func (p *RealPublisher) PublishReport(sessionID string, export []byte) error {
	if len(export) == 0 {
		return errors.New("empty report")
	}
	return p.send(bufferedMsg{topic: ReportTopic(sessionID), payload: export, qos: 1, retained: true})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client != nil && p.client.IsConnected()
}

// Buffered returns the number of messages waiting for a reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		log.Printf("mqtt: closing with %d unsent messages", n)
	}
	if p.disconnect != nil {
		p.disconnect(1000) // 1 second timeout
	}
	return nil
}

// send publishes msg, or queues it behind older messages. While anything is
// buffered or a replay is running, new messages join the back of the buffer
// so the broker sees them in order.
func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	connected := p.IsConnected()
	if !connected || p.flushing || p.buf.len() > 0 {
		p.buf.push(msg)
		replay := connected && !p.flushing
		p.mu.Unlock()
		if replay {
			p.flush()
		}
		return nil
	}
	p.mu.Unlock()

	if err := p.publish(msg); err != nil {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// flush replays buffered messages in order, including any queued while the
// replay runs. A failed publish puts the remainder back, ahead of newer
// messages, for the next reconnect.
func (p *RealPublisher) flush() {
	if p.client == nil {
		return
	}
	p.mu.Lock()
	if p.flushing {
		p.mu.Unlock()
		return
	}
	p.flushing = true
	p.mu.Unlock()

	for {
		p.mu.Lock()
		pending := p.buf.drainAll()
		if len(pending) == 0 {
			p.flushing = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		for i, msg := range pending {
			if err := p.publish(msg); err != nil {
				log.Printf("mqtt: replay failed: %v", err)
				p.mu.Lock()
				newer := p.buf.drainAll()
				for _, m := range pending[i:] {
					p.buf.push(m)
				}
				for _, m := range newer {
					p.buf.push(m)
				}
				p.flushing = false
				p.mu.Unlock()
				return
			}
		}
	}
}
