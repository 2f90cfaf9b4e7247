package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// DefaultSubjectPrefix is prepended to the event type to build the NATS subject
const DefaultSubjectPrefix = "dicegame"

// MessagePublisher is the part of *nats.Conn the forwarder needs
type MessagePublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSForwarder republishes committed store events on NATS subjects
type NATSForwarder struct {
	publisher MessagePublisher
	prefix    string
}

// NewNATSForwarder creates a forwarder publishing on "<prefix>.<event_type>"
func NewNATSForwarder(publisher MessagePublisher, prefix string) *NATSForwarder {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSForwarder{publisher: publisher, prefix: prefix}
}

// Attach subscribes the forwarder to every event type on the bus
func (f *NATSForwarder) Attach(bus *Bus) {
	bus.SubscribeAll(f.Handle)
}

// Subject maps an event type to its NATS subject
func (f *NATSForwarder) Subject(eventType EventType) string {
	return fmt.Sprintf("%s.%s", f.prefix, eventType)
}

// Handle serializes the event and publishes it. Failures are logged, never returned,
// since the mutation behind the event is already committed.
func (f *NATSForwarder) Handle(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to serialize event for NATS")
		return
	}

	msg := nats.NewMsg(f.Subject(event.Type()))
	msg.Data = payload
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	msg.Header.Set("Event-Type", string(event.Type()))

	if err := f.publisher.PublishMsg(msg); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"subject":   msg.Subject,
			"error":     err,
		}).Error("Failed to publish event to NATS")
		return
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"subject":   msg.Subject,
	}).Debug("Published event to NATS")
}

// ConnectNATS opens a NATS connection with reconnect logging
func ConnectNATS(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("dicegame-store"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.WithField("url", url).Info("Connected to NATS")
	return nc, nil
}
