// internal/events/publisher.go
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/limey-tt/limey-backend/internal/config"
)

const (
	TypeMessageCreated = "message.created"
	TypeLedgerRecorded = "ledger.recorded"
	TypeAdReviewed     = "ad.reviewed"
	TypeProfileUpdated = "profile.updated"
	TypeNotification   = "notification.created"
)

type Event struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// Publisher fans domain events out to realtime subscribers. Publishing is
// best-effort: failures are logged and never returned to callers.
type Publisher interface {
	Publish(subject, eventType string, data interface{})
	Close()
}

// natsConn is the subset of *nats.Conn the publisher needs.
type natsConn interface {
	Publish(subj string, data []byte) error
	Close()
}

type natsPublisher struct {
	nc     natsConn
	prefix string
}

// New connects to NATS, or returns a no-op publisher when no URL is set.
func New(cfg config.NATSConfig) (Publisher, error) {
	if cfg.URL == "" {
		logrus.Warn("NATS_URL not set, realtime events disabled")
		return NoopPublisher{}, nil
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("limey-backend"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logrus.WithError(err).Warn("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.WithField("url", nc.ConnectedUrl()).Info("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return newNATSPublisher(nc, cfg.SubjectPrefix), nil
}

func newNATSPublisher(nc natsConn, prefix string) *natsPublisher {
	return &natsPublisher{nc: nc, prefix: prefix}
}

func (p *natsPublisher) Publish(subject, eventType string, data interface{}) {
	payload, err := json.Marshal(Event{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		logrus.WithError(err).WithField("type", eventType).Error("Failed to marshal event")
		return
	}

	fullSubject := p.subject(subject)
	if err := p.nc.Publish(fullSubject, payload); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"subject": fullSubject,
			"type":    eventType,
		}).Warn("Failed to publish event")
	}
}

func (p *natsPublisher) subject(subject string) string {
	if p.prefix == "" {
		return subject
	}
	return p.prefix + "." + subject
}

func (p *natsPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(string, string, interface{}) {}
func (NoopPublisher) Close()                              {}

// Subject helpers keep routing keys in one place.
func MessagesSubject(receiverID fmt.Stringer) string  { return "messages." + receiverID.String() }
func LedgerSubject(userID fmt.Stringer) string        { return "ledger." + userID.String() }
func AdsSubject(advertiserID fmt.Stringer) string     { return "ads." + advertiserID.String() }
func ProfilesSubject(userID fmt.Stringer) string      { return "profiles." + userID.String() }
func NotificationsSubject(userID fmt.Stringer) string { return "notifications." + userID.String() }
