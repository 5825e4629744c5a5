package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Tesseract-Nexus/go-shared/tracing"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

const importStreamName = "IMPORT_EVENTS"

// NATSPublisher publishes import events to JetStream
type NATSPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *logrus.Entry
}

// NewNATSPublisher connects to NATS and makes sure the import stream exists
func NewNATSPublisher(natsURL string, logger *logrus.Logger) (*NATSPublisher, error) {
	log := logger.WithField("component", "import-events")

	nc, err := nats.Connect(natsURL,
		nats.Name("catalog-import-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("Reconnected to %s", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("Disconnected from NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      importStreamName,
		Subjects:  []string{"import.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to ensure import stream (may already exist)")
	}

	return &NATSPublisher{nc: nc, js: js, logger: log}, nil
}

func (p *NATSPublisher) PublishImportEvent(ctx context.Context, event ImportEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, span := tracing.StartNATSSpan(ctx, "publish", event.EventType)
	defer span.End()
	if _, err := p.js.Publish(ctx, event.EventType, data, jetstream.WithMsgID(event.EventID)); err != nil {
		tracing.SetError(span, err)
		p.logger.WithError(err).WithField("event_type", event.EventType).Error("Failed to publish import event")
		return err
	}
	p.logger.WithFields(logrus.Fields{
		"event_type": event.EventType,
		"tenant_id":  event.TenantID,
		"run_id":     event.RunID,
	}).Debug("Published import event")
	return nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
