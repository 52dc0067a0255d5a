package events

import (
	"context"

	"go.uber.org/zap"

	domainevents "millionx-backend/domain/events"
)

// ZapPublisher emits domain events to the structured log. The event
// stream doubles as an audit trail for session mutations.
type ZapPublisher struct {
	logger *zap.Logger
}

// NewZapPublisher creates the publisher
func NewZapPublisher(logger *zap.Logger) *ZapPublisher {
	return &ZapPublisher{logger: logger.Named("events")}
}

// Publish logs each event in the batch
func (p *ZapPublisher) Publish(ctx context.Context, batch []domainevents.DomainEvent) error {
	for _, event := range batch {
		p.logger.Info("domain event",
			zap.String("type", event.GetEventType()),
			zap.String("aggregate", event.GetAggregateID()),
			zap.Time("at", event.GetTimestamp()),
		)
	}
	return nil
}
