package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mouldconnect/apiserver/types"
)

const publishTimeout = 5 * time.Second

// EventPublisher emits account events. Delivery is best-effort: failures are
// logged and never returned to the caller.
type EventPublisher struct {
	mq      *MQ
	channel string
	logger  *slog.Logger
}

// NewEventPublisher returns a publisher for channel. A nil mq yields a
// publisher that drops every event.
func NewEventPublisher(mq *MQ, channel string, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{mq: mq, channel: channel, logger: logger}
}

// Publish fills in the id and timestamp when missing and sends the event.
func (p *EventPublisher) Publish(ctx context.Context, event types.AccountEvent) {
	if p == nil || p.mq == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "encode account event", slog.String("type", event.Type), slog.Any("err", err))
		return
	}

	// The request may finish before the broker acknowledges.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	attrs := map[string]string{
		AttrContentType: "application/json",
		AttrOrderingKey: "user-" + strconv.Itoa(event.UserID),
		"event-type":    event.Type,
	}
	if _, err := p.mq.Publish(ctx, p.channel, data, attrs); err != nil {
		p.logger.WarnContext(ctx, "publish account event failed",
			slog.String("type", event.Type),
			slog.Int("user_id", event.UserID),
			slog.Any("err", err),
		)
	}
}

// DecodeEvent parses a message produced by Publish.
func DecodeEvent(msg Message) (types.AccountEvent, error) {
	var event types.AccountEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.AccountEvent{}, fmt.Errorf("decode account event %s: %w", msg.ID, err)
	}
	return event, nil
}
