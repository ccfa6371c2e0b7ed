package mq

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mouldconnect/apiserver/config"
	"github.com/mouldconnect/apiserver/types"
)

type memoryBackend struct {
	mu        sync.Mutex
	published []Message
	channels  []string
	err       error
}

func (b *memoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.channels = append(b.channels, channel)
	b.published = append(b.published, Message{ID: "m1", Data: data, Attributes: attrs})
	return "m1", nil
}

func (b *memoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	b.mu.Lock()
	msgs := append([]Message(nil), b.published...)
	b.mu.Unlock()
	for _, msg := range msgs {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *memoryBackend) Close() error { return nil }

func TestEventPublisher_Publish(t *testing.T) {
	backend := &memoryBackend{}
	pub := NewEventPublisher(New(backend), "account-events", nil)

	pub.Publish(context.Background(), types.AccountEvent{
		Type:     types.EventUserRegistered,
		UserID:   7,
		UserCode: "MC-20251",
		Email:    "a@b.com",
	})

	require.Len(t, backend.published, 1)
	assert.Equal(t, "account-events", backend.channels[0])
	assert.Equal(t, "application/json", backend.published[0].Attributes[AttrContentType])
	assert.Equal(t, types.EventUserRegistered, backend.published[0].Attributes["event-type"])
	assert.Equal(t, "user-7", backend.published[0].Attributes[AttrOrderingKey])

	event, err := DecodeEvent(backend.published[0])
	require.NoError(t, err)
	assert.Equal(t, 7, event.UserID)
	assert.Equal(t, "MC-20251", event.UserCode)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.At.IsZero())
}

func TestEventPublisher_FailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	pub := NewEventPublisher(New(&memoryBackend{err: errors.New("broker down")}), "account-events", logger)

	pub.Publish(context.Background(), types.AccountEvent{Type: types.EventUserVerified, UserID: 7})

	assert.Contains(t, buf.String(), "publish account event failed")
	assert.Contains(t, buf.String(), "broker down")
}

func TestEventPublisher_NilIsNoop(t *testing.T) {
	var nilPub *EventPublisher
	nilPub.Publish(context.Background(), types.AccountEvent{Type: types.EventUserVerified})

	NewEventPublisher(nil, "account-events", nil).Publish(context.Background(), types.AccountEvent{})
}

func TestOpen_Disabled(t *testing.T) {
	m, err := Open(context.Background(), configWithBackend(""))
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = Open(context.Background(), configWithBackend("kafka"))
	assert.Error(t, err)
}

func TestDecodeEvent_Invalid(t *testing.T) {
	_, err := DecodeEvent(Message{ID: "x", Data: []byte("{")})
	assert.Error(t, err)
}

func configWithBackend(backend string) config.MQConfig {
	return config.MQConfig{Backend: backend, Channel: "account-events"}
}
