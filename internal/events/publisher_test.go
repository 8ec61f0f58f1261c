package events

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/patient-transport/internal/model"
)

func TestRedisPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub := NewRedisPublisher(client, "transport:appointments")
	id := uuid.New()
	at := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	err := pub.Publish(context.Background(), Message{
		Type:          model.EventTypeAppointmentConfirmed,
		AppointmentID: id,
		Status:        model.AppointmentStatusConfirmed,
		Actor:         "central",
		OccurredAt:    at,
		Details:       map[string]any{"confirmed_by": "central"},
	})
	require.NoError(t, err)

	entries, err := client.XRange(context.Background(), "transport:appointments", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	values := entries[0].Values
	assert.Equal(t, "appointment_confirmed", values["type"])
	assert.Equal(t, id.String(), values["appointment_id"])
	assert.Equal(t, "confirmado", values["status"])
	assert.Equal(t, "2024-06-10T12:00:00Z", values["occurred_at"])
	assert.JSONEq(t, `{"confirmed_by":"central"}`, values["details"].(string))
}

func TestRedisPublisher_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	err := NewRedisPublisher(client, "s").Publish(context.Background(), Message{Type: model.EventTypeTripStarted})
	assert.Error(t, err)
}

func TestNewRedisClient_Empty(t *testing.T) {
	assert.Nil(t, NewRedisClient("", ""))
	assert.NotNil(t, NewRedisClient("localhost:6379", ""))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), Message{}))
}
