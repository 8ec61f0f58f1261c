package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Leganyst/patient-transport/internal/model"
)

// Message is one lifecycle event as downstream consumers (notifications, dashboards) see it.
type Message struct {
	Type          model.EventType
	AppointmentID uuid.UUID
	Status        model.AppointmentStatus
	Actor         string
	OccurredAt    time.Time
	Details       map[string]any
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// NopPublisher drops every message; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Message) error { return nil }

const defaultMaxLen = 10000

// RedisPublisher appends messages to a redis stream with XADD.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: defaultMaxLen}
}

// NewRedisClient returns nil when addr is empty.
func NewRedisClient(addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}

func (p *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	details, err := json.Marshal(msg.Details)
	if err != nil {
		return fmt.Errorf("encode event details: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":           string(msg.Type),
			"appointment_id": msg.AppointmentID.String(),
			"status":         string(msg.Status),
			"actor":          msg.Actor,
			"occurred_at":    msg.OccurredAt.UTC().Format(time.RFC3339),
			"details":        string(details),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
