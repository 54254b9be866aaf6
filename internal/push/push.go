// Package push delivers best-effort device notifications. Delivery
// failures are reported to the caller, which logs them; they never fail
// the operation that triggered the push.
package push

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Message is the payload sent to one device.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Transport sends a message to a device token.
type Transport interface {
	Send(ctx context.Context, token string, msg Message) error
}

// RedisTransport publishes each message on the channel "push:<token>".
// A gateway process subscribed to those channels forwards to devices.
type RedisTransport struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisTransport(rdb *redis.Client, prefix string) *RedisTransport {
	if prefix == "" {
		prefix = "push:"
	}
	return &RedisTransport{rdb: rdb, prefix: prefix}
}

func (t *RedisTransport) Send(ctx context.Context, token string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return t.rdb.Publish(ctx, t.prefix+token, body).Err()
}

// LogTransport only logs. Used when Redis is not configured.
type LogTransport struct{ Log *zap.Logger }

func (t LogTransport) Send(_ context.Context, token string, msg Message) error {
	if t.Log != nil {
		t.Log.Debug("push", zap.String("token", token), zap.String("title", msg.Title))
	}
	return nil
}
