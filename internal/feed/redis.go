package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
)

// RedisRelay publishes change notifications on a Redis pub/sub channel so
// every other server instance refreshes the same scopes. Messages carry the
// publishing relay's origin and a relay skips its own.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
	origin  string
}

var _ Relay = (*RedisRelay)(nil)

// relayMessage is the payload on the channel.
type relayMessage struct {
	Origin string `json:"origin"`
	Scope
}

func NewRedisRelay(client redis.UniversalClient, channel string) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, origin: uuid.Must(uuid.NewV4()).String()}
}

// NewRedisClient opens a client and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *RedisRelay) Publish(ctx context.Context, s Scope) error {
	payload, err := encodeMessage(r.origin, s)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Listen blocks until ctx is done, calling fn for every valid notification.
func (r *RedisRelay) Listen(ctx context.Context, fn func(Scope)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s, ok, err := r.accept([]byte(msg.Payload))
			if err != nil {
				slog.WarnContext(ctx, "Ignoring malformed change notification", "channel", r.channel, "error", err)
				continue
			}
			if ok {
				fn(s)
			}
		}
	}
}

// accept decodes payload and reports false for this relay's own messages.
func (r *RedisRelay) accept(payload []byte) (Scope, bool, error) {
	origin, s, err := decodeMessage(payload)
	if err != nil {
		return Scope{}, false, err
	}
	return s, origin != r.origin, nil
}

func encodeMessage(origin string, s Scope) ([]byte, error) {
	b, err := json.Marshal(relayMessage{Origin: origin, Scope: s})
	if err != nil {
		return nil, fmt.Errorf("encode scope: %w", err)
	}
	return b, nil
}

func decodeMessage(b []byte) (string, Scope, error) {
	var m relayMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return "", Scope{}, fmt.Errorf("decode scope: %w", err)
	}
	if m.Owner == "" {
		return "", Scope{}, ErrNoOwner
	}
	return m.Origin, m.Scope, nil
}
