package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/collab-core/pkg/logger"
)

// bridgeFrame is the wire shape relayed over redis pub/sub. UserID empty
// means broadcast.
type bridgeFrame struct {
	UserID  string          `json:"user_id,omitempty"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBridge implements Publisher over redis pub/sub so a publish issued on
// any process reaches clients connected to every process. Each instance
// relays received frames into its local broker.
type RedisBridge struct {
	rdb     redis.UniversalClient
	broker  *Broker
	channel string
}

func NewRedisBridge(rdb redis.UniversalClient, broker *Broker, channel string) *RedisBridge {
	return &RedisBridge{rdb: rdb, broker: broker, channel: channel}
}

// Run subscribes to the bridge channel and relays frames into the local
// broker until ctx is cancelled. Returns a stop func.
func (r *RedisBridge) Run(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	sub := r.rdb.Subscribe(ctx, r.channel)
	go func() {
		for msg := range sub.Channel() {
			var f bridgeFrame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				logger.Warn("stream bridge: bad frame", zap.Error(err))
				continue
			}
			if f.UserID == "" {
				_ = r.broker.Broadcast(f.Name, f.Payload)
			} else {
				_ = r.broker.PublishUser(f.UserID, f.Name, f.Payload)
			}
		}
	}()
	return func() {
		_ = sub.Close()
		cancel()
	}
}

func (r *RedisBridge) Broadcast(name string, payload any) error {
	return r.send("", name, payload)
}

func (r *RedisBridge) PublishUser(userID, name string, payload any) error {
	return r.send(userID, name, payload)
}

func (r *RedisBridge) send(userID, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	frame, err := json.Marshal(bridgeFrame{UserID: userID, Name: name, Payload: data})
	if err != nil {
		return fmt.Errorf("marshal bridge frame: %w", err)
	}
	if err := r.rdb.Publish(context.Background(), r.channel, frame).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}
