package crosstab

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultRedisChannel = "attendr:session"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisChannel broadcasts over Redis pub/sub so windows on different
// machines stay in step.
type RedisChannel struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisChannel(ctx context.Context, cfg RedisConfig, log *zap.Logger) (*RedisChannel, error) {
	if cfg.Channel == "" {
		cfg.Channel = DefaultRedisChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisChannel{client: client, channel: cfg.Channel, log: log}, nil
}

func (r *RedisChannel) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode session message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish session message: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription.
func (r *RedisChannel) Subscribe(fn func(Message)) (func(), error) {
	ctx := context.Background()
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := range ps.Channel() {
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				r.log.Warn("ignoring malformed session message", zap.Error(err))
				continue
			}
			fn(msg)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ps.Close()
			<-done
		})
	}, nil
}

func (r *RedisChannel) Close() error {
	return r.client.Close()
}
