package hmr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/bale/log"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "bale:update"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// RedisConfig configures the redis pub/sub notifier.
type RedisConfig struct {
	// URL is the redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: bale:update).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure; 0 disables
	// retries. NewRedis applies no default here (the CLI passes
	// DefaultRetries when the config leaves it unset).
	Retries int
}

// RedisNotifier publishes update messages via redis PUBLISH, so sidecar
// tooling (or bundlers on other machines) can observe rebuilds.
type RedisNotifier struct {
	config RedisConfig
	client *goredis.Client
	logger *log.Logger
}

// NewRedis creates a redis notifier from the given config.
func NewRedis(cfg RedisConfig, logger *log.Logger) (*RedisNotifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis notifier requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis notifier: invalid URL: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &RedisNotifier{
		config: cfg,
		client: goredis.NewClient(opts),
		logger: logger,
	}, nil
}

// publish sends one message with exponential backoff on failure. Delivery
// is best-effort: exhausted retries are logged and dropped.
func (n *RedisNotifier) publish(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error("cannot encode update message", map[string]any{"error": err.Error()})
		return
	}

	backoff := 100 * time.Millisecond
	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), n.config.Timeout)
		err = n.client.Publish(ctx, n.config.Channel, data).Err()
		cancel()
		if err == nil {
			return
		}
		if attempt >= n.config.Retries {
			n.logger.Warn("redis publish failed", map[string]any{
				"channel": n.config.Channel, "attempts": attempt + 1, "error": err.Error(),
			})
			return
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}

// NotifyUpdate implements Notifier.
func (n *RedisNotifier) NotifyUpdate(assets []UpdateAsset) {
	n.publish(Message{Type: "update", Assets: assets})
}

// NotifyError implements Notifier.
func (n *RedisNotifier) NotifyError(message string) {
	n.publish(Message{Type: "error", Error: message})
}

// Close implements Notifier.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

var _ Notifier = (*RedisNotifier)(nil)
