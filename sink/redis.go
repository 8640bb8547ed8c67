package sink

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig 描述时序存储的连接参数。
type RedisConfig struct {
	ConnectionURL       string `yaml:"connection_url"`
	Stream              string `yaml:"stream"`
	MaxLen              int64  `yaml:"max_len"` // approximate stream cap, 0 = unbounded
	PoolSize            int    `yaml:"pool_size"`
	DialTimeoutSeconds  int    `yaml:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

// InitRedis create a redis client from config
func InitRedis(cfg *RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		zap.S().Debugf("parse redis url fail: %+v", err)
		return nil, err
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeoutSeconds > 0 {
		opts.DialTimeout = time.Duration(cfg.DialTimeoutSeconds) * time.Second
	}
	if cfg.ReadTimeoutSeconds > 0 {
		opts.ReadTimeout = time.Duration(cfg.ReadTimeoutSeconds) * time.Second
	}
	if cfg.WriteTimeoutSeconds > 0 {
		opts.WriteTimeout = time.Duration(cfg.WriteTimeoutSeconds) * time.Second
	}

	client := redis.NewClient(opts)
	if cmd := client.Ping(context.Background()); cmd.Err() != nil {
		return nil, cmd.Err()
	}
	zap.S().Debug("connect to redis successful")
	return client, nil
}

// RedisFillWriter appends fills to a Redis stream: an append-only
// time-series keyed by server-assigned stream IDs.
type RedisFillWriter struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisFillWriter(client *redis.Client, stream string, maxLen int64) *RedisFillWriter {
	if stream == "" {
		stream = "prism:fills"
	}
	return &RedisFillWriter{client: client, stream: stream, maxLen: maxLen}
}

func (w *RedisFillWriter) Append(ctx context.Context, rec FillRecord) error {
	args := &redis.XAddArgs{
		Stream: w.stream,
		Values: map[string]interface{}{
			"symbol":        rec.Symbol,
			"price":         strconv.FormatFloat(rec.Price, 'f', -1, 64),
			"quantity":      strconv.FormatFloat(rec.Quantity, 'f', -1, 64),
			"buy_order_id":  rec.BuyOrderID,
			"sell_order_id": rec.SellOrderID,
			"timestamp_ns":  strconv.FormatInt(rec.TimestampNs, 10),
		},
	}
	if w.maxLen > 0 {
		args.MaxLen = w.maxLen
		args.Approx = true
	}
	return w.client.XAdd(ctx, args).Err()
}
