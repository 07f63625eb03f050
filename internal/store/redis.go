package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisScanBatch = 200

// RedisOptions configures the shared Redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis is a Store shared between hosts. Values are wrapped in a small JSON
// envelope so creation and expiry timestamps survive the round trip; Redis key
// expiry enforces the TTL itself.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

type redisEnvelope struct {
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("redis store: address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	return NewRedisWithClient(client, opts.Prefix), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

func (r *Redis) key(ns Namespace, key string) string {
	return r.prefix + string(ns) + ":" + key
}

func (r *Redis) Get(ctx context.Context, ns Namespace, key string) (Record, error) {
	if err := validKey(ns, key); err != nil {
		return Record{}, err
	}
	raw, err := r.client.Get(ctx, r.key(ns, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, notFound(ns, key)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s/%s: %w", ns, key, err)
	}
	rec, err := decodeEnvelope(ns, key, raw)
	if err != nil {
		return Record{}, err
	}
	if rec.Expired(r.now()) {
		return Record{}, notFound(ns, key)
	}
	return rec, nil
}

func (r *Redis) Put(ctx context.Context, ns Namespace, key string, value []byte, ttl time.Duration) error {
	if err := validKey(ns, key); err != nil {
		return err
	}
	now := r.now().UTC()
	payload, err := json.Marshal(redisEnvelope{Value: value, CreatedAt: now, ExpiresAt: expiry(now, ttl)})
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", ns, key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(ns, key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("put %s/%s: %w", ns, key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, ns Namespace, key string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(ns, key)).Result()
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", ns, key, err)
	}
	return n > 0, nil
}

func (r *Redis) List(ctx context.Context, ns Namespace) ([]Record, error) {
	keys, err := r.scan(ctx, ns)
	if err != nil {
		return nil, err
	}
	now := r.now()
	out := make([]Record, 0, len(keys))
	prefix := r.key(ns, "")
	for _, full := range keys {
		raw, err := r.client.Get(ctx, full).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", full, err)
		}
		rec, err := decodeEnvelope(ns, strings.TrimPrefix(full, prefix), raw)
		if err != nil {
			// Undecodable entries are listed raw.
			rec = Record{Namespace: ns, Key: strings.TrimPrefix(full, prefix), Value: raw}
		}
		if rec.Expired(now) {
			continue
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (r *Redis) Clear(ctx context.Context, ns Namespace) (int, error) {
	keys, err := r.scan(ctx, ns)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("clear %s: %w", ns, err)
	}
	return int(n), nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) scan(ctx context.Context, ns Namespace) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	match := r.key(ns, "*")
	for {
		batch, next, err := r.client.Scan(ctx, cursor, match, redisScanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", ns, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func decodeEnvelope(ns Namespace, key string, raw []byte) (Record, error) {
	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Record{}, fmt.Errorf("decode %s/%s: %w", ns, key, err)
	}
	return Record{
		Namespace: ns,
		Key:       key,
		Value:     env.Value,
		CreatedAt: env.CreatedAt,
		ExpiresAt: env.ExpiresAt,
	}, nil
}
