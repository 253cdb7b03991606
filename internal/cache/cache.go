package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/autotest-engine/internal/models"
)

// ProjectOptionsKey is the redis key holding the cached project selector list
const ProjectOptionsKey = "autotest:project:options"

// ProjectOptionsGenerationKey counts invalidations of the options list
const ProjectOptionsGenerationKey = ProjectOptionsKey + ":generation"

// ProjectOptions caches the project selector list between writes.
// Every Invalidate starts a new generation, and options stored for an
// older generation are never returned.
type ProjectOptions interface {
	// Get returns the cached options, the current generation and whether
	// the options were present. The generation is valid on a miss too.
	Get(ctx context.Context) ([]models.ProjectSelector, int64, bool, error)
	// Set stores options that were read during generation
	Set(ctx context.Context, generation int64, options []models.ProjectSelector) error
	Invalidate(ctx context.Context) error
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// RedisOptions stores the options list as a JSON string with a TTL
type RedisOptions struct {
	client        redis.UniversalClient
	key           string
	generationKey string
	ttl           time.Duration
}

// storedOptions is the JSON payload kept under the options key
type storedOptions struct {
	Generation int64                    `json:"generation"`
	Options    []models.ProjectSelector `json:"options"`
}

// NewRedisOptions creates a redis-backed options cache
func NewRedisOptions(client redis.UniversalClient, ttl time.Duration) *RedisOptions {
	return &RedisOptions{
		client:        client,
		key:           ProjectOptionsKey,
		generationKey: ProjectOptionsGenerationKey,
		ttl:           ttl,
	}
}

// Get implements ProjectOptions
func (c *RedisOptions) Get(ctx context.Context) ([]models.ProjectSelector, int64, bool, error) {
	values, err := c.client.MGet(ctx, c.key, c.generationKey).Result()
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to read project options: %w", err)
	}

	options, generation, ok, err := decodeOptions(values)
	if err != nil {
		// A corrupt entry is treated as a miss and dropped
		slog.Warn("discarding unreadable project options cache", "error", err)
		c.client.Del(ctx, c.key)
		return nil, generation, false, nil
	}
	return options, generation, ok, nil
}

// decodeOptions interprets an MGET of the options and generation keys
func decodeOptions(values []interface{}) ([]models.ProjectSelector, int64, bool, error) {
	if len(values) != 2 {
		return nil, 0, false, fmt.Errorf("expected 2 values, got %d", len(values))
	}

	var generation int64
	if raw, ok := values[1].(string); ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, 0, false, fmt.Errorf("invalid generation %q: %w", raw, err)
		}
		generation = n
	}

	raw, ok := values[0].(string)
	if !ok {
		return nil, generation, false, nil
	}

	var stored storedOptions
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, generation, false, err
	}
	if stored.Generation != generation {
		return nil, generation, false, nil
	}
	if stored.Options == nil {
		stored.Options = []models.ProjectSelector{}
	}
	return stored.Options, generation, true, nil
}

// Set implements ProjectOptions
func (c *RedisOptions) Set(ctx context.Context, generation int64, options []models.ProjectSelector) error {
	if options == nil {
		options = []models.ProjectSelector{}
	}
	data, err := json.Marshal(storedOptions{Generation: generation, Options: options})
	if err != nil {
		return fmt.Errorf("failed to marshal project options: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache project options: %w", err)
	}
	return nil
}

// Invalidate implements ProjectOptions
func (c *RedisOptions) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.generationKey)
		pipe.Del(ctx, c.key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate project options: %w", err)
	}
	return nil
}

// Noop is used when redis is disabled. It never hits.
type Noop struct{}

func (Noop) Get(context.Context) ([]models.ProjectSelector, int64, bool, error) {
	return nil, 0, false, nil
}
func (Noop) Set(context.Context, int64, []models.ProjectSelector) error { return nil }
func (Noop) Invalidate(context.Context) error                           { return nil }

var (
	_ ProjectOptions = (*RedisOptions)(nil)
	_ ProjectOptions = Noop{}
)
