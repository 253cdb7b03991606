package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var c ProjectOptions = Noop{}

	require.NoError(t, c.Set(ctx, 0, nil))
	options, _, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, options)
	require.NoError(t, c.Invalidate(ctx))
}

func TestRedisOptions_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewRedisOptions(client, time.Minute)
	ctx := context.Background()

	_, _, ok, err := c.Get(ctx)
	require.Error(t, err)
	require.False(t, ok)

	require.Error(t, c.Invalidate(ctx))
}

func TestNewRedisClient_FailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}

func TestDecodeOptions(t *testing.T) {
	payload := `{"generation":3,"options":[{"id":1,"name":"alpha"}]}`

	options, generation, ok, err := decodeOptions([]interface{}{payload, "3"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(3), generation)
	require.Len(t, options, 1)
	require.Equal(t, "alpha", *options[0].Name)

	// Options stored before the last invalidation are a miss
	options, generation, ok, err = decodeOptions([]interface{}{payload, "4"})
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, options)
	require.Equal(t, int64(4), generation)

	// No generation key yet means generation zero
	_, generation, ok, err = decodeOptions([]interface{}{`{"generation":0,"options":null}`, nil})
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, generation)

	_, generation, ok, err = decodeOptions([]interface{}{nil, "7"})
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int64(7), generation)

	_, _, _, err = decodeOptions([]interface{}{"{", "1"})
	require.Error(t, err)

	_, _, _, err = decodeOptions([]interface{}{nil, "x"})
	require.Error(t, err)
}
