package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/sentinel-advisor/pkg/options/redis"
)

func TestNew_NilOptions(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.Error(t, err)
}

func TestNew_Unreachable(t *testing.T) {
	opts := options.NewOptions()
	opts.Port = 1
	opts.DialTimeout = 200 * time.Millisecond
	opts.MaxRetries = 0

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := New(ctx, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestNew_Local(t *testing.T) {
	opts := options.NewOptions()
	opts.DialTimeout = 300 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := New(ctx, opts)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer func() { _ = c.Close() }()

	assert.Equal(t, "redis", c.Name())
	require.NoError(t, c.Health(context.Background()))
	require.NoError(t, c.Client().Set(ctx, "advisor:test", "1", time.Second).Err())
}
