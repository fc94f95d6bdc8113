package repository

import (
	"context"
	"testing"
	"time"

	"farmrent/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr(), PoolSize: 2})
	defer client.Close()

	assert.NoError(t, Ping(context.Background(), client, time.Second))

	s.Close()
	assert.Error(t, Ping(context.Background(), client, 200*time.Millisecond))
}

func TestPing_NilClient(t *testing.T) {
	assert.Error(t, Ping(context.Background(), nil, time.Second))
}
