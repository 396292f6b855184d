package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/b3-pregao/internal/config"
)

func TestOptions(t *testing.T) {
	opt, err := Options(&config.Config{RedisURL: "redis://:segredo@cache:6380/2"})
	require.NoError(t, err)

	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "segredo", opt.Password)
	assert.Equal(t, 2, opt.DB)
	assert.Equal(t, 10, opt.PoolSize)
}

func TestOptions_InvalidURL(t *testing.T) {
	_, err := Options(&config.Config{RedisURL: "http://localhost"})
	assert.Error(t, err)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := NewRedisCache(&config.Config{RedisURL: "redis://127.0.0.1:1/0"})
	assert.Error(t, err)
}
