package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restroom-api/internal/config"
	"restroom-api/internal/logger"
	"restroom-api/internal/store"
	"restroom-api/internal/utils"
)

func TestBuild_MemoryBackend(t *testing.T) {
	cfg := config.Config{
		Store:         config.StoreMemory,
		CacheTTL:      time.Minute,
		CacheCapacity: 16,
		GeoIPPath:     filepath.Join(t.TempDir(), "missing.mmdb"),
	}
	a, err := Build(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, &store.Memory{}, a.Store)
	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.Records)
	assert.NotNil(t, a.Directions)
	assert.Nil(t, a.GeoIP)
	assert.Nil(t, a.Redis)
	assert.Same(t, a.Store, a.Pipeline.Store())
}

func TestClose_Idempotent(t *testing.T) {
	a, err := Build(context.Background(), config.Config{Store: config.StoreMemory}, logger.Nop())
	require.NoError(t, err)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestBuild_RedisTierFromConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{
		Store:      config.StoreMemory,
		CacheTTL:   time.Minute,
		RedisCache: true,
		Redis:      utils.RedisConfig{Addr: mr.Addr()},
	}
	a, err := Build(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NotNil(t, a.Redis)
	require.NoError(t, a.Redis.Ping(context.Background()).Err())

	cfg.Redis = utils.RedisConfig{}
	b, err := Build(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	assert.Nil(t, b.Redis)
}
