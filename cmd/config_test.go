package cmd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/love-machine/internal/filtering"
)

const sampleConfig = `
vk:
  group-id: 42
  group-token-file: /run/secrets/group
storage:
  driver: badger
search:
  cache-threshold: 5
  max-concurrent-fetches: 8
  disabled-filters: [closed]
session:
  batch-size: 3
  idle-timeout: 2m
`

func loadSample(t *testing.T) *Config {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	for key, env := range envBindings {
		require.NoError(t, viper.BindEnv(key, env))
	}
	viper.SetConfigType("yaml")
	require.NoError(t, viper.ReadConfig(strings.NewReader(sampleConfig)))

	config, err := getConfig()
	require.NoError(t, err)
	return config
}

func TestGetConfig(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://bot@localhost/love")

	config := loadSample(t)

	require.Equal(t, int64(42), config.VK.GroupID)
	require.Equal(t, "/run/secrets/group", config.VK.GroupTokenFile)
	require.Equal(t, "badger", config.Storage.Driver)
	require.Equal(t, "postgres://bot@localhost/love", config.Storage.PostgresURL)
	require.NotNil(t, config.AI.Gemini)
	require.NotNil(t, config.HTTP)

	engine := dialogueConfig(config)
	require.Equal(t, 5, engine.CacheThreshold)
	require.Equal(t, 8, engine.MaxConcurrentFetches)
	require.Equal(t, 3, engine.BatchSize)
	require.Equal(t, 2*time.Minute, engine.IdleTimeout)
	require.Equal(t, []string{"closed"}, config.Search.DisabledFilters)
}

func TestNewFiltersDisablesConfigured(t *testing.T) {
	steps, err := newFilters([]string{"closed", "decided"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	disabled := map[string]bool{}
	for _, status := range filtering.Describe(steps) {
		if !status.Enabled {
			disabled[status.Name] = true
			require.Equal(t, "disabled in config", status.Reason)
		}
	}
	require.Equal(t, map[string]bool{"closed": true, "decided": true}, disabled)

	_, err = newFilters([]string{"photos"}, zaptest.NewLogger(t))
	require.ErrorContains(t, err, `unknown filter "photos"`)
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	_, err := openStore(context.Background(), &StorageConfig{Driver: "mysql"}, zap.NewNop())
	require.ErrorContains(t, err, "unsupported storage driver")

	_, err = openStore(context.Background(), &StorageConfig{Driver: "postgres"}, zap.NewNop())
	require.ErrorContains(t, err, "postgres url is not configured")
}

func TestOpenStoreBadgerInMemory(t *testing.T) {
	store, err := openStore(context.Background(), &StorageConfig{Driver: "badger"}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
}

func TestNewVKClientRequiresTokens(t *testing.T) {
	t.Setenv("VK_GROUP_TOKEN", "")
	t.Setenv("VK_USER_TOKEN", "")

	_, err := newVKClient(&VKConfig{GroupID: 1}, zap.NewNop())
	require.ErrorContains(t, err, "vk group token is not configured")

	t.Setenv("VK_GROUP_TOKEN", "group")
	_, err = newVKClient(&VKConfig{GroupID: 1}, zap.NewNop())
	require.ErrorContains(t, err, "vk user token is not configured")

	t.Setenv("VK_USER_TOKEN", "user")
	client, err := newVKClient(&VKConfig{GroupID: 1}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client.Keyboard)
}

func TestCanonicalizerFallsBackToRules(t *testing.T) {
	canon := newCanonicalizer(context.Background(), &AIConfig{
		Enabled:  true,
		Provider: "openai",
		Gemini:   &GeminiConfig{},
	}, zap.NewNop())

	require.Equal(t, []string{"горы"}, canon.Canonicalize(context.Background(), "горы!"))
}
