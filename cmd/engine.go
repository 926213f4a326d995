package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/ai/gemini"
	"github.com/spigell/love-machine/internal/dialogue"
	"github.com/spigell/love-machine/internal/filtering"
	"github.com/spigell/love-machine/internal/lexis"
	"github.com/spigell/love-machine/internal/metrics"
	"github.com/spigell/love-machine/internal/secrets"
	"github.com/spigell/love-machine/internal/storage"
	"github.com/spigell/love-machine/internal/storage/badgerstore"
	"github.com/spigell/love-machine/internal/storage/postgres"
	"github.com/spigell/love-machine/internal/vk"
)

const (
	driverPostgres = "postgres"
	driverBadger   = "badger"
)

// newVKClient loads the tokens and builds the API client with the command
// keyboard attached.
func newVKClient(cfg *VKConfig, logger *zap.Logger) (*vk.Client, error) {
	groupToken, err := secrets.Load(secrets.Source{
		Name: "vk group token",
		File: cfg.GroupTokenFile,
		Env:  "VK_GROUP_TOKEN",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set vk.group-token-file or VK_GROUP_TOKEN_FILE)", err)
	}

	userToken, err := secrets.Load(secrets.Source{
		Name: "vk user token",
		File: cfg.UserTokenFile,
		Env:  "VK_USER_TOKEN",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set vk.user-token-file or VK_USER_TOKEN_FILE)", err)
	}

	client := vk.New(logger.With(zap.String("component", "vk")), vk.Options{
		GroupID:    cfg.GroupID,
		GroupToken: groupToken,
		UserToken:  userToken,
		APIVersion: cfg.APIVersion,
		MaxRetries: cfg.MaxRetries,
	})
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	client.Keyboard = vk.NewKeyboard(dialogue.KeyboardLayout()...)

	return client, nil
}

func openStore(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (storage.Store, error) {
	logger = logger.With(zap.String("component", "storage"))

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case driverPostgres, "":
		if cfg.PostgresURL == "" {
			return nil, errors.New("postgres url is not configured (set storage.postgres-url or POSTGRES_URL)")
		}

		store, err := postgres.New(ctx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, err
		}

		if cfg.Migrate {
			if err := store.Migrate(ctx); err != nil {
				store.Close()
				return nil, err
			}
		}
		return store, nil
	case driverBadger:
		return badgerstore.New(badgerstore.Options{
			Dir:      cfg.BadgerDir,
			InMemory: cfg.BadgerDir == "",
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// newCanonicalizer returns the interest analyzer. Gemini tagging is used when
// enabled; any setup failure falls back to the rule tagger.
func newCanonicalizer(ctx context.Context, cfg *AIConfig, logger *zap.Logger) *lexis.Analyzer {
	if !cfg.Enabled {
		return lexis.New(nil, logger)
	}

	tagger, err := newAITagger(ctx, cfg, logger)
	if err != nil {
		logger.Warn("skipping AI tagging", zap.Error(err))
		return lexis.New(nil, logger)
	}

	return lexis.New(tagger, logger)
}

func newAITagger(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (lexis.Tagger, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewTagger(generator, cfg.Gemini.MaxLogLength, genLogger), nil
}

func dialogueConfig(config *Config) dialogue.Config {
	return dialogue.Config{
		CacheThreshold:       config.Search.CacheThreshold,
		BatchSize:            config.Session.BatchSize,
		MinMedia:             config.Search.MinMedia,
		MaxResults:           config.Search.MaxResults,
		MaxConcurrentFetches: config.Search.MaxConcurrentFetches,
		IdleTimeout:          config.Session.IdleTimeout,
	}
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newFilters builds the search result filter chain with the configured
// filters switched off.
func newFilters(disabled []string, logger *zap.Logger) ([]filtering.Filter, error) {
	steps := filtering.Default()
	for _, name := range disabled {
		if !filtering.DisableByName(steps, name, "disabled in config") {
			return nil, fmt.Errorf("unknown filter %q", name)
		}
	}

	for _, status := range filtering.Describe(steps) {
		logger.Info("search filter",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
		)
	}
	return steps, nil
}

// newService wires the engine around the given outbox. The VK client serves
// as profile lookup and external search.
func newService(ctx context.Context, config *Config, client *vk.Client, outbox dialogue.Outbox, store storage.Store, reg prometheus.Registerer, logger *zap.Logger) (*dialogue.Service, error) {
	filters, err := newFilters(config.Search.DisabledFilters, logger)
	if err != nil {
		return nil, err
	}

	return dialogue.New(dialogueConfig(config), dialogue.Deps{
		Outbox:        outbox,
		Profiles:      client,
		Searcher:      client,
		Canonicalizer: newCanonicalizer(ctx, config.AI, logger),
		Store:         store,
		Filters:       filters,
		Metrics:       metrics.New(reg),
		Logger:        logger.With(zap.String("component", "dialogue")),
	}), nil
}
