package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/logger"
	"github.com/spigell/love-machine/internal/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the postgres schema",
	Run: func(_ *cobra.Command, _ []string) {
		migrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrate() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config.Storage.PostgresURL == "" {
		logger.Fatal("postgres url is required", zap.String("hint", "set POSTGRES_URL or storage.postgres-url"))
	}

	store, err := postgres.New(ctx, config.Storage.PostgresURL, logger)
	if err != nil {
		logger.Fatal("connecting to postgres", zap.Error(err))
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("applying migrations", zap.Error(err))
	}

	logger.Info("schema is up to date")
}
