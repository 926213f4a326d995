package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/console"
	"github.com/spigell/love-machine/internal/dialogue"
	"github.com/spigell/love-machine/internal/logger"
	"github.com/spigell/love-machine/internal/storage/badgerstore"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the bot in the terminal as the given VK user",
	Run: func(cmd *cobra.Command, _ []string) {
		chat(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().Int64P("user-id", "u", 0, "VK id of the user to chat as")
	chatCmd.Flags().StringP("log-file", "l", app+"-chat.log", "file for the logs, the terminal is taken by the dialogue")

	chatCmd.MarkFlagRequired("user-id")
}

// chat runs the engine with a terminal feed and an in-memory store. The VK
// API is still used for profiles, search and photos.
func chat(cmd *cobra.Command) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logFile, _ := cmd.Flags().GetString("log-file")
	logger, err := logger.Build(logger.Options{
		JSON:   viper.GetBool("json"),
		Debug:  viper.GetBool("debug"),
		Output: logFile,
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	userID, _ := cmd.Flags().GetInt64("user-id")

	client, err := newVKClient(config.VK, logger)
	if err != nil {
		log.Fatalf("loading vk tokens: %s", err)
	}

	store, err := badgerstore.NewInMemory(logger.With(zap.String("component", "storage")))
	if err != nil {
		log.Fatalf("opening the store: %s", err)
	}
	defer store.Close()

	svc, err := newService(ctx, config, client, console.NewOutbox(os.Stdout), store, newRegistry(), logger)
	if err != nil {
		log.Fatalf("building the dialogue: %s", err)
	}
	feed := console.NewFeed(userID, &console.Menu{Buttons: dialogue.KeyboardLayout()}, cancel)

	logger.Info("starting a chat", zap.Int64("user_id", userID))

	if err := svc.Run(ctx, feed); err != nil {
		logger.Error("dialogue stopped", zap.Error(err))
	}
}
