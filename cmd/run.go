package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/logger"
	"github.com/spigell/love-machine/internal/server"
	"github.com/spigell/love-machine/internal/vk"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot on the VK community long poll",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("http-addr", "a", "", "address of the ops endpoint (/livez, /healthz, /metrics). Empty string disables it.")
	runCmd.Flags().BoolP("migrate", "m", false, "apply the postgres schema before start")

	viper.BindPFlag("http.addr", runCmd.Flags().Lookup("http-addr"))
	viper.BindPFlag("storage.migrate", runCmd.Flags().Lookup("migrate"))
}

// run is the main command: it serves the community until SIGINT or SIGTERM.
func run(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the love-machine", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config.VK.GroupID == 0 {
		logger.Fatal("community id is required under vk.group-id")
	}

	client, err := newVKClient(config.VK, logger)
	if err != nil {
		logger.Fatal(
			"loading vk tokens",
			zap.Error(err),
			zap.String("hint", "set VK_GROUP_TOKEN_FILE and VK_USER_TOKEN_FILE environment variables or the vk section in the configuration file"),
		)
	}

	store, err := openStore(ctx, config.Storage, logger)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err), zap.String("driver", config.Storage.Driver))
	}
	defer store.Close()

	reg := newRegistry()
	svc, err := newService(ctx, config, client, client, store, reg, logger)
	if err != nil {
		logger.Fatal("building the dialogue", zap.Error(err))
	}

	if addr := config.HTTP.Addr; addr != "" {
		srv := server.New(server.Options{
			Addr:     addr,
			Gatherer: reg,
			Checks:   map[string]server.Pinger{"store": store},
			Logger:   logger.With(zap.String("component", "http")),
		})

		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("ops endpoint stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("listening for messages", zap.Int64("group_id", client.GroupID()))

	if err := svc.Run(ctx, vk.NewLongPoll(client)); err != nil {
		logger.Error("dialogue stopped", zap.Error(err))
	}

	logger.Info("exiting", zap.String("reason", "shutdown requested"))
}
