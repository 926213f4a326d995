package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "love-machine"
)

type Config struct {
	VK      *VKConfig      `mapstructure:"vk"`
	Storage *StorageConfig `mapstructure:"storage"`
	Search  *SearchConfig  `mapstructure:"search"`
	Session *SessionConfig `mapstructure:"session"`
	AI      *AIConfig      `mapstructure:"ai"`
	HTTP    *HTTPConfig    `mapstructure:"http"`
}

type VKConfig struct {
	GroupID        int64  `mapstructure:"group-id"`
	GroupTokenFile string `mapstructure:"group-token-file"`
	UserTokenFile  string `mapstructure:"user-token-file"`
	APIVersion     string `mapstructure:"api-version"`
	MaxRetries     int    `mapstructure:"max-retries"`
	UserAgent      string `mapstructure:"user-agent"`
}

type StorageConfig struct {
	// Driver is postgres or badger.
	Driver      string `mapstructure:"driver"`
	PostgresURL string `mapstructure:"postgres-url"`
	// Migrate applies the schema on start.
	Migrate   bool   `mapstructure:"migrate"`
	BadgerDir string `mapstructure:"badger-dir"`
}

type SearchConfig struct {
	CacheThreshold       int `mapstructure:"cache-threshold"`
	MaxResults           int `mapstructure:"max-results"`
	MaxConcurrentFetches int `mapstructure:"max-concurrent-fetches"`
	MinMedia             int `mapstructure:"min-media"`
	// DisabledFilters names search result filters to skip.
	DisabledFilters []string `mapstructure:"disabled-filters"`
}

type SessionConfig struct {
	BatchSize   int           `mapstructure:"batch-size"`
	IdleTimeout time.Duration `mapstructure:"idle-timeout"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type HTTPConfig struct {
	// Addr of the ops endpoint. Empty disables it.
	Addr string `mapstructure:"addr"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "love-machine is a VK community bot that finds people with matching interests",
	}

	envBindings = map[string]string{
		"vk.group-token-file":    "VK_GROUP_TOKEN_FILE",
		"vk.user-token-file":     "VK_USER_TOKEN_FILE",
		"storage.postgres-url":   "POSTGRES_URL",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("storage.driver", "postgres")
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("http.addr", ":9090")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is love-machine.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// The config file is optional unless it was given explicitly: every
	// setting can come from the environment.
	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && (cfgFile != "" || !errors.As(err, &notFound)) {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	if config.VK == nil {
		config.VK = &VKConfig{}
	}
	if config.Storage == nil {
		config.Storage = &StorageConfig{}
	}
	if config.Search == nil {
		config.Search = &SearchConfig{}
	}
	if config.Session == nil {
		config.Session = &SessionConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.HTTP == nil {
		config.HTTP = &HTTPConfig{}
	}

	return config, nil
}
