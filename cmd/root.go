package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/spigell/scoreit/internal/server"
	"github.com/spigell/scoreit/internal/store"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "scoreit"
	envPrefix = "SCOREIT"
)

type Config struct {
	Server     server.Config    `mapstructure:"server"`
	Model      ModelConfig      `mapstructure:"model"`
	Store      store.Config     `mapstructure:"store"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	AI         AIConfig         `mapstructure:"ai"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Redis      RedisConfig      `mapstructure:"redis"`
}

type ModelConfig struct {
	// Backend is "file" or "redis".
	Backend          string        `mapstructure:"backend"`
	Path             string        `mapstructure:"path"`
	RedisKey         string        `mapstructure:"redis-key"`
	LockTimeout      time.Duration `mapstructure:"lock-timeout"`
	LockTTL          time.Duration `mapstructure:"lock-ttl"`
	BootstrapSamples int           `mapstructure:"bootstrap-samples"`
	BootstrapSeed    int64         `mapstructure:"bootstrap-seed"`
	LearningRate     float64       `mapstructure:"learning-rate"`
	Iterations       int           `mapstructure:"iterations"`
	C                float64       `mapstructure:"c"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password-file"`
	DB           int    `mapstructure:"db"`
}

type EmbeddingsConfig struct {
	// Provider is one of fastembed, tei or gemini.
	Provider  string        `mapstructure:"provider"`
	Model     string        `mapstructure:"model"`
	CacheDir  string        `mapstructure:"cache-dir"`
	MaxLength int           `mapstructure:"max-length"`
	BaseURL   string        `mapstructure:"base-url"`
	Token     string        `mapstructure:"token"`
	TokenFile string        `mapstructure:"token-file"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Dimension int           `mapstructure:"dimension"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey            string `mapstructure:"api-key"`
	APIKeyFile        string `mapstructure:"api-key-file"`
	Model             string `mapstructure:"model"`
	EmbeddingModel    string `mapstructure:"embedding-model"`
	RequestsPerMinute int    `mapstructure:"requests-per-minute"`
	MaxRetries        int    `mapstructure:"max-retries"`
	MaxLogLength      int    `mapstructure:"max-log-length"`
}

type ExtractionConfig struct {
	// Vocabulary replaces the built-in skill list of the regex extractor.
	Vocabulary []string `mapstructure:"vocabulary"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "scoreit matches candidates to job descriptions and learns from recruiter feedback",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is scoreit.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allow-origins", []string{"*"})
	v.SetDefault("server.body-limit", "4M")

	v.SetDefault("model.backend", "file")
	v.SetDefault("model.path", "data/model.json")
	v.SetDefault("model.redis-key", "scoreit:model")
	v.SetDefault("model.lock-timeout", 30*time.Second)
	v.SetDefault("model.lock-ttl", 30*time.Second)
	v.SetDefault("model.bootstrap-samples", 100)
	v.SetDefault("model.bootstrap-seed", 42)

	v.SetDefault("store.backend", store.BackendChromem)
	v.SetDefault("store.chromem.path", "")
	v.SetDefault("store.mongo.uri", "")
	v.SetDefault("store.mongo.database", "candidates")
	v.SetDefault("store.mongo.collection", "resumes")
	v.SetDefault("store.mongo.index", "default")
	v.SetDefault("store.qdrant.host", "")
	v.SetDefault("store.qdrant.port", 6334)

	v.SetDefault("embeddings.provider", "fastembed")
	v.SetDefault("embeddings.model", "")
	v.SetDefault("embeddings.base-url", "")
	v.SetDefault("embeddings.timeout", 30*time.Second)

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
}

func initConfig() {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Defaults and environment are enough unless a file was asked for explicitly.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}
	return config, nil
}
