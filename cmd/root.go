package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "audiencer"
)

type Config struct {
	UserAgent  string            `mapstructure:"user-agent"`
	Generation *GenerationConfig `mapstructure:"generation"`
	Vocabulary *VocabularyConfig `mapstructure:"vocabulary"`
	Resolve    *ResolveConfig    `mapstructure:"resolve"`
}

type GenerationConfig struct {
	Provider   string        `mapstructure:"provider"`
	PromptFile string        `mapstructure:"prompt-file"`
	Gemini     *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type VocabularyConfig struct {
	TokenFile         string  `mapstructure:"token-file"`
	APIURL            string  `mapstructure:"api-url"`
	RequestsPerSecond float64 `mapstructure:"requests-per-second"`
}

type ResolveConfig struct {
	Retry       bool          `mapstructure:"retry"`
	MaxAttempts int           `mapstructure:"max-attempts"`
	MinScore    float64       `mapstructure:"min-score"`
	Parallelism int           `mapstructure:"parallelism"`
	RetryDelay  time.Duration `mapstructure:"retry-delay"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "audiencer turns a free-text audience description into a validated targeting specification",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("vocabulary.token-file", "META_TOKEN_FILE"); err != nil {
		log.Fatalf("binding META_TOKEN_FILE environment variable: %v", err)
	}

	if err := viper.BindEnv("generation.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is audiencer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Secrets can arrive via environment variables, so a missing
		// default config file is fine. A broken one is not.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
