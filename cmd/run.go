package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/audiencer/audiencer/internal/ai"
	"github.com/audiencer/audiencer/internal/ai/gemini"
	"github.com/audiencer/audiencer/internal/logger"
	"github.com/audiencer/audiencer/internal/pipeline"
	"github.com/audiencer/audiencer/internal/resolver"
	"github.com/audiencer/audiencer/internal/secrets"
	"github.com/audiencer/audiencer/internal/vocabulary"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptShowRaw    = "Show raw model output"
	PromptDumpToFile = "Dump result to file"
	PromptExit       = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowRaw, PromptDumpToFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run [description]",
	Short: "Resolve an audience description into a targeting specification",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("yes", "y", false, "print the result and exit without the interactive prompt")
	runCmd.Flags().Bool("retry", false, "regenerate criteria when nothing resolves")
	runCmd.Flags().Int("max-attempts", 0, "attempt budget for regeneration (1-5)")
	runCmd.Flags().StringP("model", "m", "", "generation model override")
	runCmd.Flags().StringP("prompt-file", "p", "", "criteria prompt template file")

	viper.BindPFlag("resolve.retry", runCmd.Flags().Lookup("retry"))
	viper.BindPFlag("resolve.max-attempts", runCmd.Flags().Lookup("max-attempts"))
	viper.BindPFlag("generation.prompt-file", runCmd.Flags().Lookup("prompt-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		config = &Config{}
	}

	logger.Info("starting the audiencer", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	token, err := resolveToken(config)
	if err != nil {
		logger.Fatal(
			"loading vocabulary access token",
			zap.Error(err),
			zap.String("hint", "set META_TOKEN_FILE environment variable or the 'vocabulary.token-file' key in the configuration file"),
		)
	}

	vocab := newVocabularyClient(config, logger, token)

	generator, err := newGenerator(ctx, config.Generation, logger)
	if err != nil {
		logger.Fatal("building criteria generator", zap.Error(err))
	}

	matcher := resolver.New(vocab, generator, logger)

	orchestrator := pipeline.New(generator, matcher, logger, pipelineOptions(config.Resolve)...)

	req, err := buildRequest(cmd, config, strings.Join(args, " "))
	if err != nil {
		logger.Fatal("building pipeline request", zap.Error(err))
	}

	result, err := orchestrator.Run(ctx, req)
	if err != nil {
		logger.Fatal("pipeline failed", zap.Error(err))
	}

	logger.Info("resolution finished",
		zap.String("run_id", result.RunID),
		zap.Int("themes", len(result.Structure.Themes)),
		zap.Int("interests", result.Structure.CountInterests()),
		zap.Float64("generation_seconds", result.Timings.Generation),
		zap.Float64("resolution_seconds", result.Timings.Resolution),
		zap.Float64("filtering_seconds", result.Timings.Filtering),
		zap.Float64("total_seconds", result.Timings.Total),
	)

	fmt.Println(result.Text)

	if cmd.Flag("yes").Value.String() == "true" {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, result, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, result *pipeline.Result, logger *zap.Logger) error {
	switch action {
	case PromptShowRaw:
		if result.RawGeneratorOutput == "" {
			logger.Info("no raw model output captured for this run")
			return nil
		}
		fmt.Println(result.RawGeneratorOutput)
		return nil
	case PromptDumpToFile:
		filename, err := result.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func resolveToken(config *Config) (string, error) {
	tokenFile := strings.TrimSpace(viper.GetString("vocabulary.token-file"))
	if config.Vocabulary != nil && strings.TrimSpace(config.Vocabulary.TokenFile) != "" {
		tokenFile = strings.TrimSpace(config.Vocabulary.TokenFile)
	}

	return secrets.Load(secrets.Source{
		Name: "vocabulary access token",
		File: tokenFile,
		Env:  "META_ACCESS_TOKEN",
	})
}

func newVocabularyClient(config *Config, logger *zap.Logger, token string) *vocabulary.Client {
	rps := 0.0
	if config.Vocabulary != nil {
		rps = config.Vocabulary.RequestsPerSecond
	}

	vocab := vocabulary.New(logger, token, rps)

	if config.UserAgent != "" {
		vocab.UserAgent = config.UserAgent
	}
	if config.Vocabulary != nil && config.Vocabulary.APIURL != "" {
		vocab.APIURL = config.Vocabulary.APIURL
	}

	return vocab
}

func newGenerator(ctx context.Context, cfg *GenerationConfig, log *zap.Logger) (ai.Generator, error) {
	if cfg == nil {
		cfg = &GenerationConfig{}
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported generation provider: %s", cfg.Provider)
	}

	gcfg := cfg.Gemini
	if gcfg == nil {
		gcfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: strings.TrimSpace(viper.GetString("generation.gemini.api-key-file")),
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set generation.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.WithGenerationFields(log, "gemini", gcfg.Model)

	return gemini.NewGenerator(ctx, apiKey, gcfg.Model, gcfg.MaxRetries, gcfg.MaxLogLength, genLogger)
}

func pipelineOptions(cfg *ResolveConfig) []pipeline.Option {
	if cfg == nil {
		return nil
	}

	opts := make([]pipeline.Option, 0)
	if cfg.MinScore > 0 {
		opts = append(opts, pipeline.WithScoreThreshold(cfg.MinScore))
	}
	if cfg.Parallelism > 0 {
		opts = append(opts, pipeline.WithParallelism(cfg.Parallelism))
	}
	if cfg.RetryDelay > 0 {
		opts = append(opts, pipeline.WithRetryDelay(cfg.RetryDelay))
	}

	return opts
}

func buildRequest(cmd *cobra.Command, config *Config, description string) (pipeline.Request, error) {
	req := pipeline.Request{
		Description: description,
		Model:       cmd.Flag("model").Value.String(),
		Retry:       viper.GetBool("resolve.retry"),
		MaxAttempts: viper.GetInt("resolve.max-attempts"),
	}

	if req.Model == "" && config.Generation != nil && config.Generation.Gemini != nil {
		req.Model = config.Generation.Gemini.Model
	}

	promptFile := strings.TrimSpace(viper.GetString("generation.prompt-file"))
	if promptFile != "" {
		template, err := os.ReadFile(promptFile)
		if err != nil {
			return req, fmt.Errorf("reading prompt template: %w", err)
		}
		req.PromptTemplate = string(template)
	}

	return req, nil
}
