package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"github.com/audiencer/audiencer/internal/ai"
	"github.com/audiencer/audiencer/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel        = "gemini-2.5-flash"
	defaultMaxLogLength = 200
	retryBaseDelay      = 2 * time.Second
)

//go:embed criteria_prompt.md
var criteriaPromptTemplate string

//go:embed alternatives_prompt.md
var alternativesPromptTemplate string

// sleep is swapped out in tests.
var sleep = time.Sleep

// contentCaller is the slice of the genai client the generator needs.
// *genai.Models satisfies it.
type contentCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator implements ai.Generator on top of the Gemini API.
type Generator struct {
	models     contentCaller
	model      string
	maxRetries int
	maxLogLen  int
	logger     *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries, maxLogLength int, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Generator{
		models:     client.Models,
		model:      model,
		maxRetries: maxRetries,
		maxLogLen:  maxLogLength,
		logger:     log,
	}, nil
}

// GenerateCriteria asks Gemini to translate the audience description into
// the themed criteria JSON.
func (g *Generator) GenerateCriteria(ctx context.Context, req ai.GenerationRequest) (string, error) {
	template := strings.TrimSpace(req.PromptTemplate)
	if template == "" {
		template = criteriaPromptTemplate
	}

	prompt := strings.ReplaceAll(template, "{{DESCRIPTION}}", req.Description)

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = g.model
	}

	return g.generate(ctx, model, prompt)
}

// GenerateAlternatives asks Gemini for up to three alternative phrasings
// of a candidate interest that had no vocabulary match.
func (g *Generator) GenerateAlternatives(ctx context.Context, candidate, contextHint string) ([]string, error) {
	prompt := strings.ReplaceAll(alternativesPromptTemplate, "{{CRITERION}}", candidate)
	prompt = strings.ReplaceAll(prompt, "{{CONTEXT}}", contextHint)

	raw, err := g.generate(ctx, g.model, prompt)
	if err != nil {
		return nil, err
	}

	return parseAlternatives(raw), nil
}

// Model returns the configured default model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Generator) generate(ctx context.Context, model, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	g.logger.Debug("gemini generate content request",
		zap.String("model", model),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, g.maxLogLen)),
	)

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		resp, err := g.models.GenerateContent(ctx, model, genai.Text(prompt), config)
		if err == nil {
			output := collectText(resp)
			if output == "" {
				return "", errors.New("gemini api returned empty response")
			}

			g.logger.Debug("gemini generate content response",
				zap.Int("response_length", utf8.RuneCountInString(output)),
				zap.String("response_preview", logger.TruncateForLog(output, g.maxLogLen)),
			)

			return output, nil
		}

		lastErr = err
		if !isTemporary(err) || attempt == g.maxRetries {
			break
		}

		g.logger.Warn("gemini call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", g.maxRetries),
			zap.Error(err),
		)
		sleep(time.Duration(attempt) * retryBaseDelay)
	}

	return "", fmt.Errorf("generate content: %w", lastErr)
}

// isTemporary reports whether the API error is worth retrying.
func isTemporary(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == 429 || apiErr.Code >= 500
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}
