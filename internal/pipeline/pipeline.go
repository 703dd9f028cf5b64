package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/audiencer/audiencer/internal/ai"
	"github.com/audiencer/audiencer/internal/audience"
	"github.com/audiencer/audiencer/internal/criteria"
	"github.com/audiencer/audiencer/internal/logger"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	// Attempt ceilings observed in practice; Run clamps into this range.
	minAttempts = 1
	maxAttempts = 5

	defaultParallelism = 4
)

// ErrMissingDescription is returned when Run is called without an
// audience description. It is the only fatal input error; everything
// downstream degrades instead of failing.
var ErrMissingDescription = errors.New("audience description is required")

// CandidateResolver matches a single candidate interest; nil means a miss.
type CandidateResolver interface {
	Resolve(ctx context.Context, candidate, contextHint string) *audience.Interest
}

// Request carries one resolution run's inputs. PromptTemplate and Model
// override the generator defaults when non-empty.
type Request struct {
	Description    string
	PromptTemplate string
	Model          string
	Retry          bool
	MaxAttempts    int
}

// Timings reports per-stage elapsed seconds. Observability only; nothing
// reads it back into control flow.
type Timings struct {
	Generation float64 `json:"generation"`
	Resolution float64 `json:"resolution"`
	Filtering  float64 `json:"filtering"`
	Total      float64 `json:"total"`
}

// Result is the terminal artifact of one run.
type Result struct {
	RunID              string             `json:"run_id"`
	Description        string             `json:"description"`
	Criteria           *criteria.Criteria `json:"criteria"`
	Fields             criteria.Fields    `json:"fields"`
	Themes             []audience.Theme   `json:"themes"`
	Text               string             `json:"text"`
	Structure          audience.Structure `json:"structure"`
	RawGeneratorOutput string             `json:"raw_generator_output"`
	Timings            Timings            `json:"timings"`
}

// DumpToTmpFile writes the result as indented JSON to a temporary file
// and returns its path.
func (r *Result) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "audience_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// Orchestrator sequences extraction, resolution, filtering and assembly,
// and owns the bounded top-level retry policy.
type Orchestrator struct {
	generator      ai.Generator
	resolver       CandidateResolver
	logger         *zap.Logger
	scoreThreshold float64
	parallelism    int
	retryDelay     time.Duration
}

// Option tweaks orchestrator behavior.
type Option func(*Orchestrator)

// WithScoreThreshold overrides the confidence gate threshold.
func WithScoreThreshold(threshold float64) Option {
	return func(o *Orchestrator) { o.scoreThreshold = threshold }
}

// WithParallelism bounds concurrent per-candidate resolver calls.
func WithParallelism(n int) Option {
	return func(o *Orchestrator) { o.parallelism = n }
}

// WithRetryDelay spaces out full pipeline retry attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.retryDelay = d }
}

// New creates an Orchestrator.
func New(generator ai.Generator, resolver CandidateResolver, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		generator:      generator,
		resolver:       resolver,
		logger:         logger,
		scoreThreshold: audience.DefaultScoreThreshold,
		parallelism:    defaultParallelism,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.parallelism < 1 {
		o.parallelism = 1
	}

	return o
}

// state is the orchestrator's position in one run.
type state int

const (
	stateExtract state = iota
	stateResolve
	stateGate
	stateAssemble
	stateDone
)

// Run executes one full resolution. An exhausted retry budget with zero
// matches is not an error: it yields the defined empty-audience result.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return nil, ErrMissingDescription
	}

	attempts := req.MaxAttempts
	if attempts < minAttempts {
		attempts = minAttempts
	}
	if attempts > maxAttempts {
		attempts = maxAttempts
	}
	if !req.Retry {
		attempts = 1
	}

	r := &run{
		orchestrator: o,
		req:          req,
		attemptsLeft: attempts,
		result: &Result{
			RunID:       ulid.Make().String(),
			Description: req.Description,
		},
	}
	r.logger = o.logger.With(zap.String(logger.FieldRunID, r.result.RunID))

	started := time.Now()
	for st := stateExtract; st != stateDone; {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch st {
		case stateExtract:
			r.extract(ctx)
			st = stateResolve
		case stateResolve:
			r.resolve(ctx)
			if r.countResolved() == 0 && r.attemptsLeft > 0 {
				r.logger.Info("no interests resolved, retrying with fresh criteria",
					zap.Int("attempts_left", r.attemptsLeft),
				)
				r.discard()
				if err := r.waitBeforeRetry(ctx); err != nil {
					return nil, err
				}
				st = stateExtract
				continue
			}
			st = stateGate
		case stateGate:
			r.gate()
			st = stateAssemble
		case stateAssemble:
			r.assemble()
			st = stateDone
		}
	}
	r.result.Timings.Total = time.Since(started).Seconds()

	r.logger.Info("pipeline finished",
		zap.Int("themes", len(r.result.Structure.Themes)),
		zap.Int("interests", r.result.Structure.CountInterests()),
		zap.Float64("total_seconds", r.result.Timings.Total),
	)

	return r.result, nil
}
