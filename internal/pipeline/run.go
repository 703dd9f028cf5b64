package pipeline

import (
	"context"
	"time"

	"github.com/audiencer/audiencer/internal/ai"
	"github.com/audiencer/audiencer/internal/audience"
	"github.com/audiencer/audiencer/internal/criteria"
	"github.com/audiencer/audiencer/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// run holds the mutable state of one pipeline execution. The attempts
// budget is an exhaustible resource: every generation call consumes one.
type run struct {
	orchestrator *Orchestrator
	req          Request
	logger       *zap.Logger
	attemptsLeft int

	criteria *criteria.Criteria
	resolved []audience.Theme
	result   *Result
}

// extract performs one generation call and parses its output. Generation
// failures degrade to empty criteria; the attempt is spent either way.
func (r *run) extract(ctx context.Context) {
	r.attemptsLeft--

	started := time.Now()
	raw, err := r.orchestrator.generator.GenerateCriteria(ctx, ai.GenerationRequest{
		Description:    r.req.Description,
		PromptTemplate: r.req.PromptTemplate,
		Model:          r.req.Model,
	})
	r.result.Timings.Generation += time.Since(started).Seconds()

	if err != nil {
		r.logger.Warn("criteria generation failed", zap.Error(err))
		raw = ""
	}

	r.result.RawGeneratorOutput = raw
	r.criteria = criteria.Extract(raw)
	r.result.Criteria = r.criteria
	r.result.Fields = r.criteria.Fields

	r.logger.Info("criteria extracted",
		zap.Int("themes", len(r.criteria.Themes)),
		zap.Int("candidates", r.criteria.CountInterests()),
	)
}

// resolve matches every candidate against the vocabulary. Candidates are
// resolved concurrently up to the configured limit, but results land in
// their original slots so the extraction order survives for the dedup pass.
func (r *run) resolve(ctx context.Context) {
	started := time.Now()
	defer func() {
		r.result.Timings.Resolution += time.Since(started).Seconds()
	}()

	hint := r.criteria.ContextHint()

	matches := make([][][]*audience.Interest, len(r.criteria.Themes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.orchestrator.parallelism)

	for ti, theme := range r.criteria.Themes {
		matches[ti] = make([][]*audience.Interest, len(theme.Sections))
		for si, section := range theme.Sections {
			matches[ti][si] = make([]*audience.Interest, len(section.Interests))
			for ii, candidate := range section.Interests {
				g.Go(func() error {
					matches[ti][si][ii] = r.orchestrator.resolver.Resolve(gctx, candidate, hint)
					return nil
				})
			}
		}
	}

	// Resolver calls never return errors; a failed lookup is a miss.
	_ = g.Wait()

	r.resolved = r.resolved[:0]
	for ti, theme := range r.criteria.Themes {
		resolvedTheme := audience.Theme{Name: theme.Name}
		for si, section := range theme.Sections {
			resolvedSection := audience.Section{Name: section.Name}
			for _, match := range matches[ti][si] {
				if match != nil {
					resolvedSection.Interests = append(resolvedSection.Interests, *match)
				}
			}
			if len(resolvedSection.Interests) > 0 {
				resolvedTheme.Sections = append(resolvedTheme.Sections, resolvedSection)
			}
		}
		if len(resolvedTheme.Sections) > 0 {
			r.resolved = append(r.resolved, resolvedTheme)
		}
	}

	r.result.Themes = r.resolved

	r.logger.Info("candidates resolved",
		zap.Int("candidates", r.criteria.CountInterests()),
		zap.Int("resolved", r.countResolved()),
	)
}

// gate runs the confidence and duplicate gates in strict extraction order.
func (r *run) gate() {
	started := time.Now()
	defer func() {
		r.result.Timings.Filtering += time.Since(started).Seconds()
	}()

	structure := &audience.Structure{
		Fields: r.criteria.Fields,
		Themes: cloneThemes(r.resolved),
	}

	audience.Run(r.logger, structure,
		audience.DefaultFilters(r.orchestrator.scoreThreshold)...)

	r.result.Structure = *structure
}

func (r *run) assemble() {
	assembled := audience.Assemble(r.result.Structure)
	r.result.Text = assembled.Text
	r.result.Structure = assembled.Structure
}

// discard throws away the current extraction before a fresh attempt.
func (r *run) discard() {
	r.criteria = nil
	r.resolved = nil
	r.result.Themes = nil
}

func (r *run) waitBeforeRetry(ctx context.Context) error {
	return utils.WaitFor(ctx, r.orchestrator.retryDelay)
}

func (r *run) countResolved() int {
	count := 0
	for _, theme := range r.resolved {
		for _, section := range theme.Sections {
			count += len(section.Interests)
		}
	}
	return count
}

// cloneThemes copies the resolved themes so the gates can mutate the
// structure without touching the pre-gate view in the result.
func cloneThemes(themes []audience.Theme) []audience.Theme {
	out := make([]audience.Theme, len(themes))
	for i, theme := range themes {
		sections := make([]audience.Section, len(theme.Sections))
		for j, section := range theme.Sections {
			interests := make([]audience.Interest, len(section.Interests))
			copy(interests, section.Interests)
			sections[j] = audience.Section{Name: section.Name, Interests: interests}
		}
		out[i] = audience.Theme{Name: theme.Name, Sections: sections}
	}
	return out
}
