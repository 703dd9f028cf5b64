package resolver

import (
	"context"
	"strings"

	"github.com/audiencer/audiencer/internal/audience"
	"github.com/audiencer/audiencer/internal/vocabulary"
	"go.uber.org/zap"
)

const (
	// defaultHeuristicFloor is the lowest score assigned to a non-exact
	// best match. The vocabulary's own ranking is trusted as a relevance
	// proxy, so the first-ranked suggestion must be able to pass the
	// confidence gate even when its name diverges from the candidate.
	defaultHeuristicFloor = 0.75

	defaultMaxAlternatives = 3
)

// Lookup is the vocabulary search surface the resolver depends on.
type Lookup interface {
	Search(ctx context.Context, query string) ([]vocabulary.Suggestion, error)
}

// AlternativesGenerator supplies alternative phrasings for candidates with
// no vocabulary match.
type AlternativesGenerator interface {
	GenerateAlternatives(ctx context.Context, candidate, contextHint string) ([]string, error)
}

// Resolver matches one candidate interest string against the controlled
// vocabulary, falling back to generator-proposed alternative phrasings.
type Resolver struct {
	lookup          Lookup
	alternatives    AlternativesGenerator
	logger          *zap.Logger
	maxAlternatives int
	heuristicFloor  float64
}

// New creates a Resolver. The alternatives generator may be nil, in which
// case candidates without suggestions are simply dropped.
func New(lookup Lookup, alternatives AlternativesGenerator, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		lookup:          lookup,
		alternatives:    alternatives,
		logger:          logger,
		maxAlternatives: defaultMaxAlternatives,
		heuristicFloor:  defaultHeuristicFloor,
	}
}

// Resolve matches the candidate against the vocabulary and returns nil on
// a total miss. Transport failures on either collaborator degrade to a
// miss for this one candidate; they never abort the caller's run.
func (r *Resolver) Resolve(ctx context.Context, candidate, contextHint string) *audience.Interest {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil
	}

	match, hadSuggestions := r.match(ctx, candidate)
	if match != nil {
		return match
	}

	// Alternatives are only worth asking for when the vocabulary had
	// nothing at all for the original phrasing.
	if hadSuggestions || r.alternatives == nil {
		return nil
	}

	alts, err := r.alternatives.GenerateAlternatives(ctx, candidate, contextHint)
	if err != nil {
		r.logger.Warn("alternative generation failed",
			zap.String("candidate", candidate),
			zap.Error(err),
		)
		return nil
	}

	if len(alts) > r.maxAlternatives {
		alts = alts[:r.maxAlternatives]
	}

	for _, alt := range alts {
		match, _ := r.match(ctx, alt)
		if match != nil {
			// Provenance: the audience keeps the candidate the generator
			// originally proposed, not the alternative phrasing.
			match.Original = candidate
			r.logger.Debug("candidate resolved via alternative",
				zap.String("candidate", candidate),
				zap.String("alternative", alt),
				zap.String("matched", match.Name),
			)
			return match
		}
	}

	r.logger.Debug("candidate dropped, no vocabulary match",
		zap.String("candidate", candidate),
		zap.Int("alternatives_tried", len(alts)),
	)

	return nil
}

// match runs one lookup and picks the best suggestion. The second return
// reports whether the vocabulary returned any suggestions at all.
func (r *Resolver) match(ctx context.Context, query string) (*audience.Interest, bool) {
	suggestions, err := r.lookup.Search(ctx, query)
	if err != nil {
		r.logger.Warn("vocabulary lookup failed",
			zap.String("query", query),
			zap.Error(err),
		)
		return nil, false
	}

	if len(suggestions) == 0 {
		return nil, false
	}

	for _, suggestion := range suggestions {
		if strings.EqualFold(suggestion.Name, query) {
			return interestFrom(query, suggestion, 1), true
		}
	}

	// No exact name match: trust the vocabulary's first-ranked entry and
	// score it by textual similarity, floored so it survives the gate.
	best := suggestions[0]
	score := Similarity(query, best.Name)
	if score < r.heuristicFloor {
		score = r.heuristicFloor
	}

	return interestFrom(query, best, score), true
}

func interestFrom(original string, s vocabulary.Suggestion, score float64) *audience.Interest {
	return &audience.Interest{
		Original:               original,
		Name:                   s.Name,
		ID:                     s.ID,
		Score:                  score,
		Path:                   s.Path,
		Topic:                  s.Topic,
		AudienceSizeLowerBound: s.AudienceSizeLowerBound,
		AudienceSizeUpperBound: s.AudienceSizeUpperBound,
	}
}
