package audience

import (
	"go.uber.org/zap"
)

// DefaultScoreThreshold is the minimum confidence an interest needs to
// survive the score gate.
const DefaultScoreThreshold = 0.75

// Filter represents a single filtering step applied to the audience
// structure in place.
type Filter interface {
	Name() string
	Apply(s *Structure) Step
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Run executes the supplied filters sequentially, logging a summary per
// step. Filters mutate the structure in place and must be fresh instances
// for every run: the duplicate gate carries per-run accumulator state.
func Run(logger *zap.Logger, s *Structure, steps ...Filter) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		info := step.Apply(s)
		logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
	}
}

// DefaultFilters returns the standard gate chain: confidence gate,
// cross-theme duplicate gate, empty section/theme pruning.
func DefaultFilters(threshold float64) []Filter {
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}
	return []Filter{
		NewScoreGate(threshold),
		NewDuplicateGate(),
		NewPrune(),
	}
}
