package audience

type scoreGate struct {
	threshold float64
}

// NewScoreGate creates a filter dropping interests whose score is strictly
// below the threshold. An interest scoring exactly the threshold stays.
func NewScoreGate(threshold float64) Filter {
	return &scoreGate{threshold: threshold}
}

func (g *scoreGate) Name() string { return "score_gate" }

func (g *scoreGate) Apply(s *Structure) Step {
	initial := s.CountInterests()

	for ti := range s.Themes {
		for si := range s.Themes[ti].Sections {
			section := &s.Themes[ti].Sections[si]
			kept := section.Interests[:0]
			for _, interest := range section.Interests {
				if interest.Score >= g.threshold {
					kept = append(kept, interest)
				}
			}
			section.Interests = kept
		}
	}

	left := s.CountInterests()
	return Step{Initial: initial, Dropped: initial - left, Left: left}
}

type duplicateGate struct {
	// seen accumulates every interest accepted anywhere in the audience
	// during this run. It is owned by the gate instance and never shared
	// across runs.
	seen []Interest
}

// NewDuplicateGate creates a filter removing cross-theme duplicates with a
// greedy forward pass: the first occurrence in theme/section/interest
// order wins and is never revisited.
func NewDuplicateGate() Filter {
	return &duplicateGate{}
}

func (g *duplicateGate) Name() string { return "duplicate_gate" }

func (g *duplicateGate) Apply(s *Structure) Step {
	initial := s.CountInterests()

	for ti := range s.Themes {
		for si := range s.Themes[ti].Sections {
			section := &s.Themes[ti].Sections[si]
			kept := section.Interests[:0]
			for _, interest := range section.Interests {
				if g.accepted(interest) {
					continue
				}
				g.seen = append(g.seen, interest)
				kept = append(kept, interest)
			}
			section.Interests = kept
		}
	}

	left := s.CountInterests()
	return Step{Initial: initial, Dropped: initial - left, Left: left}
}

func (g *duplicateGate) accepted(interest Interest) bool {
	for _, existing := range g.seen {
		if duplicates(interest, existing) {
			return true
		}
	}
	return false
}

type prune struct{}

// NewPrune creates a filter removing sections with no interests left and
// themes with no sections left, so empty clauses are never rendered.
func NewPrune() Filter {
	return &prune{}
}

func (p *prune) Name() string { return "prune_empty" }

func (p *prune) Apply(s *Structure) Step {
	initial := s.CountInterests()

	themes := s.Themes[:0]
	for _, theme := range s.Themes {
		sections := theme.Sections[:0]
		for _, section := range theme.Sections {
			if len(section.Interests) > 0 {
				sections = append(sections, section)
			}
		}
		theme.Sections = sections
		if len(theme.Sections) > 0 {
			themes = append(themes, theme)
		}
	}
	s.Themes = themes

	left := s.CountInterests()
	return Step{Initial: initial, Dropped: initial - left, Left: left}
}
