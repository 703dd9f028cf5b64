package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/audiencer/audiencer/internal/ai"
	"github.com/audiencer/audiencer/internal/audience"
	"go.uber.org/zap"
)

type stubGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (s *stubGenerator) GenerateCriteria(_ context.Context, _ ai.GenerationRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func (s *stubGenerator) GenerateAlternatives(context.Context, string, string) ([]string, error) {
	return nil, nil
}

type stubResolver struct {
	matches map[string]*audience.Interest
	delays  map[string]time.Duration
}

func (s *stubResolver) Resolve(_ context.Context, candidate, _ string) *audience.Interest {
	if d, ok := s.delays[candidate]; ok {
		time.Sleep(d)
	}
	match, ok := s.matches[candidate]
	if !ok {
		return nil
	}
	clone := *match
	clone.Original = candidate
	return &clone
}

const ferrariThemesJSON = `{
	"extracted_fields": {"gender": "Not specified", "geolocation": "Italy", "age": "25-45"},
	"themes": [
		{"name": "Theme 1 – Sports cars", "TargetingClusters": ["Ferrari", "Ferrari Club"]}
	]
}`

func TestRunResolvesAndDeduplicates(t *testing.T) {
	generator := &stubGenerator{responses: []string{ferrariThemesJSON}}
	resolver := &stubResolver{matches: map[string]*audience.Interest{
		"Ferrari":      {Name: "Ferrari", ID: "123", Score: 0.9},
		"Ferrari Club": {Name: "Ferrari", ID: "123", Score: 0.9},
	}}

	o := New(generator, resolver, zap.NewNop())
	result, err := o.Run(context.Background(), Request{Description: "italian sports car lovers"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.RunID == "" {
		t.Fatal("expected run id to be set")
	}

	if result.Fields.Gender != "All" || result.Fields.Geolocation != "Italy" {
		t.Fatalf("unexpected fields: %+v", result.Fields)
	}

	if len(result.Structure.Themes) != 1 {
		t.Fatalf("expected 1 theme, got %d", len(result.Structure.Themes))
	}

	interests := result.Structure.Themes[0].Sections[0].Interests
	if len(interests) != 1 || interests[0].ID != "123" {
		t.Fatalf("expected single deduplicated interest with id 123, got %+v", interests)
	}

	if !strings.HasPrefix(result.Text, "INCLUDE people who match ALL of the following criteria:") {
		t.Fatalf("unexpected text: %s", result.Text)
	}

	if !strings.Contains(result.Text, "Gender: All | Geolocation: Italy | Age: 25-45") {
		t.Fatalf("fields line missing: %s", result.Text)
	}

	if result.RawGeneratorOutput != ferrariThemesJSON {
		t.Fatal("raw generator output not preserved")
	}

	// Pre-gate view keeps both resolved interests.
	if len(result.Themes) != 1 || len(result.Themes[0].Sections[0].Interests) != 2 {
		t.Fatalf("unexpected pre-gate themes: %+v", result.Themes)
	}
}

func TestRunRetriesUntilAttemptsExhausted(t *testing.T) {
	generator := &stubGenerator{responses: []string{ferrariThemesJSON}}
	resolver := &stubResolver{} // resolves nothing

	o := New(generator, resolver, zap.NewNop())
	result, err := o.Run(context.Background(), Request{
		Description: "whatever",
		Retry:       true,
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if generator.calls != 3 {
		t.Fatalf("expected exactly 3 generation calls, got %d", generator.calls)
	}

	if result.Text != audience.EmptyAudienceText {
		t.Fatalf("expected empty audience sentinel, got %q", result.Text)
	}

	if len(result.Structure.Themes) != 0 {
		t.Fatalf("expected no themes, got %d", len(result.Structure.Themes))
	}
}

func TestRunGarbageWithoutRetry(t *testing.T) {
	generator := &stubGenerator{responses: []string{"complete garbage, no headers"}}
	resolver := &stubResolver{}

	o := New(generator, resolver, zap.NewNop())
	result, err := o.Run(context.Background(), Request{Description: "whatever"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if generator.calls != 1 {
		t.Fatalf("expected single generation call, got %d", generator.calls)
	}

	if result.Text != audience.EmptyAudienceText {
		t.Fatalf("expected empty audience sentinel, got %q", result.Text)
	}

	if result.Fields.Gender != "All" || result.Fields.Geolocation != "All" || result.Fields.Age != "All" {
		t.Fatalf("expected sentinel fields, got %+v", result.Fields)
	}
}

func TestRunGenerationFailureConsumesAttempt(t *testing.T) {
	generator := &stubGenerator{err: errors.New("service unreachable")}
	resolver := &stubResolver{}

	o := New(generator, resolver, zap.NewNop())
	result, err := o.Run(context.Background(), Request{
		Description: "whatever",
		Retry:       true,
		MaxAttempts: 2,
	})
	if err != nil {
		t.Fatalf("generation failure must degrade, got %v", err)
	}

	if generator.calls != 2 {
		t.Fatalf("expected 2 generation calls, got %d", generator.calls)
	}

	if result.Text != audience.EmptyAudienceText {
		t.Fatalf("unexpected text: %q", result.Text)
	}
}

func TestRunMissingDescription(t *testing.T) {
	o := New(&stubGenerator{responses: []string{"x"}}, &stubResolver{}, zap.NewNop())

	if _, err := o.Run(context.Background(), Request{Description: "   "}); !errors.Is(err, ErrMissingDescription) {
		t.Fatalf("expected ErrMissingDescription, got %v", err)
	}
}

func TestRunAttemptsClamped(t *testing.T) {
	generator := &stubGenerator{responses: []string{"garbage"}}
	o := New(generator, &stubResolver{}, zap.NewNop())

	_, err := o.Run(context.Background(), Request{
		Description: "whatever",
		Retry:       true,
		MaxAttempts: 50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if generator.calls != maxAttempts {
		t.Fatalf("expected attempts clamped to %d, got %d", maxAttempts, generator.calls)
	}
}

func TestRunParallelResolutionPreservesDedupOrder(t *testing.T) {
	// The duplicate appears in the second theme but resolves first; the
	// first theme's occurrence must still win.
	raw := `{
		"themes": [
			{"name": "Theme 1 – First", "TargetingClusters": ["slow duplicate"]},
			{"name": "Theme 2 – Second", "TargetingClusters": ["fast duplicate", "unique"]}
		]
	}`

	generator := &stubGenerator{responses: []string{raw}}
	resolver := &stubResolver{
		matches: map[string]*audience.Interest{
			"slow duplicate": {Name: "Sailing", ID: "77", Score: 0.9},
			"fast duplicate": {Name: "Sailing", ID: "77", Score: 0.9},
			"unique":         {Name: "Hiking", ID: "88", Score: 0.9},
		},
		delays: map[string]time.Duration{"slow duplicate": 50 * time.Millisecond},
	}

	o := New(generator, resolver, zap.NewNop(), WithParallelism(4))
	result, err := o.Run(context.Background(), Request{Description: "outdoors"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Structure.Themes) != 2 {
		t.Fatalf("expected both themes to survive, got %d", len(result.Structure.Themes))
	}

	first := result.Structure.Themes[0].Sections[0].Interests
	if len(first) != 1 || first[0].Original != "slow duplicate" {
		t.Fatalf("first-seen occurrence lost: %+v", first)
	}

	second := result.Structure.Themes[1].Sections[0].Interests
	if len(second) != 1 || second[0].ID != "88" {
		t.Fatalf("expected only the unique interest in theme 2, got %+v", second)
	}
}

func TestRunTimingsPopulated(t *testing.T) {
	generator := &stubGenerator{responses: []string{ferrariThemesJSON}}
	resolver := &stubResolver{matches: map[string]*audience.Interest{
		"Ferrari": {Name: "Ferrari", ID: "123", Score: 0.9},
	}}

	o := New(generator, resolver, zap.NewNop())
	result, err := o.Run(context.Background(), Request{Description: "cars"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Timings.Total <= 0 {
		t.Fatalf("expected total timing > 0, got %v", result.Timings.Total)
	}

	if result.Timings.Total < result.Timings.Generation {
		t.Fatalf("inconsistent timings: %+v", result.Timings)
	}
}
