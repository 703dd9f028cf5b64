package ai

import "context"

// GenerationRequest describes one criteria-generation call. PromptTemplate
// and Model override the provider defaults when non-empty.
type GenerationRequest struct {
	Description    string
	PromptTemplate string
	Model          string
}

// Generator is the Language Generation Service consumed by the pipeline.
type Generator interface {
	// GenerateCriteria produces the raw textual/JSON candidate criteria
	// for the described audience.
	GenerateCriteria(ctx context.Context, req GenerationRequest) (string, error)

	// GenerateAlternatives suggests up to three alternative phrasings for
	// a candidate interest that had no vocabulary match. The context is a
	// plain-text summary of the sibling candidates.
	GenerateAlternatives(ctx context.Context, candidate, contextHint string) ([]string, error)
}
