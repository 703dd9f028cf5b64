package vocabulary

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	SearchPath = "/search"

	searchType = "adinterest"
	// Fixed page size; the resolver only ever inspects the top entries.
	pageLimit = "10"
)

// Suggestion is one ranked entry of the controlled vocabulary.
type Suggestion struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Path                   []string `json:"path"`
	Topic                  string   `json:"topic"`
	AudienceSizeLowerBound int64    `json:"audience_size_lower_bound"`
	AudienceSizeUpperBound int64    `json:"audience_size_upper_bound"`
}

type searchResponse struct {
	Data []map[string]any `json:"data"`
}

// Search queries the vocabulary for entries matching the text and returns
// them in the API's relevance order. Transport and decoding failures are
// returned as errors; callers treat them as a miss for this one query.
func (c *Client) Search(ctx context.Context, query string) ([]Suggestion, error) {
	q := url.Values{}
	q.Set("type", searchType)
	q.Set("q", query)
	q.Set("limit", pageLimit)
	q.Set("access_token", c.token)

	endpoint := fmt.Sprintf("%s%s", c.APIURL, SearchPath)

	var response searchResponse
	if err := c.getJSON(ctx, endpoint, q, &response); err != nil {
		return nil, fmt.Errorf("vocabulary search %q: %w", query, err)
	}

	var suggestions []Suggestion
	cfg := &mapstructure.DecoderConfig{
		Result:           &suggestions,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(response.Data); err != nil {
		return nil, fmt.Errorf("decode vocabulary suggestions: %w", err)
	}

	c.logger.Debug("vocabulary suggestions",
		zap.String("query", query),
		zap.Int("count", len(suggestions)),
	)

	return suggestions, nil
}
