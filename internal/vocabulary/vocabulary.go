package vocabulary

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	apiURL    = "https://graph.facebook.com/v18.0"
	userAgent = "audiencer (github.com/audiencer/audiencer)"

	// The Graph API paces unauthenticated-tier apps aggressively; keep a
	// conservative default and let config raise it.
	defaultRequestsPerSecond = 5
	defaultBurst             = 10
)

// Client talks to the controlled-vocabulary side of the Meta Graph API.
// It is the Vocabulary Lookup Service of the pipeline.
type Client struct {
	token      string
	logger     *zap.Logger
	limiter    *rate.Limiter
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

// New creates a vocabulary client authenticated with the given access token.
func New(logger *zap.Logger, token string, requestsPerSecond float64) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}

	return &Client{
		token:   token,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), defaultBurst),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: userAgent,
		APIURL:    apiURL,
	}
}
