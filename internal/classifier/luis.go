package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/util"
)

// LUISClassifier queries a LUIS v2 application endpoint
type LUISClassifier struct {
	endpoint   string
	httpClient *http.Client
	config     Config
}

type luisError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewLUISClassifier creates a new LUIS classifier
func NewLUISClassifier(config Config) (*LUISClassifier, error) {
	if config.AppID == "" {
		return nil, fmt.Errorf("LUIS app id is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("LUIS subscription key is required")
	}
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = "https://westus.api.cognitive.microsoft.com/luis/v2.0/apps"
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &LUISClassifier{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (c *LUISClassifier) Name() string {
	return "luis"
}

// Classify sends query to the LUIS app and decodes the prediction
func (c *LUISClassifier) Classify(ctx context.Context, query string) (*nlu.Prediction, error) {
	params := url.Values{}
	params.Set("subscription-key", c.config.APIKey)
	params.Set("verbose", "true")
	params.Set("timezoneOffset", "0")
	if c.config.SpellCheck {
		params.Set("spellCheck", "true")
	}
	params.Set("q", query)

	reqURL := fmt.Sprintf("%s/%s?%s", c.endpoint, url.PathEscape(c.config.AppID), params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: execute request: %v", ErrUnavailable, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr luisError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("%w: API error (%d): %s", ErrUnavailable, httpResp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("%w: API error (%d): %s", ErrUnavailable, httpResp.StatusCode, string(body))
	}

	var p nlu.Prediction
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrUnavailable, err)
	}
	return finish(&p, query), nil
}
