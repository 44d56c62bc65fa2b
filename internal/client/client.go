package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/paketku/paketku/internal/errors"
	"github.com/paketku/paketku/internal/logging"
	"github.com/paketku/paketku/internal/metrics"
	"github.com/paketku/paketku/internal/models"
)

// Doer abstracts the HTTP transport so tests can stub it and production can
// use the RotatingClient.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures the API client family.
type Options struct {
	BaseURL     string
	AuthBaseURL string
	APIKey      string
	OTPChannel  string
	HTTPClient  Doer
	Logger      *logging.Logger
	Metrics     *metrics.Metrics
}

// envelope is the uniform wire wrapper of the vendor API.
type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

const statusSuccess = "SUCCESS"

// baseClient carries the shared request plumbing for the CIAM, subscriber,
// and purchase clients.
type baseClient struct {
	baseURL     string
	authBaseURL string
	apiKey      string
	otpChannel  string
	http        Doer
	logger      *logging.Logger
	metrics     *metrics.Metrics
}

func newBaseClient(opts Options) *baseClient {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewRotatingClient(false, 0)
	}
	channel := opts.OTPChannel
	if channel == "" {
		channel = "SMS"
	}
	return &baseClient{
		baseURL:     opts.BaseURL,
		authBaseURL: opts.AuthBaseURL,
		apiKey:      opts.APIKey,
		otpChannel:  channel,
		http:        httpClient,
		logger:      logger,
		metrics:     opts.Metrics,
	}
}

// postJSON sends one API call and returns the data field of a successful
// envelope. Callers that need the failure code use postEnvelope directly.
func (c *baseClient) postJSON(ctx context.Context, baseURL, path string, sess *models.Session, body interface{}) (json.RawMessage, error) {
	env, status, err := c.postEnvelope(ctx, baseURL, path, sess, body)
	if err != nil {
		return nil, err
	}
	if env.Status != statusSuccess {
		return nil, &errors.ErrRemoteAPI{
			Endpoint: path,
			Status:   status,
			Err:      fmt.Errorf("API status %s: %s", env.Status, env.Message),
		}
	}
	return env.Data, nil
}

// postEnvelope sends one API call and decodes the envelope without judging
// its status. A nil session sends an unauthenticated (API-key only) request.
func (c *baseClient) postEnvelope(ctx context.Context, baseURL, path string, sess *models.Session, body interface{}) (*envelope, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, &errors.ErrRemoteAPI{Endpoint: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, &errors.ErrRemoteAPI{Endpoint: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("X-Request-ID", uuid.New().String())
	if sess != nil {
		req.Header.Set("Authorization", "Bearer "+sess.Tokens.AccessToken)
		req.Header.Set("X-Id-Token", sess.Tokens.IDToken)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	c.observe(path, started, err == nil)
	if err != nil {
		return nil, 0, &errors.ErrRemoteAPI{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &errors.ErrRemoteAPI{Endpoint: path, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.metrics != nil {
			c.metrics.RecordAPIError(path)
		}
		return nil, resp.StatusCode, &errors.ErrRemoteAPI{
			Endpoint: path,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected response: %s", truncateBody(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, resp.StatusCode, &errors.ErrRemoteAPI{Endpoint: path, Status: resp.StatusCode, Err: err}
	}
	return &env, resp.StatusCode, nil
}

func (c *baseClient) observe(path string, started time.Time, ok bool) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordAPILatency(path, time.Since(started).Seconds())
	if !ok {
		c.metrics.RecordAPIError(path)
	}
}

func truncateBody(raw []byte) string {
	const max = 256
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
