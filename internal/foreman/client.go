package foreman

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/HerbHall/hostenroll/internal/version"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxErrorBody caps how much of a failed response is kept in HTTPError.
const maxErrorBody = 512

// Requester sends one request to the controller and returns the raw JSON
// response body. *Client implements it.
type Requester interface {
	Request(ctx context.Context, method, resource string, data any) (json.RawMessage, error)
}

// Client wraps the Foreman REST API with Basic authentication.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials
	limiter    *rate.Limiter
	metrics    *Metrics
	logger     *zap.Logger
}

// NewClient creates a Foreman API client for creds.Server.
func NewClient(creds Credentials, cfg ClientConfig, metrics *Metrics, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.CACertPath != "" {
		pem, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CACertPath)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		baseURL:    strings.TrimRight(creds.Server, "/"),
		creds:      creds,
		limiter:    rate.NewLimiter(limit, 1),
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Request performs one API call against resource, a path relative to the
// server URL such as "hosts" or "hosts/web01.example.com".
//
// For POST, data is sent as a JSON body. For GET, data (url.Values or
// map[string]string) becomes the query string. For DELETE, data is ignored.
// Non-2xx responses are returned as *HTTPError.
func (c *Client) Request(ctx context.Context, method, resource string, data any) (json.RawMessage, error) {
	resource = strings.TrimLeft(resource, "/")
	target := c.baseURL + "/" + resource

	var reqBody io.Reader
	switch method {
	case http.MethodGet:
		query, err := encodeQuery(data)
		if err != nil {
			return nil, err
		}
		if query != "" {
			target += "?" + query
		}
	case http.MethodPost:
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	case http.MethodDelete:
	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.SetBasicAuth(c.creds.Login, c.creds.Password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observeRequest(method, resource, 0, time.Since(start))
		return nil, fmt.Errorf("http %s %s: %w", method, resource, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	c.metrics.observeRequest(method, resource, resp.StatusCode, duration)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("foreman request",
		zap.String("method", method),
		zap.String("resource", resource),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &HTTPError{
			Method:     method,
			Resource:   resource,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}
	if !json.Valid(respBody) {
		return nil, &ProtocolError{Resource: resource, Message: "response is not valid JSON"}
	}
	return json.RawMessage(respBody), nil
}

func encodeQuery(data any) (string, error) {
	switch v := data.(type) {
	case nil:
		return "", nil
	case url.Values:
		return v.Encode(), nil
	case map[string]string:
		q := make(url.Values, len(v))
		for k, val := range v {
			q.Set(k, val)
		}
		return q.Encode(), nil
	default:
		return "", fmt.Errorf("unsupported query data %T", data)
	}
}
