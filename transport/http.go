package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/querycache/resilience"
)

// DefaultMaxBodyBytes caps response bodies read into memory.
const DefaultMaxBodyBytes = 10 << 20

// HTTPConfig configures an HTTPAdapter.
type HTTPConfig struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// Client performs the calls. Default: a client with no overall timeout;
	// per-attempt deadlines come from the executor.
	Client *http.Client

	// Executor wraps each call. Default: NewExecutor(ResilienceConfig{}),
	// which applies a 30s per-attempt timeout and nothing else.
	Executor *resilience.Executor

	// Header is added to every request.
	Header http.Header

	// MaxBodyBytes caps the response body. Default: DefaultMaxBodyBytes
	MaxBodyBytes int64
}

// HTTPAdapter sends requests over net/http.
type HTTPAdapter struct {
	base    string
	client  *http.Client
	exec    *resilience.Executor
	header  http.Header
	maxBody int64
}

// NewHTTPAdapter creates an adapter.
func NewHTTPAdapter(config HTTPConfig) *HTTPAdapter {
	if config.Client == nil {
		config.Client = &http.Client{}
	}
	if config.Executor == nil {
		config.Executor = NewExecutor(ResilienceConfig{})
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &HTTPAdapter{
		base:    strings.TrimRight(config.BaseURL, "/"),
		client:  config.Client,
		exec:    config.Executor,
		header:  config.Header,
		maxBody: config.MaxBodyBytes,
	}
}

// Send performs req. Each retry attempt rebuilds the HTTP request.
func (a *HTTPAdapter) Send(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := a.url(req)
	op := method + " " + target

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	var resp *Response
	err = a.exec.Execute(ctx, func(ctx context.Context) error {
		r, err := a.do(ctx, method, target, body, req.Header)
		if err != nil {
			var se *ServerError
			if errors.As(err, &se) {
				return se
			}
			return &NetworkError{Op: op, Idempotent: idempotent(method), Err: err}
		}
		resp = r
		return nil
	})
	if err == nil {
		return resp, nil
	}

	var se *ServerError
	if errors.As(err, &se) {
		return nil, se
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		if ne != err && errors.Is(err, resilience.ErrTimeout) {
			return nil, &NetworkError{Op: op, Idempotent: ne.Idempotent, Err: fmt.Errorf("%w: %w", resilience.ErrTimeout, ne.Err)}
		}
		return nil, ne
	}
	return nil, &NetworkError{Op: op, Idempotent: idempotent(method), Err: err}
}

func (a *HTTPAdapter) do(ctx context.Context, method, target string, body []byte, header http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range a.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, a.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &ServerError{Status: httpResp.StatusCode, Header: httpResp.Header, Body: data}
	}
	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

func (a *HTTPAdapter) url(req *Request) string {
	path := req.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := a.base + path
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + req.Query.Encode()
	}
	return u
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encode body: %v", ErrInvalidRequest, err)
	}
	return data, nil
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// ResilienceConfig selects the delivery policies of an HTTPAdapter.
// Zero values disable the corresponding stage, except Timeout.
type ResilienceConfig struct {
	// Timeout bounds each attempt. Default: resilience.DefaultTimeout
	Timeout time.Duration

	// RetryAttempts is the total attempt budget for retryable errors.
	// Values below 2 disable retries.
	RetryAttempts int

	// RetryBackoff is the initial retry delay, doubled per attempt up to 5s.
	// Default: 200ms
	RetryBackoff time.Duration

	// BreakerThreshold opens the circuit after this many consecutive server
	// faults. Zero disables the breaker.
	BreakerThreshold int

	// BreakerCooldown is how long the circuit stays open. Default: 30s
	BreakerCooldown time.Duration

	// Rate paces request starts per second, with Burst back to back.
	Rate  float64
	Burst int

	// MaxInFlight caps concurrent requests.
	MaxInFlight int

	// OnRetry observes retries.
	OnRetry func(attempt int, err error, delay time.Duration)

	// OnBreakerChange observes circuit transitions.
	OnBreakerChange func(from, to resilience.State)
}

// NewExecutor builds the executor for an HTTPAdapter, classifying errors
// with IsRetryable and IsServerFault.
func NewExecutor(config ResilienceConfig) *resilience.Executor {
	opts := []resilience.ExecutorOption{resilience.WithTimeout(config.Timeout)}

	if config.Rate > 0 {
		opts = append(opts, resilience.WithLimiter(resilience.NewLimiter(resilience.LimiterConfig{
			Rate:  config.Rate,
			Burst: config.Burst,
		})))
	}
	if config.MaxInFlight > 0 {
		opts = append(opts, resilience.WithGate(resilience.NewGate(config.MaxInFlight, 0)))
	}
	if config.BreakerThreshold > 0 {
		opts = append(opts, resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Threshold:     config.BreakerThreshold,
			Cooldown:      config.BreakerCooldown,
			IsFailure:     IsServerFault,
			OnStateChange: config.OnBreakerChange,
		})))
	}
	if config.RetryAttempts > 1 {
		initial := config.RetryBackoff
		if initial <= 0 {
			initial = 200 * time.Millisecond
		}
		opts = append(opts, resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts: config.RetryAttempts,
			Backoff:     resilience.ExponentialBackoff(initial, 5*time.Second),
			Jitter:      true,
			RetryIf:     IsRetryable,
			RetryAfter:  retryAfter,
			OnRetry:     config.OnRetry,
		})))
	}

	return resilience.NewExecutor(opts...)
}
