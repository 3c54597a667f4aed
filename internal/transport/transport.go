package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "econharvest/0.1 (economic data collector)"

	maxBodyExcerpt = 512
)

type Kind string

const (
	KindTimeout          Kind = "timeout"
	KindConnectionFailed Kind = "connection_failed"
	KindHTTP             Kind = "http"
	KindUnparseable      Kind = "unparseable"
)

// Error is the one error type Send returns. Kind and StatusCode carry
// everything the retry policy needs; Body holds a bounded excerpt of the
// response for diagnostics.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("transport: http %d: %s", e.StatusCode, e.Body)
	case KindUnparseable:
		return fmt.Sprintf("transport: response is not valid JSON: %s", e.Body)
	default:
		return fmt.Sprintf("transport: %s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could plausibly succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnectionFailed:
		return true
	case KindHTTP:
		switch e.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// Request is a fully resolved HTTP exchange: the URL already carries any
// query parameters and Body is the marshaled payload, so sending the same
// Request twice hits the wire identically.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

type Config struct {
	Timeout   time.Duration
	UserAgent string
}

type Client struct {
	httpClient *http.Client
	userAgent  string
}

func New(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		userAgent:  config.UserAgent,
	}
}

func (c *Client) Send(ctx context.Context, request *Request) ([]byte, error) {
	var bodyReader io.Reader
	if len(request.Body) > 0 {
		bodyReader = bytes.NewReader(request.Body)
	}

	req, err := http.NewRequestWithContext(ctx, request.Method, request.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	for key, values := range request.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, classify(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       KindHTTP,
			StatusCode: resp.StatusCode,
			Body:       excerpt(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if !gjson.ValidBytes(body) {
		return nil, &Error{Kind: KindUnparseable, StatusCode: resp.StatusCode, Body: excerpt(body)}
	}

	return body, nil
}

func classify(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindConnectionFailed, Err: err}
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxBodyExcerpt {
		return text[:maxBodyExcerpt]
	}
	return text
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}
