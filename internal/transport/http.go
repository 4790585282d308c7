package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxResponseBytes int64 = 32 << 20

// ErrResponseTooLarge is returned instead of a silently truncated body.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// Exchanger performs a single physical request with no retry.
type Exchanger interface {
	Exchange(ctx context.Context, req *Request) (*Response, error)
}

type ExchangerFunc func(ctx context.Context, req *Request) (*Response, error)

func (f ExchangerFunc) Exchange(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

type HTTPExchanger struct {
	Client *http.Client
	// MaxBytes caps the response body; zero means 32 MiB.
	MaxBytes int64
}

var _ Exchanger = HTTPExchanger{}

func (e HTTPExchanger) Exchange(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := e.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	limit := e.maxBytes()
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("read response: %w", ErrResponseTooLarge)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
	}, nil
}

func (e HTTPExchanger) httpClient() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return http.DefaultClient
}

func (e HTTPExchanger) maxBytes() int64 {
	if e.MaxBytes > 0 {
		return e.MaxBytes
	}
	return maxResponseBytes
}
