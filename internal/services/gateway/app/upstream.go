package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// StatusError is a non-2xx answer from an upstream, kept verbatim so the
// proxy routes can forward the upstream's own verdict to the caller.
type StatusError struct {
	Upstream    string
	Code        int
	ContentType string
	Body        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Upstream, e.Code)
}

// Upstream wraps GETs against one sibling service behind a circuit
// breaker. Transport errors and 5xx answers count against the breaker;
// 4xx answers are the upstream speaking, not failing, and pass through.
type Upstream struct {
	name    string
	base    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewUpstream(name, base string, timeout time.Duration, breaker *gobreaker.CircuitBreaker) *Upstream {
	return &Upstream{
		name:    name,
		base:    strings.TrimRight(strings.TrimSpace(base), "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

// GetJSON fetches base+path and decodes the body into out. out may be a
// *json.RawMessage when the caller just forwards the payload.
func (u *Upstream) GetJSON(ctx context.Context, path string, out any) error {
	if u == nil || u.base == "" {
		return fmt.Errorf("%s: not configured", u.name)
	}
	v, err := u.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.base+path, nil)
		if err != nil {
			return nil, err
		}
		resp, err := u.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", u.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%s: status %d", u.name, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &StatusError{
				Upstream:    u.name,
				Code:        resp.StatusCode,
				ContentType: resp.Header.Get("Content-Type"),
				Body:        strings.TrimSpace(string(body)),
			}, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", u.name, err)
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	if se, ok := v.(*StatusError); ok {
		return se
	}
	return nil
}

// BreakerOpen reports whether err means the upstream's breaker refused
// the call without trying it.
func BreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
