package runner

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Tuee22/parapet/internal/effect"
)

// maxResponseBody caps how much of a response body enters a payload.
// Larger bodies are truncated and flagged, never errored.
const maxResponseBody = 1 << 20

// NewHTTP builds the http.request runner over an injected client.
// Passing nil uses a plain client; redirect and proxy policy belong to
// the injected client, not to the runner.
func NewHTTP(client *http.Client, timeout time.Duration) Runner {
	if client == nil {
		client = &http.Client{}
	}
	r := &httpRunner{client: client}
	return newGuarded(effect.KindHTTPRequest, timeout, r.run)
}

type httpRunner struct {
	client *http.Client
}

func (r *httpRunner) run(ctx context.Context, payload effect.Object) effect.Outcome {
	method, ok := payload.Str("method")
	if !ok || method == "" {
		return effect.Fail(effect.CaseInvalid, "http.request payload missing method")
	}
	rawURL, ok := payload.Str("url")
	if !ok || rawURL == "" {
		return effect.Fail(effect.CaseInvalid, "http.request payload missing url")
	}
	body, _ := payload.Str("body")
	headers, _ := payload.Obj("headers")

	// The effect may carry its own budget; the guard's budget still
	// applies on top, so the effective deadline is the smaller one.
	if tms, ok := payload.Int64("timeout_ms"); ok && tms > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(tms)*time.Millisecond)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, strings.NewReader(body))
	if err != nil {
		return effect.Failf(effect.CaseInvalid, "build request: %v", err)
	}
	for k, v := range headers {
		if s, ok := v.(effect.String); ok {
			req.Header.Set(k, string(s))
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return classifyHTTPError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return classifyHTTPError(err)
	}
	truncated := false
	if len(respBody) > maxResponseBody {
		respBody = respBody[:maxResponseBody]
		truncated = true
	}

	respHeaders := make(effect.Object, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = effect.String(resp.Header.Get(k))
	}

	// Non-2xx statuses are data, not failures: the status code is part
	// of the payload and the program decides what it means.
	return effect.Ok(effect.Object{
		"status":    effect.Int(int64(resp.StatusCode)),
		"headers":   respHeaders,
		"body":      effect.String(string(respBody)),
		"truncated": effect.Bool(truncated),
	})
}

// classifyHTTPError maps a transport error into the http.request
// variant set by semantic meaning.
func classifyHTTPError(err error) effect.Outcome {
	msg := err.Error()

	if errors.Is(err, context.DeadlineExceeded) {
		return effect.Failf(effect.CaseTimeout, "request deadline exceeded: %v", err)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if uerr.Timeout() {
			return effect.Fail(effect.CaseTimeout, msg)
		}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return effect.Fail(effect.CaseTimeout, msg)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return effect.Fail(effect.CaseConnection, msg)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return effect.Fail(effect.CaseConnection, msg)
	}
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "connection reset") {
		return effect.Fail(effect.CaseConnection, msg)
	}
	return effect.Fail(effect.CaseUnknown, msg)
}
