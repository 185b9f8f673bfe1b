package probes

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"github.com/lookout-dev/lookout/internal/assertions"
	"github.com/lookout-dev/lookout/internal/types"
)

// Response bodies larger than this are truncated before assertion evaluation.
const maxBodyBytes = 2 << 20

// CheckHTTP performs one HTTP probe and collects status, headers, body and
// per-phase timings. Expectation checking is not done here; the assertion
// engine owns that.
func CheckHTTP(ctx context.Context, config *types.HttpConfig) (Outcome, error) {
	timeout := config.Timeout

	if timeout == 0 {
		timeout = 10
	}

	client := &http.Client{
		Timeout: time.Duration(timeout) * time.Second,
	}

	method := config.Method

	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader

	if config.Body != "" {
		body = strings.NewReader(config.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, config.URL, body)

	if err != nil {
		return Outcome{}, err
	}

	for key, value := range config.Headers {
		req.Header.Add(key, value)
	}

	var (
		start        = time.Now()
		dnsStart     time.Time
		connectStart time.Time
		tlsStart     time.Time
		timings      Timings
	)

	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone: func(httptrace.DNSDoneInfo) {
			timings.DNSMs = time.Since(dnsStart).Milliseconds()
		},
		ConnectStart: func(string, string) { connectStart = time.Now() },
		ConnectDone: func(string, string, error) {
			timings.ConnectMs = time.Since(connectStart).Milliseconds()
		},
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			timings.TLSMs = time.Since(tlsStart).Milliseconds()
		},
		GotFirstResponseByte: func() {
			timings.TTFBMs = time.Since(start).Milliseconds()
		},
	}

	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	resp, err := client.Do(req)

	if err != nil {
		return Outcome{Timings: timings, LatencyMs: time.Since(start).Milliseconds()}, err
	}

	defer resp.Body.Close()

	transferStart := time.Now()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if err != nil {
		return Outcome{Timings: timings, LatencyMs: time.Since(start).Milliseconds()}, err
	}

	timings.TransferMs = time.Since(transferStart).Milliseconds()

	headers := make(map[string]string, len(resp.Header))

	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}

	return Outcome{
		Facts: assertions.ResponseFacts{
			JobKind:    "http",
			StatusCode: resp.StatusCode,
			Headers:    headers,
			Body:       string(raw),
		},
		Timings:   timings,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}
