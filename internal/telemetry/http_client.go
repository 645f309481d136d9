package telemetry

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HTTPClientConfig configures an instrumented HTTP client
type HTTPClientConfig struct {
	ServiceName string // external service, e.g. "reelhub-api", "elasticsearch"
	Timeout     time.Duration
}

// NewTransport wraps base (http.DefaultTransport when nil) so every request
// gets a client span named "<service> <METHOD>" and carries the trace
// context in its headers.
func NewTransport(service string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return service + " " + r.Method
		}),
		otelhttp.WithSpanOptions(
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("external.service", service)),
		),
	)
}

// NewInstrumentedHTTPClient creates an HTTP client whose requests are traced
func NewInstrumentedHTTPClient(cfg HTTPClientConfig) *http.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: NewTransport(cfg.ServiceName, nil),
	}
}
