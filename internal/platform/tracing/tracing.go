// Package tracing configures the OpenTelemetry tracer provider and the HTTP
// server instrumentation.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
)

const (
	// ProtocolGRPC exports spans over OTLP/gRPC. It is the default.
	ProtocolGRPC = "grpc"
	// ProtocolHTTPProtobuf exports spans as protobuf over OTLP/HTTP.
	ProtocolHTTPProtobuf = "http/protobuf"
)

// tracesPath is appended to a base OTLP/HTTP endpoint.
const tracesPath = "v1/traces"

// ErrUnsupportedProtocol is returned for OTLP protocols other than grpc and
// http/protobuf.
var ErrUnsupportedProtocol = errors.New("unsupported OTLP protocol")

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Options configures Setup. The exporter reads OTEL_EXPORTER_OTLP_* variables
// for anything not set here, such as headers and TLS.
type Options struct {
	ServiceName string
	Version     string
	// Endpoint is the base OTLP endpoint. Over http/protobuf the traces path
	// is appended to it.
	Endpoint string
	// TracesEndpoint is the traces-specific endpoint, used exactly as given.
	// It overrides Endpoint.
	TracesEndpoint string
	Protocol       string
	Sampler        string
	SamplerArg     string
}

// Enabled reports whether an exporter endpoint is configured.
func (o Options) Enabled() bool {
	return o.Endpoint != "" || o.TracesEndpoint != ""
}

// Setup installs the W3C trace-context propagator and, when an endpoint is
// configured, a batching tracer provider exporting over OTLP. Without an
// endpoint the global no-op provider is kept and the returned shutdown does
// nothing.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !opts.Enabled() {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, opts)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(opts.Sampler, opts.SamplerArg)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, opts Options) (*otlptrace.Exporter, error) {
	var (
		exporter *otlptrace.Exporter
		err      error
	)
	switch opts.Protocol {
	case ProtocolGRPC, "":
		// gRPC targets a host; any path on the base endpoint is ignored.
		endpoint := opts.TracesEndpoint
		if endpoint == "" {
			endpoint = opts.Endpoint
		}
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpointURL(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithUserAgent(userAgent(opts))),
		)
	case ProtocolHTTPProtobuf:
		endpoint, urlErr := httpTracesURL(opts)
		if urlErr != nil {
			return nil, urlErr
		}
		exporter, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, opts.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", opts.Protocol, err)
	}
	return exporter, nil
}

// httpTracesURL resolves the OTLP/HTTP traces URL. A traces-specific endpoint
// is used verbatim; a base endpoint gets v1/traces appended to its path.
func httpTracesURL(opts Options) (string, error) {
	if opts.TracesEndpoint != "" {
		return opts.TracesEndpoint, nil
	}
	endpoint, err := url.JoinPath(opts.Endpoint, tracesPath)
	if err != nil {
		return "", fmt.Errorf("invalid OTLP endpoint %q: %w", opts.Endpoint, err)
	}
	return endpoint, nil
}

func userAgent(opts Options) string {
	if opts.Version == "" {
		return opts.ServiceName
	}
	return opts.ServiceName + "/" + opts.Version
}

// sampler maps OTEL_TRACES_SAMPLER names to SDK samplers. Unknown names fall
// back to parentbased_always_on, and an unparsable ratio to 1.0.
func sampler(name, arg string) sdktrace.Sampler {
	ratio := func() float64 {
		r, err := strconv.ParseFloat(arg, 64)
		if err != nil || r < 0 || r > 1 {
			return 1.0
		}
		return r
	}

	switch name {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(ratio())
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio()))
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

// Middleware starts a server span per request using the global provider and
// propagator.
func Middleware(operation string, opts ...otelhttp.Option) func(http.Handler) http.Handler {
	return otelhttp.NewMiddleware(operation, opts...)
}
