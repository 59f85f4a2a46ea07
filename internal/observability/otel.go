package observability

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/yungbote/medreport-backend/internal/platform/envutil"
	"github.com/yungbote/medreport-backend/internal/platform/logger"
)

const defaultSampleRatio = 0.1

// TracingConfig describes the process for the trace resource. The summarizer
// backend and advice mode are recorded so traces from differently configured
// deployments can be told apart.
type TracingConfig struct {
	ServiceName       string
	Environment       string
	Version           string
	SummarizerBackend string
	AdviceMode        string
}

func (c TracingConfig) attributes() []attribute.KeyValue {
	name := strings.TrimSpace(c.ServiceName)
	if name == "" {
		name = "medreport"
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(name),
		attribute.String("deployment.environment", strings.TrimSpace(c.Environment)),
	}
	if v := strings.TrimSpace(c.Version); v != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(v))
	}
	if b := strings.TrimSpace(c.SummarizerBackend); b != "" {
		attrs = append(attrs, attribute.String("medreport.summarizer.backend", b))
	}
	if m := strings.TrimSpace(c.AdviceMode); m != "" {
		attrs = append(attrs, attribute.String("medreport.advice.mode", m))
	}
	return attrs
}

var (
	tracingOnce     sync.Once
	tracingShutdown func(context.Context) error
)

// TracingEnabled reports whether OTEL_ENABLED turns tracing on.
func TracingEnabled() bool {
	return envutil.Bool("OTEL_ENABLED", false)
}

// InitTracing installs the global tracer provider once. It returns nil when
// tracing is off. Exporter failures are logged and leave spans unexported.
func InitTracing(ctx context.Context, log *logger.Logger, cfg TracingConfig) func(context.Context) error {
	tracingOnce.Do(func() {
		if !TracingEnabled() {
			return
		}
		if log == nil {
			log = logger.Nop()
		}
		res, err := resource.New(ctx, resource.WithAttributes(cfg.attributes()...))
		if err != nil {
			log.Warn("otel resource init failed (continuing)", "error", err)
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(
				samplerRatio(envutil.String("OTEL_SAMPLER_RATIO", "")),
			))),
			sdktrace.WithResource(res),
		}
		exporter, kind, err := newTraceExporter(ctx)
		switch {
		case err != nil:
			log.Warn("otel exporter init failed (continuing)", "exporter", kind, "error", err)
		default:
			opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
		}

		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		tracingShutdown = tp.Shutdown
		log.Info("otel tracing initialized", "exporter", kind, "summarizer_backend", cfg.SummarizerBackend)
	})
	return tracingShutdown
}

// newTraceExporter uses OTLP/HTTP when OTEL_EXPORTER_OTLP_ENDPOINT is set and
// pretty-printed stdout otherwise.
func newTraceExporter(ctx context.Context) (sdktrace.SpanExporter, string, error) {
	endpoint := envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if endpoint == "" {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		return exp, "stdout", err
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false) {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if h := parseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")); h != nil {
		opts = append(opts, otlptracehttp.WithHeaders(h))
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	return exp, "otlphttp", err
}

// samplerRatio clamps to [0,1]; blank or unparsable input gives the default.
func samplerRatio(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	switch {
	case err != nil:
		return defaultSampleRatio
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// parseHeaders reads "k1=v1,k2=v2". Entries with an empty key or value are skipped.
func parseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		headers[k] = v
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}
