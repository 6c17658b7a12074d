// Package tracing wires opentracing spans around session stages.
package tracing

import (
	"context"
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	"github.com/uber/jaeger-client-go/config"
)

// InitTracer installs a Jaeger tracer as the global opentracing tracer.
// Without it spans go to the no-op tracer.
func InitTracer(serviceName, collectorEndpoint string) (io.Closer, error) {
	cfg := &config.Configuration{
		ServiceName: serviceName,
		Sampler: &config.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &config.ReporterConfig{
			CollectorEndpoint: collectorEndpoint,
		},
	}

	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return closer, nil
}

// StartSpan starts a child of the span in ctx, if any.
func StartSpan(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, operationName)
}

// Finish records err on the span, when set, and finishes it.
func Finish(span opentracing.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.SetTag("error", true)
		span.LogKV("error", err.Error())
	}
	span.Finish()
}
