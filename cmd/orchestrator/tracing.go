package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/cschleiden/go-orchestrations/internal/config"
)

func newTracerProvider(ctx context.Context, c *config.TracingConfig) (*trace.TracerProvider, error) {
	opts := []trace.TracerProviderOption{
		trace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "orchestrator"),
		)),
	}

	switch c.Exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}

		opts = append(opts, trace.WithSyncer(exp))

	case "otlp":
		clientOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.Endpoint)}
		if c.URLPath != "" {
			clientOpts = append(clientOpts, otlptracehttp.WithURLPath(c.URLPath))
		}

		if c.Insecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}

		exp, err := otlptracehttp.New(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating otlp exporter: %w", err)
		}

		opts = append(opts, trace.WithBatcher(exp))
	}

	tp := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return tp, nil
}
