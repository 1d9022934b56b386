package utils

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "app-crm"

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch val := value.(type) {
	case string:
		return attribute.String(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case bool:
		return attribute.Bool(key, val)
	case float64:
		return attribute.Float64(key, val)
	case fmt.Stringer:
		return attribute.String(key, val.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", val))
	}
}

// TraceOperation starts a span and returns a cleanup func that records the
// elapsed time and ends it.
func TraceOperation(ctx context.Context, operationName string, attributes map[string]interface{}) (context.Context, trace.Span, func()) {
	start := time.Now()

	otelAttrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		otelAttrs = append(otelAttrs, toAttribute(k, v))
	}

	spanCtx, span := otel.Tracer(tracerName).Start(ctx, operationName, trace.WithAttributes(otelAttrs...))

	return spanCtx, span, func() {
		span.SetAttributes(attribute.Int64("duration_ms", time.Since(start).Milliseconds()))
		span.End()
	}
}

// TraceDatabaseOperation traces a database operation
func TraceDatabaseOperation(ctx context.Context, operation, collection string) (context.Context, trace.Span, func()) {
	return TraceOperation(ctx, "db."+operation, map[string]interface{}{
		"db.operation":  operation,
		"db.collection": collection,
		"db.system":     "mongodb",
	})
}

// TraceCacheOperation traces a cache operation
func TraceCacheOperation(ctx context.Context, operation, key string) (context.Context, trace.Span, func()) {
	return TraceOperation(ctx, "cache."+operation, map[string]interface{}{
		"cache.operation": operation,
		"cache.key":       key,
		"cache.system":    "redis",
	})
}

// TraceBusinessLogic traces a rule evaluation step
func TraceBusinessLogic(ctx context.Context, logicType string) (context.Context, trace.Span, func()) {
	return TraceOperation(ctx, "logic."+logicType, map[string]interface{}{
		"logic.type": logicType,
	})
}

// RecordErrorInSpan records an error in a span with additional context
func RecordErrorInSpan(span trace.Span, err error, context map[string]interface{}) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	for k, v := range context {
		span.SetAttributes(toAttribute(k, v))
	}
}

// AddSpanAttribute adds a single attribute to a span
func AddSpanAttribute(span trace.Span, key string, value interface{}) {
	span.SetAttributes(toAttribute(key, value))
}
