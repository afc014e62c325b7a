package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks span failed with err. kind, when set, is recorded as the node error
// kind so traces can be filtered by missing_input, timeout and friends.
func SetError(span trace.Span, err error, kind string, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}

	if kind != "" {
		attrs = append(attrs, attribute.String(ErrorKindKey, kind))
	}

	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}
