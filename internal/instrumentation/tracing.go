package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the drivetransfer packages.
const TracerName = "github.com/teemow/drivetransfer"

// Span attribute keys.
const (
	SpanAttrService       = "google.service"
	SpanAttrOperation     = "google.operation"
	SpanAttrUser          = "drivetransfer.user"
	SpanAttrFileID        = "drive.file_id"
	SpanAttrTransferStep  = "drive.transfer.step"
	SpanAttrTransferState = "drive.transfer.state"
)

// SpanAttributeBuilder collects span attributes, skipping empty values.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{attrs: make([]attribute.KeyValue, 0, 4)}
}

func (b *SpanAttributeBuilder) add(key, value string) *SpanAttributeBuilder {
	if value != "" {
		b.attrs = append(b.attrs, attribute.String(key, value))
	}
	return b
}

// WithUser adds an anonymized user identifier.
func (b *SpanAttributeBuilder) WithUser(userHash string) *SpanAttributeBuilder {
	return b.add(SpanAttrUser, userHash)
}

// WithFile adds the Drive file ID.
func (b *SpanAttributeBuilder) WithFile(fileID string) *SpanAttributeBuilder {
	return b.add(SpanAttrFileID, fileID)
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// StartTransferSpan starts the parent span of one ownership transfer attempt.
// Finish it with EndTransferSpan.
func StartTransferSpan(ctx context.Context, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer().Start(ctx, "drive.transfer", trace.WithAttributes(attrs...))
}

// EndTransferSpan records the final state and error of a transfer and ends span.
func EndTransferSpan(span trace.Span, state string, err error) {
	span.SetAttributes(attribute.String(SpanAttrTransferState, state))
	if err != nil {
		SetSpanError(span, err)
	} else {
		SetSpanSuccess(span)
	}
	span.End()
}

// StartTransferStepSpan starts a span named drive.transfer.<step>.
func StartTransferStepSpan(ctx context.Context, step string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(SpanAttrTransferStep, step)}, attrs...)
	return tracer().Start(ctx, "drive.transfer."+step, trace.WithAttributes(all...))
}

// StartGoogleAPISpan starts a client span named google.<service>.<operation>.
func StartGoogleAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)
	return tracer().Start(ctx, "google."+service+"."+operation,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartHTTPSpan starts a server span for an inbound request. The caller may
// rename it once the matched route is known.
func StartHTTPSpan(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return tracer().Start(ctx, method+" "+route,
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddSpanEvent adds an event to the span with optional attributes.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
