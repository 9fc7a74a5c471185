package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/drivetransfer/internal/logging"
)

// TransferAudit captures one ownership transfer attempt for the audit log.
//
// # Privacy Considerations
//
// Caller and Receiver are email addresses. Unless the audit logger is
// configured with IncludePII, only their hashes and domains are written.
type TransferAudit struct {
	FileID   string
	Caller   string
	Receiver string

	// State is the final state reached; FailedStep is empty on success.
	State      string
	FailedStep string
	RolledBack bool

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewTransferAudit starts timing a transfer attempt.
func NewTransferAudit(fileID, caller, receiver string) *TransferAudit {
	return &TransferAudit{
		FileID:    fileID,
		Caller:    caller,
		Receiver:  receiver,
		StartTime: time.Now(),
	}
}

// WithSpanContext extracts trace context from the current span.
func (ta *TransferAudit) WithSpanContext(ctx context.Context) *TransferAudit {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ta.TraceID = span.SpanContext().TraceID().String()
		ta.SpanID = span.SpanContext().SpanID().String()
	}
	return ta
}

// Complete records the final state and calculates the duration.
func (ta *TransferAudit) Complete(state, failedStep string, err error) *TransferAudit {
	ta.Duration = time.Since(ta.StartTime)
	ta.State = state
	ta.FailedStep = failedStep
	ta.Success = err == nil
	if err != nil {
		ta.Error = err.Error()
	}
	return ta
}

// Status returns "success" or "error" based on the Success field.
func (ta *TransferAudit) Status() string {
	if ta.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes with emails reduced to hashes and domains.
// The error message is left out.
func (ta *TransferAudit) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("file_id", ta.FileID),
		slog.String("caller", logging.AnonymizeEmail(ta.Caller)),
		slog.String("receiver_domain", ReceiverDomain(ta.Receiver)),
	}
	return append(attrs, ta.commonAttrs()...)
}

// LogAuditAttrs returns slog attributes including full email addresses.
func (ta *TransferAudit) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("file_id", ta.FileID),
		slog.String("caller", ta.Caller),
		slog.String("receiver", ta.Receiver),
	}
	attrs = append(attrs, ta.commonAttrs()...)
	// Error messages may name accounts, so they only go into the PII variant.
	if ta.Error != "" {
		attrs = append(attrs, slog.String("error", ta.Error))
	}
	return attrs
}

func (ta *TransferAudit) commonAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("state", ta.State),
		slog.Duration("duration", ta.Duration),
		slog.Bool("success", ta.Success),
	}
	if ta.FailedStep != "" {
		attrs = append(attrs, slog.String("failed_step", ta.FailedStep))
	}
	if ta.RolledBack {
		attrs = append(attrs, slog.Bool("rolled_back", true))
	}
	if ta.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ta.TraceID))
	}
	if ta.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ta.SpanID))
	}
	return attrs
}

// AuditLogger writes ownership transfer records.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an enabled AuditLogger that omits PII.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With("component", "audit"),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogTransfer writes one record per transfer attempt. A nil receiver is a no-op.
func (al *AuditLogger) LogTransfer(ctx context.Context, ta *TransferAudit) {
	if al == nil || !al.enabled || ta == nil {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = ta.LogAuditAttrs()
	} else {
		attrs = ta.LogAttrs()
	}

	level := slog.LevelInfo
	msg := "transfer_initiated"
	if !ta.Success {
		level = slog.LevelWarn
		msg = "transfer_failed"
	}
	al.logger.LogAttrs(ctx, level, msg, attrs...)
}
