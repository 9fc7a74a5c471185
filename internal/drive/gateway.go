package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/drivetransfer/internal/instrumentation"
	"github.com/teemow/drivetransfer/internal/logging"
)

const (
	// listPageSize caps the server-side page for ListOwnDocuments.
	listPageSize = 50

	// recentDocumentsLimit is the number of documents ListOwnDocuments returns.
	recentDocumentsLimit = 5

	listOrderBy = "modifiedTime desc"

	summaryDateLayout = "2006-01-02"

	rollbackTimeout = 10 * time.Second
)

// Session supplies the authenticated identity Gateway acts as.
type Session interface {
	// DriveClient returns the Drive client for the signed-in account,
	// or ErrNotAuthenticated.
	DriveClient() (*Client, error)

	// AccountEmail returns the signed-in account's email, or "" if it could
	// not be resolved.
	AccountEmail() string
}

// Gateway implements the Drive operations exposed to the browser.
type Gateway struct {
	session Session
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *instrumentation.Metrics) GatewayOption {
	return func(g *Gateway) {
		if metrics != nil {
			g.metrics = metrics
		}
	}
}

// WithAudit sets the audit logger for ownership transfers.
func WithAudit(audit *instrumentation.AuditLogger) GatewayOption {
	return func(g *Gateway) {
		g.audit = audit
	}
}

// NewGateway creates a Gateway acting on behalf of session.
func NewGateway(session Session, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		session: session,
		logger:  logging.Discard(),
		metrics: &instrumentation.Metrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.WithComponent(g.logger, "drive")
	return g
}

// ListOwnDocuments returns the most recently modified Google-native documents
// visible to the signed-in account, newest first. A non-empty search limits
// the results to names containing it.
func (g *Gateway) ListOwnDocuments(ctx context.Context, search string) ([]FileSummary, error) {
	client, err := g.session.DriveClient()
	if err != nil {
		return nil, err
	}
	email := g.session.AccountEmail()

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceDrive, instrumentation.OperationList)
	defer span.End()

	start := time.Now()
	files, err := client.ListFiles(ctx, &ListOptions{
		Query:      nativeDocumentsQuery(search),
		MaxResults: listPageSize,
		OrderBy:    listOrderBy,
	})
	g.recordAPI(ctx, instrumentation.OperationList, err, time.Since(start))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		g.logger.ErrorContext(ctx, "failed to list documents",
			logging.Operation("list_own_documents"),
			logging.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	instrumentation.SetSpanSuccess(span)

	// The API already orders by modifiedTime; sort again so the result does
	// not depend on it.
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModifiedTime.After(files[j].ModifiedTime)
	})
	if len(files) > recentDocumentsLimit {
		files = files[:recentDocumentsLimit]
	}

	summaries := make([]FileSummary, len(files))
	for i, f := range files {
		summaries[i] = summarize(f, email)
	}

	g.logger.DebugContext(ctx, "listed documents",
		logging.Operation("list_own_documents"),
		slog.Int("count", len(summaries)))

	return summaries, nil
}

// nativeDocumentsQuery restricts a listing to Google-native document types
// and, when search is set, to names containing it.
func nativeDocumentsQuery(search string) string {
	clauses := make([]string, len(NativeDocumentTypes))
	for i, mimeType := range NativeDocumentTypes {
		clauses[i] = fmt.Sprintf("mimeType='%s'", mimeType)
	}
	q := "(" + strings.Join(clauses, " or ") + ")"

	if search = strings.TrimSpace(search); search != "" {
		q += fmt.Sprintf(" and name contains '%s'", escapeQueryValue(search))
	}
	return q
}

func summarize(f *FileInfo, accountEmail string) FileSummary {
	owner := f.OwnerEmail()
	return FileSummary{
		ID:          f.ID,
		Name:        f.Name,
		Type:        FileTypeLabel(f.MimeType),
		Owner:       owner,
		URL:         f.WebViewLink,
		Created:     formatDate(f.CreatedTime),
		Modified:    formatDate(f.ModifiedTime),
		IsOwnedByMe: owner != "" && strings.EqualFold(owner, accountEmail),
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(summaryDateLayout)
}

// transferStep is one action of an ownership transfer.
type transferStep struct {
	name TransferStep
	// next is the state reached when run succeeds.
	next      TransferState
	operation string
	run       func(ctx context.Context, client *Client, t *transfer) error
}

var transferSteps = []transferStep{
	{name: StepVerifyOwner, next: StateOwnerVerified, operation: instrumentation.OperationGet, run: verifyOwner},
	{name: StepGrantWriter, next: StateWriterGranted, operation: instrumentation.OperationCreate, run: grantWriter},
	{name: StepLocatePermission, next: StatePermissionLocated, operation: instrumentation.OperationList, run: locatePermission},
	{name: StepSetPendingOwner, next: StatePendingTransferSet, operation: instrumentation.OperationUpdate, run: setPendingOwner},
}

// TransferOwnership asks receiverEmail to become the owner of fileID.
//
// The signed-in account must be the file's current owner. On success the
// receiver holds a writer permission flagged as pending owner and must accept
// the transfer themselves. Failures are returned as *TransferError naming the
// step that failed.
//
// If a later step fails after this call granted the receiver a new writer
// permission, one attempt is made to remove that permission again. The
// outcome is reported in the TransferError and never replaces the original
// failure.
func (g *Gateway) TransferOwnership(ctx context.Context, fileID, receiverEmail string) (*TransferResult, error) {
	client, err := g.session.DriveClient()
	if err != nil {
		return nil, err
	}

	t := newTransfer(strings.TrimSpace(fileID), strings.TrimSpace(receiverEmail), g.session.AccountEmail())
	logger := g.logger.With(
		logging.Operation("transfer_ownership"),
		logging.FileID(t.fileID),
		logging.UserHash(t.caller),
		logging.Domain(t.receiver),
	)
	ctx, span := instrumentation.StartTransferSpan(ctx,
		instrumentation.NewSpanAttributeBuilder().
			WithFile(t.fileID).
			WithUser(logging.AnonymizeEmail(t.caller)).
			Build()...)
	audit := instrumentation.NewTransferAudit(t.fileID, t.caller, t.receiver).WithSpanContext(ctx)

	for _, step := range transferSteps {
		if err := g.runStep(ctx, client, t, step); err != nil {
			terr := &TransferError{
				Step:                step.name,
				Reached:             t.state,
				Err:                 err,
				GrantedPermissionID: t.grantedPermissionID,
			}
			if t.needsRollback() {
				g.rollback(ctx, client, t, terr, logger)
			}
			t.state = StateFailed

			// The ownership message names both accounts; log the sentinel instead.
			logErr := err
			if errors.Is(err, ErrNotOwner) {
				logErr = ErrNotOwner
			}
			logger.WarnContext(ctx, "ownership transfer failed",
				slog.String("step", string(step.name)),
				logging.State(string(terr.Reached)),
				slog.Bool("rolled_back", terr.RolledBack),
				logging.Err(logErr))
			g.finishTransfer(ctx, span, audit, t, terr)
			return nil, terr
		}

		t.state = step.next
		logger.DebugContext(ctx, "transfer step completed",
			slog.String("step", string(step.name)),
			logging.State(string(t.state)))
	}

	logger.InfoContext(ctx, "ownership transfer initiated", logging.Status(logging.StatusSuccess))
	g.finishTransfer(ctx, span, audit, t, nil)
	return t.result(), nil
}

func (g *Gateway) runStep(ctx context.Context, client *Client, t *transfer, step transferStep) error {
	ctx, span := instrumentation.StartTransferStepSpan(ctx, string(step.name))
	defer span.End()

	start := time.Now()
	err := step.run(ctx, client, t)
	g.recordAPI(ctx, step.operation, err, time.Since(start))

	if err != nil {
		instrumentation.SetSpanError(span, err)
		return err
	}
	instrumentation.SetSpanSuccess(span)
	return nil
}

func (g *Gateway) rollback(ctx context.Context, client *Client, t *transfer, terr *TransferError, logger *slog.Logger) {
	// The request may already be cancelled; the cleanup still gets its own deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	span := trace.SpanFromContext(ctx)
	instrumentation.AddSpanEvent(span, "rollback")

	start := time.Now()
	err := client.RemovePermission(ctx, t.fileID, t.grantedPermissionID)
	g.recordAPI(ctx, instrumentation.OperationDelete, err, time.Since(start))
	if err != nil {
		terr.RollbackErr = err
		logger.ErrorContext(ctx, "failed to remove granted writer permission",
			slog.String("permission_id", t.grantedPermissionID),
			logging.Err(err))
		return
	}

	terr.RolledBack = true
	logger.InfoContext(ctx, "removed granted writer permission",
		slog.String("permission_id", t.grantedPermissionID))
}

func (g *Gateway) finishTransfer(ctx context.Context, span trace.Span, audit *instrumentation.TransferAudit, t *transfer, terr *TransferError) {
	var (
		failedStep string
		err        error
	)
	if terr != nil {
		failedStep = string(terr.Step)
		err = terr
		audit.RolledBack = terr.RolledBack
	}
	audit.Complete(string(t.state), failedStep, err)
	instrumentation.EndTransferSpan(span, string(t.state), err)

	g.metrics.RecordTransfer(ctx, string(t.state), failedStep, t.receiver, audit.Duration)
	g.audit.LogTransfer(ctx, audit)
}

func (g *Gateway) recordAPI(ctx context.Context, operation string, err error, d time.Duration) {
	g.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceDrive, operation, instrumentation.StatusFor(err), d)
}

func verifyOwner(ctx context.Context, client *Client, t *transfer) error {
	file, err := client.GetFile(ctx, t.fileID)
	if err != nil {
		return err
	}
	t.fileName = file.Name

	owner := file.OwnerEmail()
	if owner == "" || t.caller == "" || !strings.EqualFold(owner, t.caller) {
		return &OwnershipError{Owner: owner, Caller: t.caller}
	}

	for _, p := range file.Permissions {
		if strings.EqualFold(p.EmailAddress, t.receiver) {
			t.receiverHadAccess = true
			break
		}
	}
	return nil
}

func grantWriter(ctx context.Context, client *Client, t *transfer) error {
	perm, err := client.ShareFile(ctx, t.fileID, &ShareOptions{
		Type:                  PermissionTypeUser,
		Role:                  RoleWriter,
		EmailAddress:          t.receiver,
		SendNotificationEmail: true,
	})
	if err != nil {
		return err
	}
	t.grantedPermissionID = perm.ID
	return nil
}

func locatePermission(ctx context.Context, client *Client, t *transfer) error {
	perms, err := client.ListPermissions(ctx, t.fileID)
	if err != nil {
		return err
	}

	for _, p := range perms {
		if p.Role == RoleWriter && strings.EqualFold(p.EmailAddress, t.receiver) {
			t.permissionID = p.ID
			return nil
		}
	}
	return ErrPermissionNotFound
}

func setPendingOwner(ctx context.Context, client *Client, t *transfer) error {
	_, err := client.SetPendingOwner(ctx, t.fileID, t.permissionID)
	return err
}
