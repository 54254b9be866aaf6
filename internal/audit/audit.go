// Package audit appends entries to the `logs` collection. The platform
// never reads these entries back; they exist for external reconciliation
// tooling. A failed audit write is logged and returned but must never undo
// the operation it describes.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/store"
)

// Action tags.
const (
	RoleChange          = "role_change"
	RoleChangeFailed    = "role_change_failed"
	RoleGrant           = "role_grant"
	RoleGrantFailed     = "role_grant_failed"
	RoleClaimReconciled = "role_claim_reconciled"
	Fanout              = "fanout"
	FanoutFailed        = "fanout_failed"
	RiskAssessment      = "risk_assessment"
	PortfolioUpdate     = "portfolio_update"
	AccessDenied        = "access_denied"
	RetentionSweep      = "retention_sweep"
)

// Writer appends audit entries through the document store.
type Writer struct {
	docs store.DocumentStore
	log  *zap.Logger
	now  func() time.Time
}

// NewWriter returns a Writer. A nil logger is replaced by a no-op logger.
func NewWriter(docs store.DocumentStore, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{docs: docs, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Record appends a successful entry.
func (w *Writer) Record(ctx context.Context, actorID, action string, data map[string]any) error {
	return w.write(ctx, actorID, action, true, data)
}

// Failure appends an entry for a failed attempt, adding the error text.
func (w *Writer) Failure(ctx context.Context, actorID, action string, cause error, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	if cause != nil {
		data["error"] = cause.Error()
	}
	return w.write(ctx, actorID, action, false, data)
}

func (w *Writer) write(ctx context.Context, actorID, action string, success bool, data map[string]any) error {
	entry := model.AuditLogEntry{
		ActorID:   actorID,
		Action:    action,
		Success:   success,
		Data:      data,
		CreatedAt: w.now(),
	}
	if _, err := w.docs.Create(ctx, store.Logs, entry); err != nil {
		w.log.Error("audit write failed",
			zap.String("actor", actorID), zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}
