package pipeline

import (
	"context"

	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
)

// redactionFailedPayload is the CaseEvent payload for a failed
// redaction.
type redactionFailedPayload struct {
	Error string `json:"error"`
}

// cleanupCompletedPayload is the CaseEvent payload for the terminal
// CLEANUP_COMPLETED event.
type cleanupCompletedPayload struct {
	CountRedactedSuccess int `json:"count_redacted_success"`
	CountRedactedFailed  int `json:"count_redacted_failed"`
}

// handleCleanupCase redacts every tracked chat message for a case and
// marks it CLEANED. A redaction failure is logged and counted but never
// aborts the loop or blocks the terminal transition.
func (d *Dispatcher) handleCleanupCase(ctx context.Context, caseID string) error {
	refs, err := d.journal.ListMessageRefsForCase(ctx, caseID)
	if err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	successCount, failedCount := 0, 0
	for _, ref := range refs {
		if err := d.chat.RedactEvent(ctx, ref.RoomID, ref.ExternalEventID); err != nil {
			failedCount++
			_ = d.journal.AppendCaseEvent(ctx, caseID, models.ActorSystem, nil, &ref.RoomID, &ref.ExternalEventID,
				"MATRIX_EVENT_REDACTION_FAILED", redactionFailedPayload{Error: err.Error()})
			continue
		}
		successCount++
		_ = d.journal.AppendCaseEvent(ctx, caseID, models.ActorSystem, nil, &ref.RoomID, &ref.ExternalEventID,
			"MATRIX_EVENT_REDACTED", nil)
	}

	if err := d.cases.MarkCleanupCompleted(ctx, caseID); err != nil {
		return &queue.HandlerError{Cause: "fatal", Err: err}
	}

	if err := d.journal.AppendCaseEvent(ctx, caseID, models.ActorSystem, nil, nil, nil, "CLEANUP_COMPLETED", cleanupCompletedPayload{
		CountRedactedSuccess: successCount, CountRedactedFailed: failedCount,
	}); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	return nil
}
