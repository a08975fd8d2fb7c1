package pipeline

import (
	"context"

	"github.com/carlosapgomes/triage-automation/pkg/checkpoint"
	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// HandleReaction resolves an inbound chat reaction against the pending
// reaction checkpoints and, for ROOM1_FINAL, kicks off cleanup; for the
// ROOM2_ACK/ROOM3_ACK stages it is audit-only, since those checkpoints
// exist purely to record that a human acknowledged the post (spec
// §4.8, §4.6). A reaction matching no pending checkpoint is not an
// error condition.
func (d *Dispatcher) HandleReaction(ctx context.Context, roomID, relatedEventID, reactorUserID, reactionEventID string) error {
	caseID, stage, err := d.checkpoints.MatchIncomingReaction(ctx, roomID, relatedEventID, reactorUserID, reactionEventID)
	if err != nil {
		if err == checkpoint.ErrNoMatch {
			return nil
		}
		return err
	}

	switch stage {
	case models.CheckpointRoom1Final:
		if err := d.cases.SetStatusWithTransition(ctx, caseID, models.StatusCleanupRunning); err != nil {
			return err
		}
		_, err := d.queue.Enqueue(ctx, &caseID, JobCleanupCase, jobPayload{CaseID: caseID}, zeroTime)
		return err
	case models.CheckpointRoom2Ack:
		return d.journal.AppendCaseEvent(ctx, caseID, models.ActorHuman, &reactorUserID, &roomID, &reactionEventID, "ROOM2_ACK_RECEIVED", nil)
	case models.CheckpointRoom3Ack:
		return d.journal.AppendCaseEvent(ctx, caseID, models.ActorHuman, &reactorUserID, &roomID, &reactionEventID, "ROOM3_ACK_RECEIVED", nil)
	default:
		return nil
	}
}
