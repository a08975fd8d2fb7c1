package statemachine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

func TestAssertTransition_HappyPath(t *testing.T) {
	path := []models.CaseStatus{
		models.StatusNew,
		models.StatusR1AckProcessing,
		models.StatusExtracting,
		models.StatusLLMStruct,
		models.StatusLLMSuggest,
		models.StatusR2PostWidget,
		models.StatusWaitDoctor,
		models.StatusDoctorAccepted,
		models.StatusR3PostRequest,
		models.StatusWaitAppt,
		models.StatusApptConfirmed,
		models.StatusWaitR1CleanupThumbs,
		models.StatusCleanupRunning,
		models.StatusCleaned,
	}
	for i := 0; i < len(path)-1; i++ {
		require.NoError(t, AssertTransition(path[i], path[i+1]), "step %d", i)
	}
}

func TestAssertTransition_RejectsSkippedStates(t *testing.T) {
	err := AssertTransition(models.StatusNew, models.StatusCleaned)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestAssertTransition_RejectsUnknownSource(t *testing.T) {
	err := AssertTransition(models.CaseStatus("BOGUS"), models.StatusNew)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestAssertTransition_TerminalHasNoSuccessors(t *testing.T) {
	err := AssertTransition(models.StatusCleaned, models.StatusNew)
	require.Error(t, err)
}

func TestAssertTransition_DoctorDeniedPathSkipsScheduling(t *testing.T) {
	require.NoError(t, AssertTransition(models.StatusDoctorDenied, models.StatusWaitR1CleanupThumbs))
}

func TestAssertTransition_FailedFromAnyTerminalStageReachesCleanup(t *testing.T) {
	for _, from := range []models.CaseStatus{
		models.StatusExtracting,
		models.StatusLLMStruct,
		models.StatusLLMSuggest,
	} {
		require.NoError(t, AssertTransition(from, models.StatusFailed), from)
	}
	require.NoError(t, AssertTransition(models.StatusFailed, models.StatusWaitR1CleanupThumbs))
}

func TestAssertTransition_LegacyReplyPostedIsSourceOnlyTombstone(t *testing.T) {
	require.NoError(t, AssertTransition(models.StatusR1FinalReplyPosted, models.StatusWaitR1CleanupThumbs))
	for _, successors := range transitions {
		if successors[models.StatusR1FinalReplyPosted] {
			t.Fatalf("no transition should target the legacy R1_FINAL_REPLY_POSTED status")
		}
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(models.StatusCleaned))
	assert.False(t, IsTerminal(models.StatusNew))
}
