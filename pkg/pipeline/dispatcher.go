// Package pipeline implements the step handlers (C7) dispatched by the
// job queue worker (C6) and the four directly-triggered chat paths
// (intake, doctor reply, scheduler reply, reaction). One Dispatcher
// implements both pkg/queue.Handler and pkg/chatgateway.Handlers: a
// single struct owning every collaborator a pipeline step needs (case
// store, journal, queue, checkpoints, chat gateway, LLM client, prompt
// templates, PDF extractor), switching on an opaque job_type/event kind
// rather than one executor per step.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/carlosapgomes/triage-automation/pkg/casestore"
	"github.com/carlosapgomes/triage-automation/pkg/checkpoint"
	"github.com/carlosapgomes/triage-automation/pkg/intake"
	"github.com/carlosapgomes/triage-automation/pkg/journal"
	"github.com/carlosapgomes/triage-automation/pkg/llm"
	"github.com/carlosapgomes/triage-automation/pkg/metrics"
	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/pdf"
	"github.com/carlosapgomes/triage-automation/pkg/prompttemplate"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
)

// Job type strings dispatched through Handle, per spec §4.6.
const (
	JobProcessPDFCase             = "process_pdf_case"
	JobRunLLM1                    = "run_llm1"
	JobRunLLM2                    = "run_llm2"
	JobPostRoom2Widget            = "post_room2_widget"
	JobPostRoom3Request           = "post_room3_request"
	JobPostRoom1FinalAppt         = "post_room1_final_appt"
	JobPostRoom1FinalApptDenied   = "post_room1_final_appt_denied"
	JobPostRoom1FinalDenialTriage = "post_room1_final_denial_triage"
	JobPostRoom1FinalFailure      = "post_room1_final_failure"
	JobCleanupCase                = "cleanup_case"
)

// ChatClient is the narrow Chat Gateway surface the pipeline needs,
// consumer-owned rather than importing *chatgateway.Client concretely.
type ChatClient interface {
	PostText(ctx context.Context, roomID, body string) (string, error)
	ReplyText(ctx context.Context, roomID, parentEventID, body string) (string, error)
	RedactEvent(ctx context.Context, roomID, eventID string) error
	DownloadMedia(ctx context.Context, mxcURI string) ([]byte, error)
}

// Rooms names the two rooms the pipeline posts to besides room 1
// (the Case already carries its own room1_origin_room_id).
type Rooms struct {
	Room2ID string
	Room3ID string
}

// Dispatcher implements queue.Handler (job_type dispatch) and
// chatgateway.Handlers (directly-triggered chat paths).
type Dispatcher struct {
	cases        *casestore.Store
	journal      *journal.Store
	queue        *queue.Store
	checkpoints  *checkpoint.Store
	prompts      *prompttemplate.Store
	chat         ChatClient
	llmClient    llm.Client
	pdfExtractor pdf.Extractor
	intake       *intake.Service
	rooms        Rooms
}

// NewDispatcher constructs a Dispatcher wiring every collaborator a
// step handler or chat-triggered path needs.
func NewDispatcher(
	cases *casestore.Store,
	journalStore *journal.Store,
	queueStore *queue.Store,
	checkpoints *checkpoint.Store,
	prompts *prompttemplate.Store,
	chat ChatClient,
	llmClient llm.Client,
	pdfExtractor pdf.Extractor,
	intakeService *intake.Service,
	rooms Rooms,
) *Dispatcher {
	return &Dispatcher{
		cases:        cases,
		journal:      journalStore,
		queue:        queueStore,
		checkpoints:  checkpoints,
		prompts:      prompts,
		chat:         chat,
		llmClient:    llmClient,
		pdfExtractor: pdfExtractor,
		intake:       intakeService,
		rooms:        rooms,
	}
}

// failurePayload is the payload shape for post_room1_final_failure jobs,
// carrying the cause/details OnJobFailed observed.
type failurePayload struct {
	CaseID  string `json:"case_id"`
	Cause   string `json:"cause"`
	Details string `json:"details"`
}

// Handle dispatches a leased Job by its JobType, implementing
// queue.Handler. Every job row carries its case_id in the Job.CaseID
// column (set at Enqueue time); handlers needing extra fields decode
// job.Payload themselves. Each case below returns a
// *queue.HandlerError on failure so the worker can classify retriable
// vs fatal (spec §7).
func (d *Dispatcher) Handle(ctx context.Context, job *models.Job) error {
	if job.CaseID == nil || *job.CaseID == "" {
		return &queue.HandlerError{Cause: "fatal", Err: fmt.Errorf("job %d (%s) has no case_id", job.ID, job.JobType)}
	}
	caseID := *job.CaseID

	started := time.Now()
	defer func() {
		metrics.ObserveStage(job.JobType, time.Since(started).Seconds())
	}()

	switch job.JobType {
	case JobProcessPDFCase:
		return d.handleProcessPDFCase(ctx, caseID)
	case JobRunLLM1:
		return d.handleRunLLM1(ctx, caseID)
	case JobRunLLM2:
		return d.handleRunLLM2(ctx, caseID)
	case JobPostRoom2Widget:
		return d.handlePostRoom2Widget(ctx, caseID)
	case JobPostRoom3Request:
		return d.handlePostRoom3Request(ctx, caseID)
	case JobPostRoom1FinalAppt:
		return d.handlePostRoom1FinalAppt(ctx, caseID)
	case JobPostRoom1FinalApptDenied:
		return d.handlePostRoom1FinalApptDenied(ctx, caseID)
	case JobPostRoom1FinalDenialTriage:
		return d.handlePostRoom1FinalDenialTriage(ctx, caseID)
	case JobPostRoom1FinalFailure:
		var payload failurePayload
		if err := decodeJobPayload(job.Payload, &payload); err != nil {
			return &queue.HandlerError{Cause: "fatal", Err: err}
		}
		return d.handlePostRoom1FinalFailure(ctx, caseID, payload.Cause, payload.Details)
	case JobCleanupCase:
		return d.handleCleanupCase(ctx, caseID)
	default:
		return &queue.HandlerError{Cause: "fatal", Err: fmt.Errorf("unknown job_type %q", job.JobType)}
	}
}

// HandleIntake delegates to pkg/intake, implementing
// chatgateway.Handlers for the Room 1 PDF submission path.
func (d *Dispatcher) HandleIntake(ctx context.Context, ev intake.ParsedRoom1PDFIntakeEvent) error {
	_, err := d.intake.Ingest(ctx, ev)
	return err
}

// OnJobFailed implements queue.OnJobFailed: once a job reaches the
// terminal failed state, move the case to FAILED and enqueue the
// user-facing failure reply (spec §4.6, §7 FatalHandler(cause)).
func (d *Dispatcher) OnJobFailed(ctx context.Context, job *models.Job, herr *queue.HandlerError) {
	if job.CaseID == nil || *job.CaseID == "" {
		return
	}
	caseID := *job.CaseID

	if err := d.cases.SetStatusWithTransition(ctx, caseID, models.StatusFailed); err != nil {
		return
	}
	_ = d.journal.AppendCaseEvent(ctx, caseID, models.ActorSystem, nil, nil, nil, "CASE_FAILED", map[string]string{
		"cause": herr.Cause, "details": herr.Details,
	})
	_, _ = d.queue.Enqueue(ctx, &caseID, JobPostRoom1FinalFailure, failurePayload{
		CaseID: caseID, Cause: herr.Cause, Details: herr.Error(),
	}, zeroTime)
}
