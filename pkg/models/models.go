// Package models defines the plain-struct row shapes shared across the
// case lifecycle engine. None of these wrap a generated ORM entity —
// repositories in pkg/casestore, pkg/journal, pkg/queue, etc. scan
// database rows directly into these structs via sqlx.
package models

import "time"

// CaseStatus enumerates the case lifecycle states. See pkg/statemachine
// for the transition table these values participate in.
type CaseStatus string

const (
	StatusNew                     CaseStatus = "NEW"
	StatusR1AckProcessing         CaseStatus = "R1_ACK_PROCESSING"
	StatusExtracting              CaseStatus = "EXTRACTING"
	StatusLLMStruct               CaseStatus = "LLM_STRUCT"
	StatusLLMSuggest              CaseStatus = "LLM_SUGGEST"
	StatusR2PostWidget            CaseStatus = "R2_POST_WIDGET"
	StatusWaitDoctor              CaseStatus = "WAIT_DOCTOR"
	StatusDoctorAccepted          CaseStatus = "DOCTOR_ACCEPTED"
	StatusDoctorDenied            CaseStatus = "DOCTOR_DENIED"
	StatusR3PostRequest           CaseStatus = "R3_POST_REQUEST"
	StatusWaitAppt                CaseStatus = "WAIT_APPT"
	StatusApptConfirmed           CaseStatus = "APPT_CONFIRMED"
	StatusApptDenied              CaseStatus = "APPT_DENIED"
	StatusFailed                  CaseStatus = "FAILED"
	StatusWaitR1CleanupThumbs     CaseStatus = "WAIT_R1_CLEANUP_THUMBS"
	StatusCleanupRunning          CaseStatus = "CLEANUP_RUNNING"
	StatusCleaned                 CaseStatus = "CLEANED"
	// StatusR1FinalReplyPosted is a legacy value kept for compatibility;
	// see DESIGN.md "Open Question decisions" — no handler produces it.
	StatusR1FinalReplyPosted CaseStatus = "R1_FINAL_REPLY_POSTED"
)

// DoctorDecision enumerates the recognized doctor decision values.
type DoctorDecision string

const (
	DoctorDecisionAccept DoctorDecision = "accept"
	DoctorDecisionDeny   DoctorDecision = "deny"
)

// SupportFlag enumerates the recognized anesthesia support values.
type SupportFlag string

const (
	SupportNone           SupportFlag = "none"
	SupportAnesthesist    SupportFlag = "anesthesist"
	SupportAnesthesistICU SupportFlag = "anesthesist_icu"
)

// AppointmentStatus enumerates scheduler reply outcomes.
type AppointmentStatus string

const (
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentDenied    AppointmentStatus = "denied"
)

// Case is the mutable case row. It is created once by Intake and mutated
// only by pipeline step handlers under pkg/statemachine transition guards.
type Case struct {
	CaseID                   string     `db:"case_id"`
	Status                   CaseStatus `db:"status"`
	Room1OriginRoomID        string     `db:"room1_origin_room_id"`
	Room1OriginEventID       string     `db:"room1_origin_event_id"`
	Room1SenderUserID        string     `db:"room1_sender_user_id"`
	PDFSourceURI             string     `db:"pdf_source_uri"`
	ExtractedText            *string    `db:"extracted_text"`
	AgencyRecordNumber       *string    `db:"agency_record_number"`
	StructuredData           []byte     `db:"structured_data"`
	SuggestedAction          []byte     `db:"suggested_action"`
	DoctorDecision           *string    `db:"doctor_decision"`
	DoctorSupportFlag        *string    `db:"doctor_support_flag"`
	DoctorReason             *string    `db:"doctor_reason"`
	DoctorDecidedAt          *time.Time `db:"doctor_decided_at"`
	AppointmentStatus        *string    `db:"appointment_status"`
	AppointmentAt            *time.Time `db:"appointment_at"`
	AppointmentLocation      *string    `db:"appointment_location"`
	AppointmentInstructions  *string    `db:"appointment_instructions"`
	AppointmentReason        *string    `db:"appointment_reason"`
	AppointmentDecidedAt     *time.Time `db:"appointment_decided_at"`
	Room1FinalReplyEventID   *string    `db:"room1_final_reply_event_id"`
	CreatedAt                time.Time  `db:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at"`
}

// ActorType enumerates who caused a CaseEvent.
type ActorType string

const (
	ActorSystem ActorType = "system"
	ActorBot    ActorType = "bot"
	ActorHuman  ActorType = "human"
)

// CaseEvent is one append-only journal row. Never mutated.
type CaseEvent struct {
	ID              int64     `db:"id"`
	CaseID          string    `db:"case_id"`
	ActorType       ActorType `db:"actor_type"`
	ActorUserID     *string   `db:"actor_user_id"`
	RoomID          *string   `db:"room_id"`
	ExternalEventID *string   `db:"external_event_id"`
	EventType       string    `db:"event_type"`
	Payload         []byte    `db:"payload"`
	CapturedAt      time.Time `db:"captured_at"`
}

// CaseMessageKind enumerates the kinds of chat messages tracked for a
// case, used to drive the cleanup redaction pass.
type CaseMessageKind string

const (
	MessageKindRoom1Origin     CaseMessageKind = "room1_origin"
	MessageKindBotProcessing   CaseMessageKind = "bot_processing"
	MessageKindRoom1Final      CaseMessageKind = "room1_final"
	MessageKindRoom2Root       CaseMessageKind = "room2_root"
	MessageKindRoom3Request    CaseMessageKind = "room3_request"
	MessageKindRoom3Template   CaseMessageKind = "room3_template"
)

// CaseMessage tracks one chat message posted or observed for a case.
// Unique on (room_id, external_event_id). Append-only.
type CaseMessage struct {
	ID              int64           `db:"id"`
	CaseID          string          `db:"case_id"`
	RoomID          string          `db:"room_id"`
	ExternalEventID string          `db:"external_event_id"`
	SenderUserID    *string         `db:"sender_user_id"`
	Kind            CaseMessageKind `db:"kind"`
	CreatedAt       time.Time       `db:"created_at"`
}

// JobStatus enumerates the durable job queue lifecycle.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is a durable unit of pipeline work.
type Job struct {
	ID        int64     `db:"id"`
	CaseID    *string   `db:"case_id"`
	JobType   string    `db:"job_type"`
	Payload   []byte    `db:"payload"`
	Status    JobStatus `db:"status"`
	Attempts  int       `db:"attempts"`
	RunAfter  time.Time `db:"run_after"`
	LastError *string   `db:"last_error"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CheckpointStage enumerates the reaction checkpoints a posted message may
// require before the pipeline can proceed.
type CheckpointStage string

const (
	CheckpointRoom2Ack   CheckpointStage = "ROOM2_ACK"
	CheckpointRoom3Ack   CheckpointStage = "ROOM3_ACK"
	CheckpointRoom1Final CheckpointStage = "ROOM1_FINAL"
)

// CheckpointOutcome enumerates the two states a checkpoint can be in.
type CheckpointOutcome string

const (
	OutcomePending         CheckpointOutcome = "PENDING"
	OutcomePositiveReceived CheckpointOutcome = "POSITIVE_RECEIVED"
)

// ReactionCheckpoint records an expected positive reaction to a posted
// message. Unique on (room_id, target_external_event_id).
type ReactionCheckpoint struct {
	ID                    int64             `db:"id"`
	CaseID                string            `db:"case_id"`
	Stage                 CheckpointStage   `db:"stage"`
	RoomID                string            `db:"room_id"`
	TargetExternalEventID string            `db:"target_external_event_id"`
	ExpectedAt            time.Time         `db:"expected_at"`
	Outcome               CheckpointOutcome `db:"outcome"`
	ReactionUserID        *string           `db:"reaction_user_id"`
	ReactionEventID       *string           `db:"reaction_event_id"`
	ReactionReceivedAt    *time.Time        `db:"reaction_received_at"`
}

// Role enumerates auth roles.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleReader Role = "reader"
)

// AccountStatus enumerates a user's account lifecycle state.
type AccountStatus string

const (
	AccountActive  AccountStatus = "active"
	AccountBlocked AccountStatus = "blocked"
	AccountRemoved AccountStatus = "removed"
)

// User is an authenticated operator of the monitoring/widget surface.
type User struct {
	UserID        string        `db:"user_id"`
	Email         string        `db:"email"`
	PasswordHash  string        `db:"password_hash"`
	Role          Role          `db:"role"`
	AccountStatus AccountStatus `db:"account_status"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
}

// AuthToken is an opaque bearer token; only its sha256 hash is persisted.
type AuthToken struct {
	TokenHash  string     `db:"token_hash"`
	UserID     string     `db:"user_id"`
	IssuedAt   time.Time  `db:"issued_at"`
	ExpiresAt  time.Time  `db:"expires_at"`
	RevokedAt  *time.Time `db:"revoked_at"`
	LastUsedAt *time.Time `db:"last_used_at"`
}

// AuthEvent is an append-only audit row for auth-relevant actions.
type AuthEvent struct {
	ID         int64     `db:"id"`
	UserID     *string   `db:"user_id"`
	ActorID    *string   `db:"actor_id"`
	EventType  string    `db:"event_type"`
	Detail     string    `db:"detail"`
	OccurredAt time.Time `db:"occurred_at"`
}

// PromptTemplate is a versioned LLM prompt. At most one row with a given
// Name may have IsActive = true, enforced by a partial unique index.
type PromptTemplate struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Version   int       `db:"version"`
	Content   string    `db:"content"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}
