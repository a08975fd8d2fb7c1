// Package monitoring implements the dashboard read model (C11): a
// paginated case list ordered by latest activity and a per-case
// unified chronological timeline merging case events and posted chat
// messages, backed by direct SQL queries over the case/event/message
// tables.
package monitoring

import (
	"time"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// TimelineSource identifies which underlying table a TimelineEntry came
// from.
type TimelineSource string

const (
	SourceCaseEvent   TimelineSource = "case_event"
	SourceCaseMessage TimelineSource = "case_message"
)

// ListFilter narrows a paginated case list query.
type ListFilter struct {
	Status       *models.CaseStatus
	ActivityFrom *time.Time // inclusive, UTC day start
	ActivityTo   *time.Time // exclusive, UTC next-day start
	Page         int
	PageSize     int
}

// ListItem is one row in a paginated case list response.
type ListItem struct {
	CaseID           string
	Status           models.CaseStatus
	LatestActivityAt time.Time
}

// ListPage is the paginated case list result.
type ListPage struct {
	Items    []ListItem
	Page     int
	PageSize int
	Total    int
}

// TimelineEntry is one chronological event in a case's unified timeline.
type TimelineEntry struct {
	Source      TimelineSource
	Timestamp   time.Time
	RoomID      *string
	Actor       string
	EventType   string
	ContentText *string
	Payload     []byte
}

// CaseDetail is the per-case monitoring detail: status plus a unified
// timeline sorted ascending by Timestamp.
type CaseDetail struct {
	CaseID   string
	Status   models.CaseStatus
	Timeline []TimelineEntry
}
