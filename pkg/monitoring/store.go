package monitoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// Store is the monitoring read-model repository.
type Store struct {
	db *sqlx.DB
}

// NewStore constructs a Store over a *sqlx.DB.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type listRow struct {
	CaseID           string            `db:"case_id"`
	Status           models.CaseStatus `db:"status"`
	LatestActivityAt sql.NullTime      `db:"latest_activity_at"`
}

// ListCases returns a paginated, latest-activity-ordered case list.
// latest_activity_at is the greatest of the case row's own updated_at
// and the most recent case_events/case_messages timestamps for that
// case, so a case that only received a chat reaction still sorts as
// recently active.
func (s *Store) ListCases(ctx context.Context, filter ListFilter) (*ListPage, error) {
	where := []string{"1=1"}
	args := []any{}
	argN := 0
	next := func(v any) string {
		argN++
		args = append(args, v)
		return fmt.Sprintf("$%d", argN)
	}

	if filter.Status != nil {
		where = append(where, "c.status = "+next(*filter.Status))
	}

	havingParts := []string{}
	if filter.ActivityFrom != nil {
		havingParts = append(havingParts, "latest_activity_at >= "+next(*filter.ActivityFrom))
	}
	if filter.ActivityTo != nil {
		havingParts = append(havingParts, "latest_activity_at < "+next(*filter.ActivityTo))
	}
	having := ""
	if len(havingParts) > 0 {
		having = "HAVING " + joinAnd(havingParts)
	}

	baseQuery := fmt.Sprintf(`
		SELECT c.case_id, c.status, GREATEST(
			c.updated_at,
			COALESCE((SELECT max(e.captured_at) FROM case_events e WHERE e.case_id = c.case_id), c.updated_at),
			COALESCE((SELECT max(m.created_at) FROM case_messages m WHERE m.case_id = c.case_id), c.updated_at)
		) AS latest_activity_at
		FROM cases c
		WHERE %s`, joinAnd(where))

	countQuery := fmt.Sprintf(`SELECT count(*) FROM (%s) sub %s`, baseQuery, having)
	var total int
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, fmt.Errorf("count monitoring cases: %w", err)
	}

	pageArgs := append([]any{}, args...)
	limitPlaceholder := fmt.Sprintf("$%d", argN+1)
	offsetPlaceholder := fmt.Sprintf("$%d", argN+2)
	pageArgs = append(pageArgs, filter.PageSize, (filter.Page-1)*filter.PageSize)

	listQuery := fmt.Sprintf(`
		SELECT * FROM (%s) sub %s
		ORDER BY latest_activity_at DESC, case_id
		LIMIT %s OFFSET %s`, baseQuery, having, limitPlaceholder, offsetPlaceholder)

	var rows []listRow
	if err := s.db.SelectContext(ctx, &rows, listQuery, pageArgs...); err != nil {
		return nil, fmt.Errorf("list monitoring cases: %w", err)
	}

	items := make([]ListItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, ListItem{CaseID: r.CaseID, Status: r.Status, LatestActivityAt: r.LatestActivityAt.Time})
	}
	return &ListPage{Items: items, Page: filter.Page, PageSize: filter.PageSize, Total: total}, nil
}

// GetCaseDetail returns the case's status and unified timeline, or nil
// (no error) if no case with caseID exists.
func (s *Store) GetCaseDetail(ctx context.Context, caseID string) (*CaseDetail, error) {
	var status models.CaseStatus
	err := s.db.GetContext(ctx, &status, `SELECT status FROM cases WHERE case_id = $1`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get case status: %w", err)
	}

	var events []models.CaseEvent
	if err := s.db.SelectContext(ctx, &events,
		`SELECT * FROM case_events WHERE case_id = $1 ORDER BY captured_at`, caseID); err != nil {
		return nil, fmt.Errorf("list case events: %w", err)
	}
	var msgs []models.CaseMessage
	if err := s.db.SelectContext(ctx, &msgs,
		`SELECT * FROM case_messages WHERE case_id = $1 ORDER BY created_at`, caseID); err != nil {
		return nil, fmt.Errorf("list case messages: %w", err)
	}

	timeline := make([]TimelineEntry, 0, len(events)+len(msgs))
	for _, e := range events {
		actor := string(e.ActorType)
		if e.ActorUserID != nil {
			actor = *e.ActorUserID
		}
		timeline = append(timeline, TimelineEntry{
			Source:    SourceCaseEvent,
			Timestamp: e.CapturedAt,
			RoomID:    e.RoomID,
			Actor:     actor,
			EventType: e.EventType,
			Payload:   e.Payload,
		})
	}
	for _, m := range msgs {
		actor := "bot"
		if m.SenderUserID != nil {
			actor = *m.SenderUserID
		}
		roomID := m.RoomID
		timeline = append(timeline, TimelineEntry{
			Source:    SourceCaseMessage,
			Timestamp: m.CreatedAt,
			RoomID:    &roomID,
			Actor:     actor,
			EventType: string(m.Kind),
		})
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Timestamp.Before(timeline[j].Timestamp)
	})

	return &CaseDetail{CaseID: caseID, Status: status, Timeline: timeline}, nil
}

func joinAnd(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += " AND " + p
	}
	return out
}
