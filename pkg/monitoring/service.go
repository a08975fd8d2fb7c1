package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// ErrInvalidPeriod is returned when ToDate precedes FromDate.
var ErrInvalidPeriod = errors.New("to_date must be greater than or equal to from_date")

// ListQuery is the caller-facing case-list query, using plain dates
// (day granularity, as in the HTTP surface) rather than the half-open
// UTC timestamp range the Store operates on.
type ListQuery struct {
	Page     int
	PageSize int
	Status   *models.CaseStatus
	FromDate *time.Time // day-granularity; time-of-day ignored
	ToDate   *time.Time
}

// Service is the monitoring read model's application-facing API.
type Service struct {
	store *Store
}

// NewService constructs a Service over a Store.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// ListCases validates the date range, defaults to "today" (UTC) when
// both FromDate and ToDate are absent, and delegates to the Store with
// the dates converted to a half-open UTC timestamp range.
func (s *Service) ListCases(ctx context.Context, query ListQuery) (*ListPage, error) {
	if query.FromDate != nil && query.ToDate != nil && query.ToDate.Before(*query.FromDate) {
		return nil, ErrInvalidPeriod
	}

	fromDate, toDate := query.FromDate, query.ToDate
	if fromDate == nil && toDate == nil {
		today := dayStart(time.Now().UTC())
		fromDate, toDate = &today, &today
	}

	filter := ListFilter{Status: query.Status, Page: query.Page, PageSize: query.PageSize}
	if fromDate != nil {
		from := dayStart(*fromDate)
		filter.ActivityFrom = &from
	}
	if toDate != nil {
		to := nextDayStart(*toDate)
		filter.ActivityTo = &to
	}

	return s.store.ListCases(ctx, filter)
}

// GetCaseDetail returns the per-case unified timeline, or nil (no
// error) when caseID does not exist.
func (s *Service) GetCaseDetail(ctx context.Context, caseID string) (*CaseDetail, error) {
	return s.store.GetCaseDetail(ctx, caseID)
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nextDayStart(t time.Time) time.Time {
	return dayStart(t).AddDate(0, 0, 1)
}
