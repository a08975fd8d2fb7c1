package summary

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// brtLocation resolves Brazil's America/Bahia timezone for rendering
// the summary window in local time. pkg/parser and pkg/pipeline each
// resolve their own copy rather than sharing a global.
var brtLocation *time.Location

func init() {
	loc, err := time.LoadLocation("America/Bahia")
	if err != nil {
		loc = time.FixedZone("BRT", -3*60*60)
	}
	brtLocation = loc
}

const summaryDatetimeLayout = "02/01/2006 15:04"

// Poster is the narrow chat-posting port PostToRoom4 depends on.
type Poster interface {
	PostText(ctx context.Context, roomID, body string) (string, error)
}

// Service computes and posts one Room-4 supervisor summary message.
type Service struct {
	room4ID string
	metrics *Store
	poster  Poster
}

// NewService constructs a Service.
func NewService(room4ID string, metrics *Store, poster Poster) *Service {
	return &Service{room4ID: room4ID, metrics: metrics, poster: poster}
}

// PostToRoom4 aggregates metrics for [windowStart, windowEnd) and
// publishes the rendered message, returning the posted event id.
func (s *Service) PostToRoom4(ctx context.Context, windowStart, windowEnd time.Time) (string, error) {
	metrics, err := s.metrics.AggregateMetrics(ctx, windowStart, windowEnd)
	if err != nil {
		return "", fmt.Errorf("aggregate summary metrics: %w", err)
	}
	body := renderSummaryMessage(windowStart, windowEnd, *metrics)
	return s.poster.PostText(ctx, s.room4ID, body)
}

// renderSummaryMessage renders the deterministic Portuguese summary
// body for Room-4 supervisors.
func renderSummaryMessage(windowStart, windowEnd time.Time, metrics Metrics) string {
	startLocal := windowStart.In(brtLocation)
	endLocal := windowEnd.In(brtLocation)
	lines := []string{
		"📊 Resumo de Supervisão",
		fmt.Sprintf("Janela (BRT): %s → %s", startLocal.Format(summaryDatetimeLayout), endLocal.Format(summaryDatetimeLayout)),
		"",
		fmt.Sprintf("- Pacientes recebidos: %d", metrics.PatientsReceived),
		fmt.Sprintf("- Relatórios processados: %d", metrics.ReportsProcessed),
		fmt.Sprintf("- Casos avaliados: %d", metrics.CasesEvaluated),
		fmt.Sprintf("- Aceitos: %d", metrics.Accepted),
		fmt.Sprintf("- Recusados: %d", metrics.Refused),
	}
	return strings.Join(lines, "\n")
}
