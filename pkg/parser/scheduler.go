package parser

import (
	"strings"
	"time"

	_ "time/tzdata" // embed zoneinfo so America/Bahia resolves without a system tzdata package
)

// SchedulerError is a deterministic parse failure with a
// machine-readable reason.
type SchedulerError struct {
	Reason string
}

func (e *SchedulerError) Error() string { return e.Reason }

func schedulerErr(reason string) error { return &SchedulerError{Reason: reason} }

// SchedulerReply is the normalized result of a successful parse.
type SchedulerReply struct {
	CaseID            string
	AppointmentStatus string // "confirmed" | "denied"
	AppointmentAt     *time.Time
	Location          *string
	Instructions      *string
	Reason            *string
}

var schedulerKeyAliases = map[string][]string{
	"case":         {"case", "caso"},
	"status":       {"status", "situacao", "situação"},
	"date_time":    {"data_hora", "datahora", "datetime", "data_hora_brt"},
	"location":     {"location", "local"},
	"instructions": {"instructions", "instrucoes", "instruções"},
	"reason":       {"reason", "motivo"},
}

var brtLocation *time.Location

func init() {
	loc, err := time.LoadLocation("America/Bahia")
	if err != nil {
		loc = time.FixedZone("BRT", -3*60*60)
	}
	brtLocation = loc
}

// ParseSchedulerReply parses a confirmed/denied Room 3 scheduler reply
// for a specific case id, supporting the three template shapes from
// spec §4.7: positional, header+positional, and keyed.
func ParseSchedulerReply(body string, expectedCaseID string) (*SchedulerReply, error) {
	lines := schedulerNormalizedLines(body)
	if len(lines) == 0 {
		return nil, schedulerErr("empty_message")
	}

	if v := extractValue(lines, "status"); v != nil {
		return parseStatusTemplate(lines, expectedCaseID)
	}

	caseID, err := extractCaseID(lines)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(caseID, expectedCaseID) {
		return nil, schedulerErr("case_id_mismatch")
	}

	parsedLines := stripSectionHeaders(lines)
	if len(parsedLines) == 0 {
		return nil, schedulerErr("empty_message")
	}

	firstLine := strings.ToLower(strings.TrimSpace(parsedLines[0]))
	if firstLine == "denied" || firstLine == "negado" {
		reason := extractValue(parsedLines, "reason")
		return &SchedulerReply{
			CaseID: caseID, AppointmentStatus: "denied", Reason: normalizeSchedulerReason(reason),
		}, nil
	}

	appointmentAt, err := parseBRTDatetime(parsedLines[0])
	if err != nil {
		return nil, err
	}
	location, err := extractRequiredValue(parsedLines, "location")
	if err != nil {
		return nil, err
	}
	instructions, err := extractRequiredValue(parsedLines, "instructions")
	if err != nil {
		return nil, err
	}

	return &SchedulerReply{
		CaseID: caseID, AppointmentStatus: "confirmed", AppointmentAt: &appointmentAt,
		Location: &location, Instructions: &instructions,
	}, nil
}

func parseStatusTemplate(lines []string, expectedCaseID string) (*SchedulerReply, error) {
	caseID, err := extractCaseID(lines)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(caseID, expectedCaseID) {
		return nil, schedulerErr("case_id_mismatch")
	}

	statusRaw, err := extractRequiredValue(lines, "status")
	if err != nil {
		return nil, err
	}
	statusRaw = strings.ToLower(strings.TrimSpace(statusRaw))

	switch statusRaw {
	case "confirmado", "confirmed":
		dateTimeRaw, err := extractRequiredValue(lines, "date_time")
		if err != nil {
			return nil, err
		}
		appointmentAt, err := parseBRTDatetime(dateTimeRaw)
		if err != nil {
			return nil, err
		}
		location, err := extractRequiredValue(lines, "location")
		if err != nil {
			return nil, err
		}
		instructions, err := extractRequiredValue(lines, "instructions")
		if err != nil {
			return nil, err
		}
		return &SchedulerReply{
			CaseID: caseID, AppointmentStatus: "confirmed", AppointmentAt: &appointmentAt,
			Location: &location, Instructions: &instructions,
		}, nil
	case "negado", "denied":
		reasonRaw := extractValue(lines, "reason")
		return &SchedulerReply{
			CaseID: caseID, AppointmentStatus: "denied", Reason: normalizeSchedulerReason(reasonRaw),
		}, nil
	default:
		return nil, schedulerErr("invalid_status_value")
	}
}

func extractCaseID(lines []string) (string, error) {
	value, err := extractRequiredValue(lines, "case")
	if err != nil {
		return "", schedulerErr("missing_case_line")
	}
	if !looksLikeUUID(value) {
		return "", schedulerErr("invalid_case_line")
	}
	return value, nil
}

func stripSectionHeaders(lines []string) []string {
	if len(lines) == 0 {
		return lines
	}
	first := strings.ToLower(strings.TrimSpace(lines[0]))
	switch first {
	case "confirmed", "confirmed:", "confirmado", "confirmado:":
		return lines[1:]
	case "denied:", "negado:":
		if len(lines) >= 2 && (strings.ToLower(strings.TrimSpace(lines[1])) == "denied" || strings.ToLower(strings.TrimSpace(lines[1])) == "negado") {
			return lines[1:]
		}
		return append([]string{"denied"}, lines[1:]...)
	}
	return lines
}

func extractRequiredValue(lines []string, key string) (string, error) {
	value := extractValue(lines, key)
	if value == nil || *value == "" {
		if key == "case" {
			return "", schedulerErr("missing_case_line")
		}
		return "", schedulerErr("missing_" + key + "_line")
	}
	return *value, nil
}

func extractValue(lines []string, key string) *string {
	aliases, ok := schedulerKeyAliases[key]
	if !ok {
		aliases = []string{key}
	}
	for _, line := range lines {
		normalized := strings.ToLower(line)
		for _, alias := range aliases {
			prefix := strings.ToLower(alias) + ":"
			if strings.HasPrefix(normalized, prefix) {
				value := strings.TrimSpace(line[len(prefix):])
				return &value
			}
		}
	}
	return nil
}

func schedulerNormalizedLines(body string) []string {
	var lines []string
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "```") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func normalizeSchedulerReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	normalized := strings.TrimSpace(*reason)
	if emptyReasonMarkers[strings.ToLower(normalized)] {
		return nil
	}
	return &normalized
}

const brtSuffix = " BRT"

func parseBRTDatetime(line string) (time.Time, error) {
	if !strings.HasSuffix(line, brtSuffix) {
		return time.Time{}, schedulerErr("invalid_confirmed_datetime")
	}
	raw := strings.TrimSuffix(line, brtSuffix)
	t, err := time.ParseInLocation("02-01-2006 15:04", raw, brtLocation)
	if err != nil {
		return time.Time{}, schedulerErr("invalid_confirmed_datetime")
	}
	return t, nil
}
