// Package parser implements the two strict chat-reply template parsers
// (C8): Room 2 doctor decision replies and Room 3 scheduler replies.
// Both are pure functions — they never touch storage — with diacritic
// stripping done via golang.org/x/text/unicode/norm.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DoctorDecisionError is a deterministic parse failure with a
// machine-readable reason, posted back to the reply's author verbatim.
type DoctorDecisionError struct {
	Reason string
}

func (e *DoctorDecisionError) Error() string { return e.Reason }

func doctorErr(reason string) error { return &DoctorDecisionError{Reason: reason} }

// DoctorDecisionReply is the normalized result of a successful parse.
type DoctorDecisionReply struct {
	CaseID      string
	Decision    string
	SupportFlag string
	Reason      *string
}

var doctorRequiredKeys = []string{"decision", "support_flag", "case_id"}

var doctorKeyAliases = map[string][]string{
	"decision":     {"decision", "decisao", "decisão"},
	"support_flag": {"support_flag", "suporte"},
	"reason":       {"reason", "motivo"},
	"case_id":      {"case_id", "caso"},
}

var doctorForbiddenTypedIdentityKeys = map[string]bool{
	"doctor_user_id": true, "medico_user_id": true, "usuario_medico": true,
}

var doctorDecisionAliases = map[string]string{
	"accept": "accept", "deny": "deny",
	"aceitar": "accept", "aceito": "accept", "aceita": "accept",
	"negar": "deny", "negado": "deny", "negar.": "deny",
}

var doctorSupportAliases = map[string]string{
	"none": "none", "nenhum": "none",
	"anesthesist": "anesthesist", "anestesista": "anesthesist",
	"anesthesist_icu": "anesthesist_icu", "anestesista_uti": "anesthesist_icu", "anestesista_icu": "anesthesist_icu",
}

var emptyReasonMarkers = map[string]bool{
	"": true, "(opcional)": true, "opcional": true, "(vazio)": true, "vazio": true,
	"-": true, "n/a": true, "na": true,
}

var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// ParseDoctorDecisionReply parses a strict Room 2 doctor decision reply.
// expectedCaseID, when non-empty, is cross-checked against the parsed
// case_id and yields case_id_mismatch on divergence.
func ParseDoctorDecisionReply(body string, expectedCaseID string) (*DoctorDecisionReply, error) {
	lines := normalizedMessageLines(body)
	if len(lines) == 0 {
		return nil, doctorErr("empty_message")
	}

	fields := map[string]string{}
	for _, line := range lines {
		normalizedLine := strings.ReplaceAll(line, "：", ":")
		idx := strings.Index(normalizedLine, ":")
		if idx < 0 {
			continue
		}
		keyRaw, value := normalizedLine[:idx], normalizedLine[idx+1:]
		normalizedKey := normalizeToken(strings.TrimSpace(keyRaw))
		if doctorForbiddenTypedIdentityKeys[normalizedKey] {
			return nil, doctorErr("unknown_field")
		}
		parsedKey := resolveDoctorKey(normalizedKey)
		if parsedKey == "" {
			continue
		}
		if _, exists := fields[parsedKey]; exists {
			return nil, doctorErr("duplicate_field")
		}
		fields[parsedKey] = strings.TrimSpace(value)
	}

	for _, required := range doctorRequiredKeys {
		if _, ok := fields[required]; !ok {
			return nil, doctorErr(fmt.Sprintf("missing_%s_line", required))
		}
	}

	decisionRaw := strings.ToLower(fields["decision"])
	decision, ok := doctorDecisionAliases[decisionRaw]
	if !ok {
		return nil, doctorErr("invalid_decision_value")
	}

	supportRaw := strings.ToLower(fields["support_flag"])
	supportFlag, ok := doctorSupportAliases[supportRaw]
	if !ok {
		return nil, doctorErr("invalid_support_flag_value")
	}
	if decision == "deny" && supportFlag != "none" {
		return nil, doctorErr("invalid_support_flag_for_decision")
	}

	caseRaw := fields["case_id"]
	if match := uuidPattern.FindString(caseRaw); match != "" {
		caseRaw = match
	}
	if !looksLikeUUID(caseRaw) {
		return nil, doctorErr("invalid_case_line")
	}
	if expectedCaseID != "" && !strings.EqualFold(caseRaw, expectedCaseID) {
		return nil, doctorErr("case_id_mismatch")
	}

	var reason *string
	if decision != "accept" {
		reason = normalizeReason(fields["reason"])
	}

	return &DoctorDecisionReply{
		CaseID: caseRaw, Decision: decision, SupportFlag: supportFlag, Reason: reason,
	}, nil
}

func resolveDoctorKey(normalizedKey string) string {
	for canonical, aliases := range doctorKeyAliases {
		for _, alias := range aliases {
			if normalizeToken(alias) == normalizedKey {
				return canonical
			}
		}
	}
	return ""
}

func normalizedMessageLines(body string) []string {
	var lines []string
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "```") {
			continue
		}
		if strings.HasPrefix(line, ">") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func normalizeReason(raw string) *string {
	normalized := strings.TrimSpace(raw)
	if emptyReasonMarkers[strings.ToLower(normalized)] {
		return nil
	}
	return &normalized
}

var repeatedUnderscores = regexp.MustCompile(`_+`)

// normalizeToken lowercases, trims backtick/asterisk/underscore/space
// fencing, maps separators to underscore, strips diacritics via NFKD
// decomposition, collapses runs of underscores, and trims leading and
// trailing underscores.
func normalizeToken(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.Trim(normalized, "`*_ ")
	normalized = strings.NewReplacer("-", "_", "/", "_", " ", "_").Replace(normalized)
	normalized = stripDiacritics(normalized)
	normalized = repeatedUnderscores.ReplaceAllString(normalized, "_")
	return strings.Trim(normalized, "_")
}

// stripDiacritics removes combining marks after NFKD decomposition,
// the Go equivalent of Python's unicodedata.normalize("NFKD", ...) plus
// a combining-character filter.
func stripDiacritics(value string) string {
	decomposed := norm.NFKD.String(value)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if isCombiningMark(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isCombiningMark reports whether r falls in a Unicode combining-mark
// block (the ranges NFKD decomposition of Latin diacritics produces).
func isCombiningMark(r rune) bool {
	return (r >= 0x0300 && r <= 0x036F) || // Combining Diacritical Marks
		(r >= 0x1AB0 && r <= 0x1AFF) ||
		(r >= 0x1DC0 && r <= 0x1DFF) ||
		(r >= 0x20D0 && r <= 0x20FF) ||
		(r >= 0xFE20 && r <= 0xFE2F)
}

func looksLikeUUID(s string) bool {
	return uuidPattern.MatchString(s) && len(s) == 36
}
