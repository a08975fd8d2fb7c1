package pipeline

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
)

// agencyRecordNumberToken matches the first standalone 5-digit token in
// extracted PDF text.
var agencyRecordNumberToken = regexp.MustCompile(`\b[0-9]{5}\b`)

// minSynthesizedRecordNumberLength is the minimum length of the
// synthesized fallback record number (epoch-millis is already well
// over this).
const minSynthesizedRecordNumberLength = 13

// handleProcessPDFCase downloads the case's PDF, extracts text, strips
// the agency record number token from the saved clean text (or
// synthesizes a fallback when none is present), and advances the case
// to EXTRACTING (spec §4.6).
func (d *Dispatcher) handleProcessPDFCase(ctx context.Context, caseID string) error {
	c, err := d.cases.Get(ctx, caseID)
	if err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	pdfBytes, err := d.chat.DownloadMedia(ctx, c.PDFSourceURI)
	if err != nil {
		return &queue.HandlerError{Cause: "download", Err: err}
	}

	rawText, err := d.pdfExtractor.ExtractText(ctx, pdfBytes)
	if err != nil {
		return &queue.HandlerError{Cause: "extract", Err: err}
	}

	cleanText, recordNumber := extractAndStripAgencyRecordNumber(rawText)

	if err := d.cases.StorePDFExtraction(ctx, caseID, cleanText, recordNumber); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	if err := d.journal.AppendCaseEvent(ctx, caseID, models.ActorSystem, nil, nil, nil, "PDF_EXTRACTED", map[string]string{
		"agency_record_number": recordNumber,
	}); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}

	if _, err := d.queue.Enqueue(ctx, &caseID, JobRunLLM1, jobPayload{CaseID: caseID}, zeroTime); err != nil {
		return &queue.HandlerError{Cause: "db", Err: err}
	}
	return nil
}

// extractAndStripAgencyRecordNumber finds the first 5-digit token in
// text; if found, every occurrence of that exact token is removed and
// the resulting whitespace runs collapsed. If absent, text is returned
// unchanged and a synthesized epoch-millis fallback is used instead.
func extractAndStripAgencyRecordNumber(text string) (cleanText, recordNumber string) {
	match := agencyRecordNumberToken.FindString(text)
	if match == "" {
		return text, synthesizeAgencyRecordNumber()
	}
	stripped := strings.ReplaceAll(text, match, "")
	return collapseWhitespace(stripped), match
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// synthesizeAgencyRecordNumber produces an all-digit string of at least
// minSynthesizedRecordNumberLength characters; epoch millis already
// satisfies the length floor.
func synthesizeAgencyRecordNumber() string {
	millis := time.Now().UnixMilli()
	s := strconv.FormatInt(millis, 10)
	for len(s) < minSynthesizedRecordNumberLength {
		s = "0" + s
	}
	return s
}

// jobPayload is the minimal payload most enqueued jobs carry; the
// case_id also lives in the Job.CaseID column, but this mirrors it into
// the payload so a handler never needs the column if it only has the
// decoded Job at hand.
type jobPayload struct {
	CaseID string `json:"case_id"`
}
