package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// zeroTime is passed to queue.Store.Enqueue to request "run now",
// mirroring that method's own zero-value convention.
var zeroTime time.Time

var errNoStructuredData = errors.New("run_llm2: case has no structured data")

var brtLocation *time.Location

func init() {
	loc, err := time.LoadLocation("America/Bahia")
	if err != nil {
		loc = time.FixedZone("BRT", -3*60*60)
	}
	brtLocation = loc
}

// brtLocationOrUTC returns the America/Bahia location used to render
// appointment times in room-1 final replies (spec §6), mirroring
// pkg/parser's own BRT location resolution.
func brtLocationOrUTC() *time.Location {
	return brtLocation
}

func decodeJobPayload(raw []byte, dest any) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode job payload: %w", err)
	}
	return nil
}
