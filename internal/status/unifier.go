package status

import (
	"time"

	"github.com/ternarybob/vigil/internal/models"
)

// Unify merges a raw status report with interpreted progress facts into
// one canonical record for the given job. It is a pure helper, usable
// without starting a poll.
//
// Precedence: a field present in the raw report is authoritative and is
// never overwritten by the interpreter's output for the same field; facts
// only fill gaps. Single and batch jobs report progress on different
// axes - dispensers for single, visits for batch - and CurrentItem/
// TotalItems mirrors whichever axis applies.
func Unify(jobID string, kind models.JobKind, raw *models.RawStatusReport, facts models.ProgressFacts) models.UnifiedStatus {
	unified := models.UnifiedStatus{
		JobID:     jobID,
		Kind:      kind,
		Status:    models.JobStatusRunning,
		Timestamp: time.Now(),
	}

	if raw == nil {
		return unified
	}

	if raw.Status != "" {
		unified.Status = raw.Status
	}
	unified.Message = SanitizeMessage(raw.Message)

	unified.DispenserCurrent = pickInt(raw.DispenserCurrent, facts.DispenserCurrent)
	unified.DispenserTotal = pickInt(raw.DispenserTotal, facts.DispenserTotal)
	unified.FuelType = pickString(raw.FuelType, facts.FuelType)
	unified.FuelCurrent = pickInt(raw.FuelCurrent, facts.FuelCurrent)
	unified.FuelTotal = pickInt(raw.FuelTotal, facts.FuelTotal)

	switch kind {
	case models.JobKindSingle:
		unified.VisitID = raw.VisitID
		unified.VisitName = raw.VisitName
		unified.CurrentItem = unified.DispenserCurrent
		unified.TotalItems = unified.DispenserTotal

	case models.JobKindBatch:
		unified.CompletedVisits = raw.CompletedVisits
		unified.TotalVisits = raw.TotalVisits
		unified.CurrentItem = raw.CompletedVisits
		unified.TotalItems = raw.TotalVisits
		if raw.StoreInfo != nil {
			unified.VisitName = raw.StoreInfo.Name
		}
	}

	return unified
}

// pickInt returns the authoritative value when present, else the hint.
func pickInt(authoritative, hint *int) *int {
	if authoritative != nil {
		return authoritative
	}
	return hint
}

func pickString(authoritative, hint string) string {
	if authoritative != "" {
		return authoritative
	}
	return hint
}
