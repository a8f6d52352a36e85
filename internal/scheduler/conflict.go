package scheduler

// Slot is a half-open [Start, End) interval on one calendar date, owned by the
// reservation identified by ID.
type Slot struct {
	ID    string
	Date  string
	Start string
	End   string
}

// Conflict details an existing slot that overlaps a candidate.
type Conflict struct {
	WithID string
	Slot   Slot
}

// DetectConflicts returns every existing slot on the candidate's date that
// overlaps it, in input order. A slot sharing the candidate's ID is skipped so
// an update never conflicts with itself.
func DetectConflicts(existing []Slot, candidate Slot) []Conflict {
	var conflicts []Conflict
	for _, slot := range existing {
		if candidate.ID != "" && slot.ID == candidate.ID {
			continue
		}
		if slot.Date != candidate.Date {
			continue
		}
		if !Overlaps(slot.Start, slot.End, candidate.Start, candidate.End) {
			continue
		}
		conflicts = append(conflicts, Conflict{WithID: slot.ID, Slot: slot})
	}
	return conflicts
}
