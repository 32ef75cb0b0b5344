package service

import "github.com/jkimaro/pesaflow/backend/internal/domain"

// Notes attached to non-legit classifications.
const (
	NoteBlocked = "blocked due to high fraud probability"
	NoteFlagged = "flagged — potential fraud detected"
)

// Thresholds are the classification cut points. Each band is closed on its
// lower bound: a probability exactly at Block is blocked, exactly at Flag is
// flagged.
type Thresholds struct {
	Flag  float64
	Block float64
}

// DefaultThresholds returns the standard policy cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{Flag: 0.5, Block: 0.8}
}

// Classify deterministically maps a fraud probability onto a terminal status
// and an explanatory note. Pure function, no side effects.
func Classify(probability float64, t Thresholds) (domain.Status, string) {
	switch {
	case probability >= t.Block:
		return domain.StatusBlocked, NoteBlocked
	case probability >= t.Flag:
		return domain.StatusFlagged, NoteFlagged
	default:
		return domain.StatusLegit, ""
	}
}
