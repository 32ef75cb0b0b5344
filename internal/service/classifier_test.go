package service

import (
	"testing"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
)

func TestClassifyBands(t *testing.T) {
	thresholds := DefaultThresholds()

	cases := []struct {
		probability float64
		wantStatus  domain.Status
		wantNote    string
	}{
		{0.0, domain.StatusLegit, ""},
		{0.49, domain.StatusLegit, ""},
		{0.499999, domain.StatusLegit, ""},
		{0.5, domain.StatusFlagged, NoteFlagged}, // lower bound is closed
		{0.62, domain.StatusFlagged, NoteFlagged},
		{0.79, domain.StatusFlagged, NoteFlagged},
		{0.8, domain.StatusBlocked, NoteBlocked}, // lower bound is closed
		{0.95, domain.StatusBlocked, NoteBlocked},
		{1.0, domain.StatusBlocked, NoteBlocked},
	}

	for _, tc := range cases {
		status, note := Classify(tc.probability, thresholds)
		if status != tc.wantStatus {
			t.Errorf("p=%v: expected status %s, got %s", tc.probability, tc.wantStatus, status)
		}
		if note != tc.wantNote {
			t.Errorf("p=%v: expected note %q, got %q", tc.probability, tc.wantNote, note)
		}
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	thresholds := Thresholds{Flag: 0.3, Block: 0.6}

	if status, _ := Classify(0.3, thresholds); status != domain.StatusFlagged {
		t.Fatalf("expected flagged at custom flag threshold, got %s", status)
	}
	if status, _ := Classify(0.6, thresholds); status != domain.StatusBlocked {
		t.Fatalf("expected blocked at custom block threshold, got %s", status)
	}
	if status, _ := Classify(0.29, thresholds); status != domain.StatusLegit {
		t.Fatalf("expected legit below custom flag threshold, got %s", status)
	}
}
