package analytics

import (
	"testing"
	"time"

	"github.com/minuted/minuted/internal/storage"
)

func TestComputeEmpty(t *testing.T) {
	m := Compute(nil, nil)
	if m.Sessions != 0 || m.Transcriptions != 0 || m.Summaries != 0 {
		t.Errorf("counts = %+v, want zeros", m)
	}
	if !m.FirstSessionAt.IsZero() || !m.LastSessionAt.IsZero() {
		t.Errorf("time bounds set for empty input: %+v", m)
	}
	if m.Text.AvgChars != 0 {
		t.Errorf("avg chars = %f, want 0", m.Text.AvgChars)
	}
}

func TestCompute(t *testing.T) {
	// 2026-01-05 is a Monday.
	monday9 := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	monday14 := time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)
	saturday9 := time.Date(2026, 1, 10, 9, 5, 0, 0, time.UTC)

	sessions := []storage.Session{
		{ID: "s1", TranscriptionID: "t1", SummaryID: "m1", CreatedAt: monday9},
		{ID: "s2", TranscriptionID: "t2", CreatedAt: monday14},
		{ID: "s3", SummaryID: "m2", CreatedAt: saturday9},
	}
	contents := []storage.SessionContent{
		{ID: "s1", Transcription: "four words right here", Summary: "short"},
		{ID: "s2", Transcription: "ab"},
		{ID: "s3", Summary: "summary only"},
	}

	m := Compute(sessions, contents)

	if m.Sessions != 3 || m.Transcriptions != 2 || m.Summaries != 2 {
		t.Errorf("counts = sessions %d transcriptions %d summaries %d",
			m.Sessions, m.Transcriptions, m.Summaries)
	}

	if !m.FirstSessionAt.Equal(monday9) {
		t.Errorf("first session at %v, want %v", m.FirstSessionAt, monday9)
	}
	if !m.LastSessionAt.Equal(saturday9) {
		t.Errorf("last session at %v, want %v", m.LastSessionAt, saturday9)
	}

	if m.HourActivity[9] != 2 || m.HourActivity[14] != 1 {
		t.Errorf("hour activity = %v", m.HourActivity)
	}
	if m.WeekdayActivity[int(time.Monday)] != 2 || m.WeekdayActivity[int(time.Saturday)] != 1 {
		t.Errorf("weekday activity = %v", m.WeekdayActivity)
	}

	// Text stats cover the two transcriptions: 21 and 2 chars.
	if m.Text.TotalChars != 23 {
		t.Errorf("total chars = %d, want 23", m.Text.TotalChars)
	}
	if m.Text.TotalWords != 5 {
		t.Errorf("total words = %d, want 5", m.Text.TotalWords)
	}
	if m.Text.MinChars != 2 || m.Text.MaxChars != 21 {
		t.Errorf("min/max chars = %d/%d, want 2/21", m.Text.MinChars, m.Text.MaxChars)
	}
	if m.Text.AvgChars != 11.5 {
		t.Errorf("avg chars = %f, want 11.5", m.Text.AvgChars)
	}
}

func TestComputeMultibyteChars(t *testing.T) {
	contents := []storage.SessionContent{{ID: "s1", Transcription: "héllo wörld"}}
	m := Compute([]storage.Session{{ID: "s1", TranscriptionID: "t1"}}, contents)
	if m.Text.TotalChars != 11 {
		t.Errorf("total chars = %d, want 11 (runes, not bytes)", m.Text.TotalChars)
	}
}
