// Package analytics computes dashboard metrics over an owner's stored
// sessions: record counts, text statistics, and activity heatmaps keyed by
// hour of day and weekday. All functions are pure; callers load the data.
package analytics

import (
	"strings"
	"time"

	"github.com/minuted/minuted/internal/storage"
)

// TextStats describes the transcription corpus.
type TextStats struct {
	TotalChars int     `json:"total_chars"`
	TotalWords int     `json:"total_words"`
	AvgChars   float64 `json:"avg_chars"`
	MinChars   int     `json:"min_chars"`
	MaxChars   int     `json:"max_chars"`
}

// Metrics is one owner's dashboard snapshot.
type Metrics struct {
	Sessions       int       `json:"sessions"`
	Transcriptions int       `json:"transcriptions"`
	Summaries      int       `json:"summaries"`
	Text           TextStats `json:"text"`
	FirstSessionAt time.Time `json:"first_session_at,omitzero"`
	LastSessionAt  time.Time `json:"last_session_at,omitzero"`
	// Activity cells: sessions created per hour of day (UTC) and per
	// weekday (0 = Sunday).
	HourActivity    [24]int `json:"hour_activity"`
	WeekdayActivity [7]int  `json:"weekday_activity"`
}

// Compute derives metrics from the owner's sessions and their resolved
// texts. Text statistics cover transcription texts only; summaries are model
// output and would skew the corpus numbers.
func Compute(sessions []storage.Session, contents []storage.SessionContent) Metrics {
	var m Metrics
	m.Sessions = len(sessions)

	for _, s := range sessions {
		if s.TranscriptionID != "" {
			m.Transcriptions++
		}
		if s.SummaryID != "" {
			m.Summaries++
		}

		at := s.CreatedAt.UTC()
		if m.FirstSessionAt.IsZero() || at.Before(m.FirstSessionAt) {
			m.FirstSessionAt = at
		}
		if at.After(m.LastSessionAt) {
			m.LastSessionAt = at
		}
		m.HourActivity[at.Hour()]++
		m.WeekdayActivity[int(at.Weekday())]++
	}

	m.Text = textStats(contents)
	return m
}

func textStats(contents []storage.SessionContent) TextStats {
	var st TextStats
	counted := 0
	for _, c := range contents {
		if c.Transcription == "" {
			continue
		}
		n := len([]rune(c.Transcription))
		st.TotalChars += n
		st.TotalWords += len(strings.Fields(c.Transcription))
		if counted == 0 || n < st.MinChars {
			st.MinChars = n
		}
		if n > st.MaxChars {
			st.MaxChars = n
		}
		counted++
	}
	if counted > 0 {
		st.AvgChars = float64(st.TotalChars) / float64(counted)
	}
	return st
}
