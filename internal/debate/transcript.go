package debate

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rebutly/podium/internal/models"
)

// Transcript is the append-only debate log. It merges locally recognized
// speech, remotely broadcast utterances and synthesized system announcements
// into one sequence ordered by local receipt. There is no delete or merge
// operation.
//
// The transcript is owned by the controller's event loop and must only be
// touched from that goroutine.
type Transcript struct {
	entries []models.TranscriptEntry
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append records one entry tagged with the phase active at append time and
// returns it. Ordering is receipt order, not necessarily causal order across
// peers.
func (t *Transcript) Append(speaker models.Speaker, text string, phase Phase, now time.Time) models.TranscriptEntry {
	entry := models.TranscriptEntry{
		ID:        uuid.New(),
		Speaker:   speaker,
		Text:      text,
		Timestamp: now,
		Phase:     string(phase),
	}
	t.entries = append(t.entries, entry)
	return entry
}

// Len returns the number of entries. The length is non-decreasing over a
// session.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the log in receipt order.
func (t *Transcript) Entries() []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Utterances returns the text of every entry by the given speaker, in order.
func (t *Transcript) Utterances(speaker models.Speaker) []string {
	var out []string
	for _, e := range t.entries {
		if e.Speaker == speaker {
			out = append(out, e.Text)
		}
	}
	return out
}

// Export renders the log as plain text for download: a topic header followed
// by one "[SPEAKER] text" block per entry.
func (t *Transcript) Export(topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Debate Transcript\nTopic: %s\n", topic)
	for _, e := range t.entries {
		fmt.Fprintf(&b, "\n[%s] %s\n", strings.ToUpper(string(e.Speaker)), e.Text)
	}
	return b.String()
}
