package models

import (
	"time"

	"github.com/google/uuid"
)

// Speaker tags the origin of a transcript entry.
type Speaker string

const (
	SpeakerSelf   Speaker = "self"
	SpeakerPeer   Speaker = "peer"
	SpeakerSystem Speaker = "system"
)

// TranscriptEntry is one utterance or system announcement in the debate log.
// Entries are append-only; none is ever mutated or removed.
type TranscriptEntry struct {
	ID        uuid.UUID `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase"`
}
