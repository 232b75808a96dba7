package events

import (
	"time"
)

// Broadcast event names carried over the signaling channel.
const (
	EventTranscript         = "transcript"
	EventPhaseChange        = "phase_change"
	EventUserReady          = "user_ready"
	EventParticipantUpdated = "participant_updated"
)

// TranscriptPayload is the payload for a transcript broadcast. Phase is the
// phase active at broadcast time, not at receipt time, so the judge can
// attribute utterances correctly even under latency.
type TranscriptPayload struct {
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Phase     string    `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
}

// PhaseChangePayload is the payload for a phase_change broadcast. Receivers
// reconstruct remaining time from StartedAt and DurationSec; Timestamp is the
// send time and is not used for timer math.
type PhaseChangePayload struct {
	UserID      string `json:"userId"`
	Phase       string `json:"phase"`
	Timestamp   int64  `json:"timestamp"`
	StartedAt   int64  `json:"startedAt"`
	DurationSec int    `json:"duration"`
}

// UserReadyPayload is the payload for a user_ready broadcast.
type UserReadyPayload struct {
	UserID string `json:"userId"`
}

// ParticipantUpdatedPayload notifies peers that a participant record changed,
// typically a connection timestamp being stamped.
type ParticipantUpdatedPayload struct {
	RoomID      string     `json:"roomId"`
	UserID      string     `json:"userId"`
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
}
