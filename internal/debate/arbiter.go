package debate

import (
	"github.com/google/uuid"

	"github.com/rebutly/podium/internal/models"
)

// Host elects the single timing authority for a session: the
// lexicographically smallest user ID among human participants. The election
// is pure and idempotent over the same participant set, so every client
// derives the same host without coordination. ok is false when no human
// participant is present.
//
// "Host" is a role, not an owned resource: callers recompute it whenever the
// participant set changes and must never cache it across such changes.
func Host(participants []models.Participant) (host uuid.UUID, ok bool) {
	var min string
	for _, p := range participants {
		if p.UserID == nil {
			continue
		}
		id := p.UserID.String()
		if !ok || id < min {
			min = id
			host = *p.UserID
			ok = true
		}
	}
	return host, ok
}
