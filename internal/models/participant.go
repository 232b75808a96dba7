package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile holds the denormalized public profile attached to a participant.
type Profile struct {
	Username    *string        `json:"username,omitempty"`
	DisplayName *string        `json:"display_name,omitempty"`
	AvatarURL   *string        `json:"avatar_url,omitempty"`
	EloByFormat map[string]int `json:"elo_by_format,omitempty"`
}

// Participant represents one seat in a debate room. A nil UserID means the
// seat is held by an AI opponent.
type Participant struct {
	ID            uuid.UUID  `json:"id"`
	RoomID        uuid.UUID  `json:"room_id"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	IsAI          bool       `json:"is_ai"`
	Role          *string    `json:"role,omitempty"`
	SpeakingOrder *int       `json:"speaking_order,omitempty"`
	ConnectedAt   *time.Time `json:"connected_at,omitempty"`
	Profile       *Profile   `json:"profile,omitempty"`
}

// IsHuman reports whether the seat is held by a human user.
func (p *Participant) IsHuman() bool {
	return p.UserID != nil
}

// IsProposition reports whether the participant argues on the proposition
// side. Role labels vary by debate style ("proposition", "affirmative",
// "gov" prefixes), so matching is by family rather than exact string.
func (p *Participant) IsProposition() bool {
	role := "proposition"
	if p.Role != nil && *p.Role != "" {
		role = *p.Role
	}
	return role == "proposition" || role == "affirmative" || strings.Contains(role, "gov")
}
