package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus defines the lifecycle status of a debate room.
type RoomStatus string

const (
	RoomStatusReserved  RoomStatus = "reserved"
	RoomStatusLive      RoomStatus = "live"
	RoomStatusCompleted RoomStatus = "completed"
	RoomStatusAbandoned RoomStatus = "abandoned"
)

// HvHFormat defines the human-vs-human debate format variant.
type HvHFormat string

const (
	FormatRapid    HvHFormat = "rapid"
	FormatStandard HvHFormat = "standard"
	FormatExtended HvHFormat = "extended"
)

// Room represents a debate room instance.
type Room struct {
	ID           uuid.UUID  `json:"id"`
	Format       string     `json:"format"`
	Mode         string     `json:"mode"`
	Status       RoomStatus `json:"status"`
	IsAIOpponent bool       `json:"is_ai_opponent"`
	Topic        *string    `json:"topic,omitempty"`
	HvHFormat    *HvHFormat `json:"hvh_format,omitempty"`
	CurrentPhase *string    `json:"current_phase,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
}

// FormatOrDefault returns the room's format variant, falling back to standard.
func (r *Room) FormatOrDefault() HvHFormat {
	if r.HvHFormat == nil || *r.HvHFormat == "" {
		return FormatStandard
	}
	return *r.HvHFormat
}
