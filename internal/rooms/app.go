package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/rebutly/podium/internal/debate"
	"github.com/rebutly/podium/internal/debate/events"
	"github.com/rebutly/podium/internal/models"
	"github.com/rebutly/podium/internal/signaling"
)

// ErrLoadFailed marks a room/participant fetch failure. It is fatal to the
// session: the caller shows a terminal error view and performs no automatic
// retry.
var ErrLoadFailed = errors.New("failed to load debate room")

// RoomRepository defines what the loader needs from the data layer.
type RoomRepository interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error)
	MarkConnected(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error
	TransitionRoomLive(ctx context.Context, roomID uuid.UUID, at time.Time) (bool, error)
	UpdateCurrentPhase(ctx context.Context, roomID uuid.UUID, phase string) error
	UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, from, to models.RoomStatus) error
}

// App is the room state loader for one session: it resolves the joining
// client's entry phase, stamps the connection timestamp, and performs the
// one-time reserved→live transition race.
type App struct {
	repo    RoomRepository
	channel signaling.Channel
	clock   clockwork.Clock

	roomID      uuid.UUID
	localUserID uuid.UUID
}

// NewApp creates a loader bound to one room and local identity.
func NewApp(repo RoomRepository, channel signaling.Channel, clock clockwork.Clock, roomID, localUserID uuid.UUID) *App {
	return &App{
		repo:        repo,
		channel:     channel,
		clock:       clock,
		roomID:      roomID,
		localUserID: localUserID,
	}
}

// JoinState is the outcome of joining a room.
type JoinState struct {
	Room         *models.Room
	Participants []models.Participant
	EntryPhase   debate.Phase
}

// Join fetches room and participant state, marks the local participant
// connected (idempotent), and classifies the entry phase. Exactly one
// successful reserved→live transition occurs even when both clients race;
// the losing attempt is a no-op, never a user-visible error.
func (a *App) Join(ctx context.Context) (*JoinState, error) {
	room, err := a.repo.GetRoom(ctx, a.roomID)
	if err != nil {
		return nil, errors.Join(ErrLoadFailed, err)
	}

	if _, err := a.repo.ListParticipants(ctx, a.roomID); err != nil {
		return nil, errors.Join(ErrLoadFailed, err)
	}

	now := a.clock.Now()
	if err := a.repo.MarkConnected(ctx, a.roomID, a.localUserID, now); err != nil {
		return nil, errors.Join(ErrLoadFailed, err)
	}
	a.publishParticipantUpdated(now)

	// Refetch so the classification sees our own connection stamp.
	participants, err := a.repo.ListParticipants(ctx, a.roomID)
	if err != nil {
		return nil, errors.Join(ErrLoadFailed, err)
	}

	entry := debate.PhaseWaitingForOpponent
	switch {
	case room.Status == models.RoomStatusLive:
		entry = debate.PhaseSetup
	case allHumansConnected(participants):
		won, err := a.repo.TransitionRoomLive(ctx, a.roomID, now)
		if err != nil {
			return nil, errors.Join(ErrLoadFailed, err)
		}
		if won {
			log.Info().Str("room_id", a.roomID.String()).Msg("room transitioned to live")
		} else {
			log.Debug().Str("room_id", a.roomID.String()).Msg("room already live, transition was a no-op")
		}
		entry = debate.PhaseSetup
	}

	log.Info().
		Str("room_id", a.roomID.String()).
		Str("entry_phase", string(entry)).
		Int("participants", len(participants)).
		Msg("joined debate room")

	return &JoinState{Room: room, Participants: participants, EntryPhase: entry}, nil
}

// Refresh re-reads the participant set after a participant-record change
// notification and, if the "all connected" condition is newly satisfied,
// performs the same conditional transition as Join. Implements
// debate.RoomSync.
func (a *App) Refresh(ctx context.Context) ([]models.Participant, bool, error) {
	participants, err := a.repo.ListParticipants(ctx, a.roomID)
	if err != nil {
		return nil, false, fmt.Errorf("refresh participants: %w", err)
	}

	if allHumansConnected(participants) {
		if _, err := a.repo.TransitionRoomLive(ctx, a.roomID, a.clock.Now()); err != nil {
			return nil, false, fmt.Errorf("transition room live: %w", err)
		}
		return participants, true, nil
	}

	room, err := a.repo.GetRoom(ctx, a.roomID)
	if err != nil {
		return nil, false, fmt.Errorf("refresh room: %w", err)
	}
	return participants, room.Status == models.RoomStatusLive, nil
}

// UpdateCurrentPhase writes the advisory phase snapshot for this room.
// Implements debate.PhaseSnapshots.
func (a *App) UpdateCurrentPhase(ctx context.Context, phase string) error {
	return a.repo.UpdateCurrentPhase(ctx, a.roomID, phase)
}

// Leave marks the room abandoned when the local client exits before the
// debate ever went live. A room that reached live is left untouched here.
func (a *App) Leave(ctx context.Context) error {
	return a.repo.UpdateRoomStatus(ctx, a.roomID, models.RoomStatusReserved, models.RoomStatusAbandoned)
}

// Complete marks a live room completed after the debate reached results.
func (a *App) Complete(ctx context.Context) error {
	return a.repo.UpdateRoomStatus(ctx, a.roomID, models.RoomStatusLive, models.RoomStatusCompleted)
}

func (a *App) publishParticipantUpdated(at time.Time) {
	payload := events.ParticipantUpdatedPayload{
		RoomID:      a.roomID.String(),
		UserID:      a.localUserID.String(),
		ConnectedAt: &at,
	}
	if err := a.channel.Broadcast(events.EventParticipantUpdated, payload); err != nil {
		// Best-effort: peers also poll state on join, so a lost
		// notification delays but does not break the go-live race.
		log.Warn().Err(err).Msg("participant_updated broadcast failed")
	}
}

// allHumansConnected reports whether every human participant has a connection
// timestamp and at least two humans are present.
func allHumansConnected(participants []models.Participant) bool {
	humans := 0
	for _, p := range participants {
		if !p.IsHuman() {
			continue
		}
		humans++
		if p.ConnectedAt == nil {
			return false
		}
	}
	return humans >= 2
}
