package rooms

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/rebutly/podium/internal/models"
	"github.com/rebutly/podium/internal/sqlutil"
)

// Repository implements room and participant data access.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new rooms repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const getRoomQuery = `
SELECT id, format, mode, status, is_ai_opponent, topic, hvh_format, current_phase, created_at, started_at
FROM debate_rooms
WHERE id = $1`

// GetRoom retrieves a room by ID.
func (r *Repository) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var (
		room         models.Room
		topic        sql.NullString
		hvhFormat    sql.NullString
		currentPhase sql.NullString
		startedAt    sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, getRoomQuery, id).Scan(
		&room.ID, &room.Format, &room.Mode, &room.Status, &room.IsAIOpponent,
		&topic, &hvhFormat, &currentPhase, &room.CreatedAt, &startedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	room.Topic = sqlutil.FromSqlStringPtr(topic)
	room.CurrentPhase = sqlutil.FromSqlStringPtr(currentPhase)
	room.StartedAt = sqlutil.FromSqlTime(startedAt)
	if hvhFormat.Valid {
		f := models.HvHFormat(hvhFormat.String)
		room.HvHFormat = &f
	}
	return &room, nil
}

const listParticipantsQuery = `
SELECT p.id, p.room_id, p.user_id, p.is_ai, p.role, p.speaking_order, p.connected_at,
       pr.username, pr.display_name, pr.avatar_url, pr.elo_by_format
FROM debate_participants p
LEFT JOIN profiles pr ON pr.user_id = p.user_id
WHERE p.room_id = $1
ORDER BY p.speaking_order NULLS LAST, p.id`

// ListParticipants retrieves all participants in a room with their profiles.
func (r *Repository) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.db.QueryContext(ctx, listParticipantsQuery, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var (
			p             models.Participant
			userID        uuid.NullUUID
			role          sql.NullString
			speakingOrder sql.NullInt32
			connectedAt   sql.NullTime
			username      sql.NullString
			displayName   sql.NullString
			avatarURL     sql.NullString
			eloByFormat   pqtype.NullRawMessage
		)
		if err := rows.Scan(
			&p.ID, &p.RoomID, &userID, &p.IsAI, &role, &speakingOrder, &connectedAt,
			&username, &displayName, &avatarURL, &eloByFormat,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}

		p.UserID = sqlutil.FromNullUUID(userID)
		p.Role = sqlutil.FromSqlStringPtr(role)
		p.SpeakingOrder = sqlutil.FromSqlInt32(speakingOrder)
		p.ConnectedAt = sqlutil.FromSqlTime(connectedAt)

		if username.Valid || displayName.Valid || avatarURL.Valid || eloByFormat.Valid {
			profile := &models.Profile{
				Username:    sqlutil.FromSqlStringPtr(username),
				DisplayName: sqlutil.FromSqlStringPtr(displayName),
				AvatarURL:   sqlutil.FromSqlStringPtr(avatarURL),
			}
			if err := sqlutil.FromNullRawMessage(eloByFormat, &profile.EloByFormat); err != nil {
				return nil, fmt.Errorf("failed to decode elo_by_format: %w", err)
			}
			p.Profile = profile
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

const markConnectedQuery = `
UPDATE debate_participants
SET connected_at = COALESCE(connected_at, $3)
WHERE room_id = $1 AND user_id = $2`

// MarkConnected stamps the local participant's connection timestamp. The
// COALESCE keeps the first timestamp on reconnect, making the call safe to
// repeat.
func (r *Repository) MarkConnected(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, markConnectedQuery, roomID, userID, at); err != nil {
		return fmt.Errorf("failed to mark participant connected: %w", err)
	}
	return nil
}

const transitionRoomLiveQuery = `
UPDATE debate_rooms
SET status = 'live', started_at = $2
WHERE id = $1 AND status = 'reserved'`

// TransitionRoomLive performs the conditional reserved→live transition. It is
// a single atomic conditional write: when both clients race, exactly one
// update takes effect. won is false for the losing attempt, which callers
// treat as success, not error.
func (r *Repository) TransitionRoomLive(ctx context.Context, roomID uuid.UUID, at time.Time) (won bool, err error) {
	res, err := r.db.ExecContext(ctx, transitionRoomLiveQuery, roomID, at)
	if err != nil {
		return false, fmt.Errorf("failed to transition room to live: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

const updateCurrentPhaseQuery = `
UPDATE debate_rooms
SET current_phase = $2
WHERE id = $1`

// UpdateCurrentPhase writes the advisory current-phase snapshot.
func (r *Repository) UpdateCurrentPhase(ctx context.Context, roomID uuid.UUID, phase string) error {
	if _, err := r.db.ExecContext(ctx, updateCurrentPhaseQuery, roomID, phase); err != nil {
		return fmt.Errorf("failed to update current phase: %w", err)
	}
	return nil
}

const updateRoomStatusQuery = `
UPDATE debate_rooms
SET status = $2
WHERE id = $1 AND status = $3`

// UpdateRoomStatus moves a room from one status to another; a no-op when the
// room is no longer in the expected status.
func (r *Repository) UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, from, to models.RoomStatus) error {
	if _, err := r.db.ExecContext(ctx, updateRoomStatusQuery, roomID, to, from); err != nil {
		return fmt.Errorf("failed to update room status: %w", err)
	}
	return nil
}
