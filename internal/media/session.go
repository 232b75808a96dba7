// Package media defines the boundary to the audio/video transport. Transport
// internals (codecs, ICE, the provider SDK) live behind the Dialer and
// Session interfaces; the core only opens, observes and tears down sessions.
package media

import "errors"

// ErrPermissionDenied reports that the user refused camera/microphone access.
// It is non-fatal: the user may retry the connect action.
var ErrPermissionDenied = errors.New("camera/microphone access denied")

// TrackKind distinguishes audio from video tracks.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// Track is one live media track within a session.
type Track struct {
	ID      string
	Kind    TrackKind
	Remote  bool
	Enabled bool
}

// SessionEventType classifies session lifecycle events.
type SessionEventType string

const (
	SessionRemoteTracksChanged SessionEventType = "remote_tracks_changed"
	SessionDisconnected        SessionEventType = "disconnected"
)

// SessionEvent is delivered on the session's event stream as remote tracks
// come and go.
type SessionEvent struct {
	Type         SessionEventType
	RemoteTracks []Track
}

// Session is one open media connection to the room.
type Session interface {
	// LocalTracks returns the tracks currently captured locally.
	LocalTracks() []Track

	// Events returns the stream of session events. The channel is closed
	// when the session disconnects.
	Events() <-chan SessionEvent

	// SetTrackEnabled mutes or unmutes a local track kind.
	SetTrackEnabled(kind TrackKind, enabled bool)

	// Disconnect tears the session down. Safe to call more than once.
	Disconnect()
}

// Dialer opens media sessions with a credential obtained from the token
// endpoint. Implementations classify setup failures as ErrPermissionDenied
// vs. anything else; both are surfaced as non-fatal notifications by the
// caller.
type Dialer interface {
	Open(roomName, identity, token string) (Session, error)
}
