// Package speech defines the speech-to-text boundary. The engine itself is
// external; the core only starts capture, consumes interim and final
// segments, and stops capture at phase boundaries.
package speech

// Segment is one recognition result. Non-final segments are display-only;
// only final segments enter the transcript and are broadcast to the peer.
type Segment struct {
	Text  string
	Final bool
}

// SegmentHandler receives recognition segments as they arrive.
type SegmentHandler func(seg Segment)

// Capturer is the capture control surface consumed by the debate controller.
type Capturer interface {
	// Start begins capture, delivering segments to h until Stop. Returns an
	// error if the engine is unavailable; callers treat that as "voice not
	// supported" rather than a session failure.
	Start(h SegmentHandler) error

	// Stop ends capture. Safe to call when not capturing.
	Stop()

	// Capturing reports whether capture is currently active.
	Capturing() bool
}
