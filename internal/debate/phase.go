package debate

import (
	"strings"
	"time"

	"github.com/rebutly/podium/internal/models"
)

// Phase is one named stage of the debate lifecycle.
type Phase string

const (
	PhaseLoading            Phase = "loading"
	PhaseWaitingForOpponent Phase = "waiting_for_opponent"
	PhaseSetup              Phase = "setup"
	PhasePrep               Phase = "prep"
	PhasePropConstructive   Phase = "prop_constructive"
	PhaseOppConstructive    Phase = "opp_constructive"
	PhasePropRebuttal       Phase = "prop_rebuttal"
	PhaseOppRebuttal        Phase = "opp_rebuttal"
	PhasePropClosing        Phase = "prop_closing"
	PhaseOppClosing         Phase = "opp_closing"
	PhaseTransition         Phase = "transition"
	PhaseDebateComplete     Phase = "debate_complete"
	PhaseJudging            Phase = "judging"
	PhaseResults            Phase = "results"
)

// SpeechPhases is the fixed, total order of speech phases. No phase may be
// skipped or revisited.
var SpeechPhases = []Phase{
	PhasePropConstructive,
	PhaseOppConstructive,
	PhasePropRebuttal,
	PhaseOppRebuttal,
	PhasePropClosing,
	PhaseOppClosing,
}

// FormatTimes holds the nominal per-phase durations for one format variant.
type FormatTimes struct {
	Prep         time.Duration
	Constructive time.Duration
	Rebuttal     time.Duration
	Closing      time.Duration
}

// formatTimes maps each format variant to its nominal speech allotments.
var formatTimes = map[models.HvHFormat]FormatTimes{
	models.FormatRapid:    {Prep: 30 * time.Second, Constructive: 60 * time.Second, Rebuttal: 60 * time.Second, Closing: 60 * time.Second},
	models.FormatStandard: {Prep: 60 * time.Second, Constructive: 180 * time.Second, Rebuttal: 120 * time.Second, Closing: 90 * time.Second},
	models.FormatExtended: {Prep: 900 * time.Second, Constructive: 420 * time.Second, Rebuttal: 240 * time.Second, Closing: 180 * time.Second},
}

// TimesFor returns the duration table for a format, defaulting to standard
// for unknown variants.
func TimesFor(format models.HvHFormat) FormatTimes {
	if t, ok := formatTimes[format]; ok {
		return t
	}
	return formatTimes[models.FormatStandard]
}

// IsSpeech reports whether p is one of the six timed speech phases.
func (p Phase) IsSpeech() bool {
	for _, sp := range SpeechPhases {
		if p == sp {
			return true
		}
	}
	return false
}

// IsProposition reports whether p is a proposition-side speech phase.
func (p Phase) IsProposition() bool {
	return strings.HasPrefix(string(p), "prop_")
}

// Label returns the human-readable name of a speech phase, e.g.
// "Proposition Constructive".
func (p Phase) Label() string {
	speaker := "Opposition"
	if p.IsProposition() {
		speaker = "Proposition"
	}
	kind := "Closing"
	switch {
	case strings.Contains(string(p), "constructive"):
		kind = "Constructive"
	case strings.Contains(string(p), "rebuttal"):
		kind = "Rebuttal"
	}
	return speaker + " " + kind
}

// Duration returns the nominal allotment for a speech phase under the given
// format. The value is an ideal, uninterrupted allotment; remaining time is
// always reconstructed from the phase start, never from a counter.
func (p Phase) Duration(format models.HvHFormat) time.Duration {
	times := TimesFor(format)
	switch {
	case strings.Contains(string(p), "constructive"):
		return times.Constructive
	case strings.Contains(string(p), "rebuttal"):
		return times.Rebuttal
	case strings.Contains(string(p), "closing"):
		return times.Closing
	default:
		return times.Constructive
	}
}

// Next returns the speech phase following p in the fixed sequence. ok is
// false when p is the final speech phase or not a speech phase at all.
func Next(p Phase) (next Phase, ok bool) {
	for i, sp := range SpeechPhases {
		if sp == p && i < len(SpeechPhases)-1 {
			return SpeechPhases[i+1], true
		}
	}
	return "", false
}

// Remaining reconstructs the instantaneous time left in a phase that began at
// startedAt with the given nominal duration. The result is never negative,
// which is what lets a late-joining or reconnecting client display a correct
// countdown from a peer's broadcast.
func Remaining(startedAt time.Time, duration time.Duration, now time.Time) time.Duration {
	elapsed := now.Sub(startedAt).Truncate(time.Second)
	if elapsed >= duration {
		return 0
	}
	if elapsed < 0 {
		return duration
	}
	return duration - elapsed
}
