package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/rebutly/podium/internal/debate/events"
	"github.com/rebutly/podium/internal/judge"
	"github.com/rebutly/podium/internal/media"
	"github.com/rebutly/podium/internal/models"
	"github.com/rebutly/podium/internal/signaling"
	"github.com/rebutly/podium/internal/speech"
)

// RoomSync is what the controller needs from the room state loader after the
// initial join: refresh the participant set and, if the "all connected"
// condition is newly satisfied, perform the conditional reserved→live
// transition. live reports the room's status after the attempt.
type RoomSync interface {
	Refresh(ctx context.Context) (participants []models.Participant, live bool, err error)
}

// PhaseSnapshots persists the advisory current-phase snapshot on the room
// record. The snapshot is informational; authoritative phase lives in the
// client state machine.
type PhaseSnapshots interface {
	UpdateCurrentPhase(ctx context.Context, phase string) error
}

// NoticeLevel classifies user-facing notifications emitted by the controller.
type NoticeLevel string

const (
	NoticeInfo       NoticeLevel = "info"
	NoticeError      NoticeLevel = "error"
	NoticePrediction NoticeLevel = "prediction"
)

// Notice is a transient, non-fatal user-facing notification.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Config wires a controller to one debate session.
type Config struct {
	RoomID      uuid.UUID
	LocalUserID uuid.UUID
	Topic       string
	Format      models.HvHFormat

	// EntryPhase is the phase resolved by the room state loader: setup or
	// waiting_for_opponent.
	EntryPhase Phase

	// TransitionDelay is the length of the interstitial countdown between
	// speeches. Host-local; never broadcast.
	TransitionDelay time.Duration

	MicEnabled bool
}

// Controller is the debate-phase state machine. It is a single-threaded event
// consumer: signaling broadcasts, recognition segments, media events, user
// actions and the 1 Hz tick all funnel into one mailbox processed by Run in
// arrival order, so state needs no locking but must tolerate any interleaving
// of independently arriving messages.
type Controller struct {
	cfg       Config
	clock     clockwork.Clock
	channel   signaling.Channel
	capturer  speech.Capturer
	dialer    media.Dialer
	tokens    *media.TokenClient
	evaluator judge.Evaluator
	roomSync  RoomSync
	snapshots PhaseSnapshots

	transcript *Transcript

	participants []models.Participant
	hostID       uuid.UUID
	hostKnown    bool
	localProp    bool

	// Mutated only on the Run goroutine.
	phase        Phase
	startedAt    time.Time
	duration     time.Duration
	timeLeft     time.Duration
	timerRunning bool
	applied      map[string]struct{}
	interimText  string

	pendingNext        Phase
	transitionDeadline time.Time
	transitionPending  bool

	session    media.Session
	prediction *models.Verdict
	feedback   *models.Feedback

	mailbox chan message
	notices chan Notice
	unsubs  []func()
}

type message interface{ isMessage() }

type tickMsg struct{}
type phaseChangeMsg struct{ payload events.PhaseChangePayload }
type transcriptMsg struct{ payload events.TranscriptPayload }
type userReadyMsg struct{ payload events.UserReadyPayload }
type participantsMsg struct {
	participants []models.Participant
	live         bool
}
type segmentMsg struct{ seg speech.Segment }
type mediaOpenedMsg struct {
	session media.Session
	err     error
}
type mediaEventMsg struct{ event media.SessionEvent }
type judgedMsg struct {
	feedback *models.Feedback
	err      error
}

type actionKind int

const (
	actionConnectAndStart actionKind = iota
	actionSkipPrep
	actionPredict
	actionMicToggle
)

type actionMsg struct {
	kind       actionKind
	prediction *models.Verdict
	micEnabled bool
}

func (tickMsg) isMessage()         {}
func (phaseChangeMsg) isMessage()  {}
func (transcriptMsg) isMessage()   {}
func (userReadyMsg) isMessage()    {}
func (participantsMsg) isMessage() {}
func (segmentMsg) isMessage()      {}
func (mediaOpenedMsg) isMessage()  {}
func (mediaEventMsg) isMessage()   {}
func (judgedMsg) isMessage()       {}
func (actionMsg) isMessage()       {}

// NewController builds a controller for one session. capturer and snapshots
// may be nil (voice unsupported, no advisory snapshots). participants is the
// set resolved by the room state loader at join time.
func NewController(
	cfg Config,
	clock clockwork.Clock,
	channel signaling.Channel,
	dialer media.Dialer,
	tokens *media.TokenClient,
	capturer speech.Capturer,
	evaluator judge.Evaluator,
	roomSync RoomSync,
	snapshots PhaseSnapshots,
	participants []models.Participant,
) *Controller {
	if cfg.TransitionDelay <= 0 {
		cfg.TransitionDelay = 5 * time.Second
	}
	entry := cfg.EntryPhase
	if entry == "" {
		entry = PhaseLoading
	}

	c := &Controller{
		cfg:        cfg,
		clock:      clock,
		channel:    channel,
		capturer:   capturer,
		dialer:     dialer,
		tokens:     tokens,
		evaluator:  evaluator,
		roomSync:   roomSync,
		snapshots:  snapshots,
		transcript: NewTranscript(),
		phase:      entry,
		applied:    make(map[string]struct{}),
		mailbox:    make(chan message, 256),
		notices:    make(chan Notice, 16),
	}
	c.setParticipants(participants)
	return c
}

// Transcript exposes the session's aggregated log.
func (c *Controller) Transcript() *Transcript {
	return c.transcript
}

// Notices is the stream of transient user-facing notifications.
func (c *Controller) Notices() <-chan Notice {
	return c.notices
}

// Snapshot is a copy of the controller's user-visible state.
type Snapshot struct {
	Phase        Phase
	TimeLeft     time.Duration
	TimerRunning bool
	HostID       uuid.UUID
	IsHost       bool
	InterimText  string
	Prediction   *models.Verdict
	Feedback     *models.Feedback
}

// Snapshot returns the current user-visible state. Only safe to call from the
// goroutine driving the mailbox in tests, or after Run has returned.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Phase:        c.phase,
		TimeLeft:     c.timeLeft,
		TimerRunning: c.timerRunning,
		HostID:       c.hostID,
		IsHost:       c.isHost(),
		InterimText:  c.interimText,
		Prediction:   c.prediction,
		Feedback:     c.feedback,
	}
}

// ConnectAndStart begins the media setup and prep flow. It is rejected with
// signaling.ErrNotReady while the channel cannot broadcast; the caller
// surfaces that as retryable.
func (c *Controller) ConnectAndStart() error {
	if !c.channel.Ready() {
		return signaling.ErrNotReady
	}
	c.post(actionMsg{kind: actionConnectAndStart})
	return nil
}

// SkipPrep ends the prep phase early. Host-only effect.
func (c *Controller) SkipPrep() {
	c.post(actionMsg{kind: actionSkipPrep})
}

// Predict records the user's win/loss prediction (nil = skipped) and requests
// AI judgment.
func (c *Controller) Predict(v *models.Verdict) {
	c.post(actionMsg{kind: actionPredict, prediction: v})
}

// SetMicEnabled toggles local capture eligibility.
func (c *Controller) SetMicEnabled(enabled bool) {
	c.post(actionMsg{kind: actionMicToggle, micEnabled: enabled})
}

func (c *Controller) post(msg message) {
	select {
	case c.mailbox <- msg:
	default:
		log.Warn().Str("room_id", c.cfg.RoomID.String()).Msg("controller mailbox full, dropping message")
	}
}

// Run subscribes to the signaling channel and consumes events until ctx is
// cancelled. Teardown runs unconditionally on every exit path: capture
// stopped, media session disconnected, subscriptions dropped.
func (c *Controller) Run(ctx context.Context) error {
	log.Info().
		Str("room_id", c.cfg.RoomID.String()).
		Str("entry_phase", string(c.phase)).
		Bool("is_host", c.isHost()).
		Msg("debate controller started")

	if err := c.subscribeAll(); err != nil {
		c.teardown()
		return err
	}
	defer c.teardown()

	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("room_id", c.cfg.RoomID.String()).Msg("debate controller shutting down")
			return nil
		case <-ticker.Chan():
			c.handleTick(ctx)
		case msg := <-c.mailbox:
			c.dispatch(ctx, msg)
		}
		if c.phase == PhaseResults {
			log.Info().Str("room_id", c.cfg.RoomID.String()).Msg("debate reached results")
			return nil
		}
	}
}

func (c *Controller) subscribeAll() error {
	subs := []struct {
		event string
		make  func(data []byte) (message, bool)
	}{
		{events.EventPhaseChange, func(data []byte) (message, bool) {
			var p events.PhaseChangePayload
			if err := json.Unmarshal(data, &p); err != nil {
				log.Warn().Err(err).Msg("bad phase_change payload")
				return nil, false
			}
			return phaseChangeMsg{payload: p}, true
		}},
		{events.EventTranscript, func(data []byte) (message, bool) {
			var p events.TranscriptPayload
			if err := json.Unmarshal(data, &p); err != nil {
				log.Warn().Err(err).Msg("bad transcript payload")
				return nil, false
			}
			return transcriptMsg{payload: p}, true
		}},
		{events.EventUserReady, func(data []byte) (message, bool) {
			var p events.UserReadyPayload
			if err := json.Unmarshal(data, &p); err != nil {
				return nil, false
			}
			return userReadyMsg{payload: p}, true
		}},
		{events.EventParticipantUpdated, func(data []byte) (message, bool) {
			// Payload identifies the change; the fresh set is refetched.
			return participantsMsg{}, true
		}},
	}

	for _, s := range subs {
		makeMsg := s.make
		unsub, err := c.channel.Subscribe(s.event, func(data []byte) {
			if msg, ok := makeMsg(data); ok {
				c.post(msg)
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe signaling: %w", err)
		}
		c.unsubs = append(c.unsubs, unsub)
	}
	return nil
}

func (c *Controller) dispatch(ctx context.Context, msg message) {
	switch m := msg.(type) {
	case tickMsg:
		c.handleTick(ctx)
	case phaseChangeMsg:
		c.reconcilePhaseChange(ctx, m.payload)
	case transcriptMsg:
		c.handleRemoteTranscript(m.payload)
	case userReadyMsg:
		c.handleUserReady(m.payload)
	case participantsMsg:
		c.handleParticipantChange(ctx, m)
	case segmentMsg:
		c.handleSegment(m.seg)
	case mediaOpenedMsg:
		c.handleMediaOpened(ctx, m)
	case mediaEventMsg:
		c.handleMediaEvent(m.event)
	case judgedMsg:
		c.handleJudged(m)
	case actionMsg:
		c.handleAction(ctx, m)
	}
}

// ---------------------------------------------------------------------------
// Host election

func (c *Controller) setParticipants(participants []models.Participant) {
	c.participants = participants
	prevID, prevKnown := c.hostID, c.hostKnown
	c.hostID, c.hostKnown = Host(participants)
	if c.hostKnown && (!prevKnown || prevID != c.hostID) {
		log.Info().
			Str("room_id", c.cfg.RoomID.String()).
			Str("host_id", c.hostID.String()).
			Bool("is_local", c.isHost()).
			Msg("timing authority elected")
	}
	for _, p := range participants {
		if p.UserID != nil && *p.UserID == c.cfg.LocalUserID {
			c.localProp = p.IsProposition()
		}
	}
}

func (c *Controller) isHost() bool {
	return c.hostKnown && c.hostID == c.cfg.LocalUserID
}

func (c *Controller) isLocalTurn(p Phase) bool {
	return p.IsSpeech() && p.IsProposition() == c.localProp
}

// ---------------------------------------------------------------------------
// Timer

func (c *Controller) handleTick(ctx context.Context) {
	now := c.clock.Now()

	if c.timerRunning {
		c.timeLeft = Remaining(c.startedAt, c.duration, now)
		if c.timeLeft == 0 {
			c.timerRunning = false
			c.handleExpiry(ctx)
		}
	}

	if c.transitionPending && c.phase == PhaseTransition && !now.Before(c.transitionDeadline) {
		c.transitionPending = false
		if c.isHost() {
			next := c.pendingNext
			c.startPhase(ctx, next, now, next.Duration(c.cfg.Format), true)
		}
	}
}

// handleExpiry runs when the countdown for the current phase reaches zero.
// Phase-end progression is host-only; a non-host stops capture and waits for
// the host's broadcast.
func (c *Controller) handleExpiry(ctx context.Context) {
	c.stopCapture()

	switch {
	case c.phase == PhasePrep:
		if c.isHost() {
			c.completePrep()
		}
	case c.phase.IsSpeech():
		if !c.isHost() {
			return
		}
		if next, ok := Next(c.phase); ok {
			c.enterTransition(next)
		} else {
			c.completeDebate(ctx)
		}
	}
}

func (c *Controller) enterTransition(next Phase) {
	c.phase = PhaseTransition
	c.pendingNext = next
	c.transitionPending = true
	c.transitionDeadline = c.clock.Now().Add(c.cfg.TransitionDelay)
	log.Debug().
		Str("next_phase", string(next)).
		Dur("delay", c.cfg.TransitionDelay).
		Msg("entering transition interstitial")
}

// ---------------------------------------------------------------------------
// Phase application

// startPhase applies a phase start, locally originated (host) or reconciled
// from a broadcast. Application is idempotent by (phase, startedAt): every
// applied key is remembered for the session, so a redelivered start is a
// no-op even when newer phases were applied in between. The machine never
// rewinds, appends no second transcript entry and sends no second broadcast.
func (c *Controller) startPhase(ctx context.Context, phase Phase, startedAt time.Time, duration time.Duration, broadcast bool) {
	key := fmt.Sprintf("%s:%d", phase, startedAt.UnixMilli())
	if _, done := c.applied[key]; done {
		return
	}
	c.applied[key] = struct{}{}

	now := c.clock.Now()
	c.phase = phase
	c.startedAt = startedAt
	c.duration = duration
	c.timeLeft = Remaining(startedAt, duration, now)
	c.timerRunning = c.timeLeft > 0
	c.transitionPending = false
	c.interimText = ""

	c.transcript.Append(models.SpeakerSystem, phase.Label()+" begins", phase, now)
	c.writeSnapshot(ctx, phase)

	if c.isLocalTurn(phase) && c.timeLeft > 0 && c.cfg.MicEnabled {
		c.startCapture()
	}

	if broadcast && c.isHost() {
		c.broadcastPhaseChange(phase, startedAt, duration)
	}

	log.Info().
		Str("phase", string(phase)).
		Dur("time_left", c.timeLeft).
		Bool("local_turn", c.isLocalTurn(phase)).
		Msg("phase started")
}

func (c *Controller) broadcastPhaseChange(phase Phase, startedAt time.Time, duration time.Duration) {
	payload := events.PhaseChangePayload{
		UserID:      c.cfg.LocalUserID.String(),
		Phase:       string(phase),
		Timestamp:   c.clock.Now().UnixMilli(),
		StartedAt:   startedAt.UnixMilli(),
		DurationSec: int(duration / time.Second),
	}
	if err := c.channel.Broadcast(events.EventPhaseChange, payload); err != nil {
		log.Error().Err(err).Str("phase", string(phase)).Msg("phase_change broadcast failed")
	}
}

// writeSnapshot records the advisory current-phase snapshot; failures only
// log because the snapshot is never authoritative.
func (c *Controller) writeSnapshot(ctx context.Context, phase Phase) {
	if c.snapshots == nil {
		return
	}
	go func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := c.snapshots.UpdateCurrentPhase(sctx, string(phase)); err != nil {
			log.Warn().Err(err).Str("phase", string(phase)).Msg("phase snapshot write failed")
		}
	}()
}

// completePrep emits the motion and side announcements, then transitions into
// the first speech phase. Host-only; callers gate.
func (c *Controller) completePrep() {
	now := c.clock.Now()
	c.transcript.Append(models.SpeakerSystem, fmt.Sprintf("Motion: %q", c.cfg.Topic), PhasePrep, now)
	side := "AGAINST (Opposition)"
	if c.localProp {
		side = "FOR (Proposition)"
	}
	c.transcript.Append(models.SpeakerSystem, "You are arguing "+side, PhasePrep, now)
	c.enterTransition(PhasePropConstructive)
}

func (c *Controller) completeDebate(ctx context.Context) {
	now := c.clock.Now()
	c.phase = PhaseDebateComplete
	c.timerRunning = false
	c.transitionPending = false
	c.transcript.Append(models.SpeakerSystem, "Debate complete!", PhaseDebateComplete, now)
	c.writeSnapshot(ctx, PhaseDebateComplete)
	c.broadcastPhaseChange(PhaseDebateComplete, now, 0)
	c.requestPrediction()
}

func (c *Controller) requestPrediction() {
	c.notify(Notice{Level: NoticePrediction, Message: "How do you think you did?"})
}

// ---------------------------------------------------------------------------
// Reconciliation

// reconcilePhaseChange applies a phase broadcast from the peer. Only the
// currently computed host may originate phase changes; anything else is
// stale or spoofed and is ignored without touching local state. Accepting a
// broadcast cancels any locally pending transition so the machine cannot
// double-advance.
func (c *Controller) reconcilePhaseChange(ctx context.Context, payload events.PhaseChangePayload) {
	sender, err := uuid.Parse(payload.UserID)
	if err != nil {
		log.Warn().Str("user_id", payload.UserID).Msg("phase_change with unparseable sender")
		return
	}
	if sender == c.cfg.LocalUserID {
		return
	}
	if !c.hostKnown || sender != c.hostID {
		log.Warn().
			Str("sender", sender.String()).
			Str("phase", payload.Phase).
			Msg("phase_change from non-host ignored")
		return
	}

	phase := Phase(payload.Phase)
	if phase == PhaseDebateComplete {
		key := fmt.Sprintf("%s:%d", phase, payload.StartedAt)
		if _, done := c.applied[key]; done {
			return
		}
		c.applied[key] = struct{}{}
		c.stopCapture()
		c.phase = PhaseDebateComplete
		c.timerRunning = false
		c.transitionPending = false
		c.writeSnapshot(ctx, PhaseDebateComplete)
		c.requestPrediction()
		return
	}
	if !phase.IsSpeech() {
		return
	}

	c.stopCapture()
	c.transitionPending = false
	c.startPhase(ctx, phase,
		time.UnixMilli(payload.StartedAt),
		time.Duration(payload.DurationSec)*time.Second,
		false)
}

func (c *Controller) handleRemoteTranscript(payload events.TranscriptPayload) {
	if payload.UserID == c.cfg.LocalUserID.String() {
		return
	}
	// Tagged with the phase active at broadcast time, not receipt time.
	c.transcript.Append(models.SpeakerPeer, payload.Text, Phase(payload.Phase), payload.Timestamp)
}

func (c *Controller) handleUserReady(payload events.UserReadyPayload) {
	if payload.UserID == c.cfg.LocalUserID.String() {
		return
	}
	log.Info().Str("user_id", payload.UserID).Msg("peer signaled ready")
}

// handleParticipantChange refreshes the participant set and re-elects the
// host. Failover policy: if the elected host disconnects, the surviving
// participant inherits timing authority from its current view and does not
// rewind.
func (c *Controller) handleParticipantChange(ctx context.Context, m participantsMsg) {
	if m.participants == nil {
		if c.roomSync == nil {
			return
		}
		go func() {
			participants, live, err := c.roomSync.Refresh(ctx)
			if err != nil {
				log.Error().Err(err).Msg("participant refresh failed")
				return
			}
			c.post(participantsMsg{participants: participants, live: live})
		}()
		return
	}

	c.setParticipants(m.participants)
	if m.live && c.phase == PhaseWaitingForOpponent {
		c.phase = PhaseSetup
		c.notify(Notice{Level: NoticeInfo, Message: "Opponent connected!"})
	}
}

// ---------------------------------------------------------------------------
// Speech capture

func (c *Controller) startCapture() {
	if c.capturer == nil {
		return
	}
	err := c.capturer.Start(func(seg speech.Segment) {
		c.post(segmentMsg{seg: seg})
	})
	if err != nil {
		log.Warn().Err(err).Msg("voice capture unavailable")
	}
}

func (c *Controller) stopCapture() {
	if c.capturer != nil && c.capturer.Capturing() {
		c.capturer.Stop()
	}
	c.interimText = ""
}

// handleSegment accumulates interim text and, on a final segment, appends the
// utterance and broadcasts it verbatim to the peer.
func (c *Controller) handleSegment(seg speech.Segment) {
	text := seg.Text
	if text == "" {
		return
	}
	if !seg.Final {
		c.interimText = text
		return
	}
	c.interimText = ""

	now := c.clock.Now()
	c.transcript.Append(models.SpeakerSelf, text, c.phase, now)

	payload := events.TranscriptPayload{
		UserID:    c.cfg.LocalUserID.String(),
		Text:      text,
		Phase:     string(c.phase),
		Timestamp: now,
	}
	if err := c.channel.Broadcast(events.EventTranscript, payload); err != nil {
		log.Error().Err(err).Msg("transcript broadcast failed")
	}
}

// ---------------------------------------------------------------------------
// User actions

func (c *Controller) handleAction(ctx context.Context, m actionMsg) {
	switch m.kind {
	case actionConnectAndStart:
		c.connectAndStart(ctx)
	case actionSkipPrep:
		if c.phase == PhasePrep && c.isHost() {
			c.timerRunning = false
			c.completePrep()
		}
	case actionPredict:
		c.predictAndJudge(ctx, m.prediction)
	case actionMicToggle:
		c.cfg.MicEnabled = m.micEnabled
		if !m.micEnabled {
			c.stopCapture()
		}
	}
}

func (c *Controller) connectAndStart(ctx context.Context) {
	if c.phase != PhaseSetup {
		return
	}
	if c.dialer == nil {
		c.post(mediaOpenedMsg{})
		return
	}
	roomName := "debate-room-" + c.cfg.RoomID.String()
	identity := c.cfg.LocalUserID.String()
	go func() {
		var token string
		if c.tokens != nil {
			var err error
			token, err = c.tokens.FetchToken(ctx, roomName, identity)
			if err != nil {
				c.post(mediaOpenedMsg{err: err})
				return
			}
		}
		session, err := c.dialer.Open(roomName, identity, token)
		c.post(mediaOpenedMsg{session: session, err: err})
	}()
}

func (c *Controller) handleMediaOpened(ctx context.Context, m mediaOpenedMsg) {
	if m.err != nil {
		msg := "Failed to join media session"
		if m.err == media.ErrPermissionDenied {
			msg = "Camera/microphone access denied"
		}
		log.Error().Err(m.err).Msg("media session open failed")
		c.notify(Notice{Level: NoticeError, Message: msg})
		return
	}
	if m.session != nil {
		c.session = m.session
		go func(s media.Session) {
			for ev := range s.Events() {
				c.post(mediaEventMsg{event: ev})
			}
		}(m.session)
	}

	if err := c.channel.Broadcast(events.EventUserReady, events.UserReadyPayload{UserID: c.cfg.LocalUserID.String()}); err != nil {
		log.Error().Err(err).Msg("user_ready broadcast failed")
	}
	c.beginPrep(ctx)
}

func (c *Controller) handleMediaEvent(event media.SessionEvent) {
	switch event.Type {
	case media.SessionRemoteTracksChanged:
		log.Debug().Int("remote_tracks", len(event.RemoteTracks)).Msg("remote media tracks changed")
	case media.SessionDisconnected:
		c.notify(Notice{Level: NoticeError, Message: "Media session disconnected"})
	}
}

// beginPrep starts the local prep countdown. Prep runs on each client's own
// clock; only its completion (host-side) is coordinated, via the transition
// into the first speech phase.
func (c *Controller) beginPrep(ctx context.Context) {
	now := c.clock.Now()
	c.phase = PhasePrep
	c.startedAt = now
	c.duration = TimesFor(c.cfg.Format).Prep
	c.timeLeft = c.duration
	c.timerRunning = true
	c.writeSnapshot(ctx, PhasePrep)
	log.Info().Dur("prep", c.duration).Msg("prep phase started")
}

// ---------------------------------------------------------------------------
// Judging

func (c *Controller) predictAndJudge(ctx context.Context, prediction *models.Verdict) {
	if c.phase != PhaseDebateComplete {
		return
	}
	c.prediction = prediction
	c.phase = PhaseJudging
	c.writeSnapshot(ctx, PhaseJudging)

	req := c.buildJudgeRequest()
	go func() {
		feedback, err := c.evaluator.Evaluate(ctx, req)
		c.post(judgedMsg{feedback: feedback, err: err})
	}()
}

func (c *Controller) buildJudgeRequest() judge.Request {
	side := "opposition"
	if c.localProp {
		side = "proposition"
	}

	var history []judge.HistoryTurn
	for _, e := range c.transcript.Entries() {
		switch e.Speaker {
		case models.SpeakerSelf:
			history = append(history, judge.HistoryTurn{Role: "user", Content: e.Text})
		case models.SpeakerPeer:
			history = append(history, judge.HistoryTurn{Role: "assistant", Content: e.Text})
		}
	}

	return judge.Request{
		Topic:               c.cfg.Topic,
		UserSide:            side,
		UserArguments:       c.transcript.Utterances(models.SpeakerSelf),
		OpponentArguments:   c.transcript.Utterances(models.SpeakerPeer),
		ConversationHistory: history,
	}
}

// handleJudged transitions to results whether judging succeeded or not; a
// failure degrades to a results view without structured feedback.
func (c *Controller) handleJudged(m judgedMsg) {
	if m.err != nil {
		log.Error().Err(m.err).Msg("AI judgment failed")
		c.notify(Notice{Level: NoticeError, Message: "Failed to get AI judgment"})
		c.feedback = nil
	} else {
		c.feedback = m.feedback
	}
	c.phase = PhaseResults
}

// ---------------------------------------------------------------------------

func (c *Controller) notify(n Notice) {
	select {
	case c.notices <- n:
	default:
		log.Debug().Str("message", n.Message).Msg("notice dropped, no consumer")
	}
}

func (c *Controller) teardown() {
	c.stopCapture()
	if c.session != nil {
		c.session.Disconnect()
		c.session = nil
	}
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	log.Info().Str("room_id", c.cfg.RoomID.String()).Msg("debate controller torn down")
}
