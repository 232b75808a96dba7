package debate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebutly/podium/internal/debate/events"
	"github.com/rebutly/podium/internal/judge"
	"github.com/rebutly/podium/internal/models"
	"github.com/rebutly/podium/internal/signaling"
	"github.com/rebutly/podium/internal/speech"
)

var (
	userA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	userB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	userC = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

// recordingChannel captures broadcasts without a transport behind it.
type recordingChannel struct {
	ready      bool
	broadcasts []recordedBroadcast
}

type recordedBroadcast struct {
	event   string
	payload any
}

func (r *recordingChannel) Broadcast(event string, payload any) error {
	if !r.ready {
		return signaling.ErrNotReady
	}
	r.broadcasts = append(r.broadcasts, recordedBroadcast{event: event, payload: payload})
	return nil
}

func (r *recordingChannel) Subscribe(event string, h signaling.Handler) (func(), error) {
	return func() {}, nil
}

func (r *recordingChannel) Ready() bool { return r.ready }
func (r *recordingChannel) Close()      {}

func (r *recordingChannel) phaseChanges() []events.PhaseChangePayload {
	var out []events.PhaseChangePayload
	for _, b := range r.broadcasts {
		if b.event == events.EventPhaseChange {
			out = append(out, b.payload.(events.PhaseChangePayload))
		}
	}
	return out
}

type fakeEvaluator struct {
	feedback *models.Feedback
	err      error
	lastReq  judge.Request
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, req judge.Request) (*models.Feedback, error) {
	f.lastReq = req
	return f.feedback, f.err
}

func twoHumans(propID, oppID uuid.UUID) []models.Participant {
	prop := "proposition"
	opp := "opposition"
	return []models.Participant{
		{ID: uuid.New(), UserID: &propID, Role: &prop},
		{ID: uuid.New(), UserID: &oppID, Role: &opp},
	}
}

func newTestController(local uuid.UUID, participants []models.Participant, ch signaling.Channel, ev judge.Evaluator) (*Controller, *clockwork.FakeClock) {
	clk := clockwork.NewFakeClock()
	c := NewController(
		Config{
			RoomID:      uuid.New(),
			LocalUserID: local,
			Topic:       "This House believes testing matters",
			Format:      models.FormatStandard,
			EntryPhase:  PhaseSetup,
			MicEnabled:  true,
		},
		clk, ch, nil, nil, nil, ev, nil, nil,
		participants,
	)
	return c, clk
}

func systemEntries(c *Controller, text string) int {
	n := 0
	for _, e := range c.Transcript().Entries() {
		if e.Speaker == models.SpeakerSystem && e.Text == text {
			n++
		}
	}
	return n
}

func TestStartPhaseIdempotent(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userA, twoHumans(userA, userB), ch, &fakeEvaluator{})
	require.True(t, c.isHost())

	ctx := context.Background()
	startedAt := clk.Now()

	c.startPhase(ctx, PhasePropConstructive, startedAt, 180*time.Second, true)
	c.startPhase(ctx, PhasePropConstructive, startedAt, 180*time.Second, true)

	assert.Equal(t, 1, systemEntries(c, "Proposition Constructive begins"),
		"duplicate application must not produce a second system entry")
	assert.Len(t, ch.phaseChanges(), 1, "duplicate application must not re-broadcast")
	assert.Equal(t, PhasePropConstructive, c.Snapshot().Phase)
	assert.Equal(t, 180*time.Second, c.Snapshot().TimeLeft)
}

func TestStartPhaseNewStartIsApplied(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userA, twoHumans(userA, userB), ch, &fakeEvaluator{})
	ctx := context.Background()

	first := clk.Now()
	c.startPhase(ctx, PhasePropConstructive, first, 180*time.Second, true)

	// Same phase name but a fresh start timestamp is a distinct application.
	clk.Advance(time.Second)
	c.startPhase(ctx, PhasePropConstructive, clk.Now(), 180*time.Second, true)

	assert.Equal(t, 2, systemEntries(c, "Proposition Constructive begins"))
	assert.Len(t, ch.phaseChanges(), 2)
}

func TestHostTimerProgressionStandardFormat(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userA, twoHumans(userA, userB), ch, &fakeEvaluator{})
	ctx := context.Background()

	c.startPhase(ctx, PhasePropConstructive, clk.Now(), 180*time.Second, true)

	clk.Advance(175 * time.Second)
	c.handleTick(ctx)
	snap := c.Snapshot()
	assert.Equal(t, 5*time.Second, snap.TimeLeft)
	assert.True(t, snap.TimerRunning)

	clk.Advance(6 * time.Second)
	c.handleTick(ctx)
	snap = c.Snapshot()
	assert.Equal(t, PhaseTransition, snap.Phase, "expiry must enter the interstitial")
	assert.False(t, snap.TimerRunning)
	assert.Equal(t, PhaseOppConstructive, c.pendingNext)

	// Further ticks inside the interstitial must not re-fire the expiry.
	clk.Advance(time.Second)
	c.handleTick(ctx)
	assert.Equal(t, PhaseTransition, c.Snapshot().Phase)

	clk.Advance(4 * time.Second)
	c.handleTick(ctx)
	snap = c.Snapshot()
	assert.Equal(t, PhaseOppConstructive, snap.Phase)
	assert.Equal(t, 180*time.Second, snap.TimeLeft)

	changes := ch.phaseChanges()
	require.Len(t, changes, 2, "one broadcast per phase start, none for the interstitial")
	assert.Equal(t, string(PhasePropConstructive), changes[0].Phase)
	assert.Equal(t, string(PhaseOppConstructive), changes[1].Phase)
	assert.Equal(t, 180, changes[1].DurationSec)
}

func TestNonHostWaitsForBroadcastOnExpiry(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userB, twoHumans(userA, userB), ch, &fakeEvaluator{})
	require.False(t, c.isHost())
	ctx := context.Background()

	c.startPhase(ctx, PhasePropConstructive, clk.Now(), 180*time.Second, false)

	clk.Advance(181 * time.Second)
	c.handleTick(ctx)

	snap := c.Snapshot()
	assert.Equal(t, PhasePropConstructive, snap.Phase, "non-host must not advance on its own")
	assert.False(t, snap.TimerRunning)
	assert.Empty(t, ch.phaseChanges())
}

func TestFinalSpeechExpiryCompletesDebate(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userA, twoHumans(userA, userB), ch, &fakeEvaluator{})
	ctx := context.Background()

	c.startPhase(ctx, PhaseOppClosing, clk.Now(), 90*time.Second, true)
	clk.Advance(91 * time.Second)
	c.handleTick(ctx)

	snap := c.Snapshot()
	assert.Equal(t, PhaseDebateComplete, snap.Phase)
	assert.Equal(t, 1, systemEntries(c, "Debate complete!"))

	changes := ch.phaseChanges()
	require.Len(t, changes, 2)
	assert.Equal(t, string(PhaseDebateComplete), changes[1].Phase)
	assert.Equal(t, 0, changes[1].DurationSec)

	select {
	case n := <-c.Notices():
		assert.Equal(t, NoticePrediction, n.Level)
	default:
		t.Fatal("expected a prediction prompt notice")
	}
}

func TestReconcileIgnoresOwnBroadcast(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userA, twoHumans(userA, userB), ch, &fakeEvaluator{})
	ctx := context.Background()

	c.reconcilePhaseChange(ctx, events.PhaseChangePayload{
		UserID:      userA.String(),
		Phase:       string(PhaseOppConstructive),
		StartedAt:   clk.Now().UnixMilli(),
		DurationSec: 180,
	})
	assert.Equal(t, PhaseSetup, c.Snapshot().Phase, "own broadcasts are filtered by identity")
}

func TestReconcileIgnoresNonHostSender(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userB, twoHumans(userA, userB), ch, &fakeEvaluator{})
	ctx := context.Background()

	c.reconcilePhaseChange(ctx, events.PhaseChangePayload{
		UserID:      userC.String(),
		Phase:       string(PhaseOppConstructive),
		StartedAt:   clk.Now().UnixMilli(),
		DurationSec: 180,
	})
	assert.Equal(t, PhaseSetup, c.Snapshot().Phase, "only the elected host may originate phase changes")
	assert.Equal(t, 0, c.Transcript().Len())
}

func TestReconcileAppliesHostBroadcast(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userB, twoHumans(userA, userB), ch, &fakeEvaluator{})
	ctx := context.Background()

	startedAt := clk.Now()
	clk.Advance(30 * time.Second)
	c.reconcilePhaseChange(ctx, events.PhaseChangePayload{
		UserID:      userA.String(),
		Phase:       string(PhasePropConstructive),
		StartedAt:   startedAt.UnixMilli(),
		DurationSec: 180,
	})

	snap := c.Snapshot()
	assert.Equal(t, PhasePropConstructive, snap.Phase)
	assert.Equal(t, 150*time.Second, snap.TimeLeft,
		"remaining time is reconstructed from the broadcast start, not reset")
	assert.True(t, snap.TimerRunning)
	assert.Empty(t, ch.phaseChanges(), "reconciled applications never re-broadcast")
}

func TestReconcileCancelsPendingTransition(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userB, twoHumans(userA, userB), ch, &fakeEvaluator{})
	ctx := context.Background()

	c.enterTransition(PhaseOppConstructive)
	require.True(t, c.transitionPending)

	c.reconcilePhaseChange(ctx, events.PhaseChangePayload{
		UserID:      userA.String(),
		Phase:       string(PhaseOppConstructive),
		StartedAt:   clk.Now().UnixMilli(),
		DurationSec: 180,
	})
	assert.False(t, c.transitionPending, "accepting a broadcast must cancel the local interstitial")
	assert.Equal(t, PhaseOppConstructive, c.Snapshot().Phase)
}

func TestReconcileStaleRedeliveryDoesNotRewind(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userB, twoHumans(userA, userB), ch, &fakeEvaluator{})
	ctx := context.Background()

	first := clk.Now().UnixMilli()
	c.reconcilePhaseChange(ctx, events.PhaseChangePayload{
		UserID:      userA.String(),
		Phase:       string(PhasePropConstructive),
		StartedAt:   first,
		DurationSec: 180,
	})
	require.Equal(t, PhasePropConstructive, c.Snapshot().Phase)

	clk.Advance(181 * time.Second)
	c.reconcilePhaseChange(ctx, events.PhaseChangePayload{
		UserID:      userA.String(),
		Phase:       string(PhaseOppConstructive),
		StartedAt:   clk.Now().UnixMilli(),
		DurationSec: 180,
	})
	require.Equal(t, PhaseOppConstructive, c.Snapshot().Phase)

	// The first phase's broadcast arrives again, out of order, after the
	// machine has moved on.
	c.reconcilePhaseChange(ctx, events.PhaseChangePayload{
		UserID:      userA.String(),
		Phase:       string(PhasePropConstructive),
		StartedAt:   first,
		DurationSec: 180,
	})

	snap := c.Snapshot()
	assert.Equal(t, PhaseOppConstructive, snap.Phase, "a stale redelivery must not rewind the machine")
	assert.Equal(t, 180*time.Second, snap.TimeLeft)
	assert.Equal(t, 1, systemEntries(c, "Proposition Constructive begins"))
	assert.Equal(t, 1, systemEntries(c, "Opposition Constructive begins"))
}

func TestReconcileDebateCompleteRedeliveredOnce(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userB, twoHumans(userA, userB), ch, &fakeEvaluator{})
	ctx := context.Background()

	payload := events.PhaseChangePayload{
		UserID:    userA.String(),
		Phase:     string(PhaseDebateComplete),
		StartedAt: clk.Now().UnixMilli(),
	}
	c.reconcilePhaseChange(ctx, payload)
	c.reconcilePhaseChange(ctx, payload)
	assert.Equal(t, PhaseDebateComplete, c.Snapshot().Phase)

	notices := 0
drain:
	for {
		select {
		case n := <-c.Notices():
			assert.Equal(t, NoticePrediction, n.Level)
			notices++
		default:
			break drain
		}
	}
	assert.Equal(t, 1, notices, "a redelivered completion must not prompt twice")
}

func TestReconcileDebateComplete(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userB, twoHumans(userA, userB), ch, &fakeEvaluator{})
	ctx := context.Background()

	c.startPhase(ctx, PhaseOppClosing, clk.Now(), 90*time.Second, false)
	entriesBefore := c.Transcript().Len()

	c.reconcilePhaseChange(ctx, events.PhaseChangePayload{
		UserID:    userA.String(),
		Phase:     string(PhaseDebateComplete),
		StartedAt: clk.Now().UnixMilli(),
	})

	snap := c.Snapshot()
	assert.Equal(t, PhaseDebateComplete, snap.Phase)
	assert.False(t, snap.TimerRunning)
	assert.Equal(t, entriesBefore, c.Transcript().Len())

	select {
	case n := <-c.Notices():
		assert.Equal(t, NoticePrediction, n.Level)
	default:
		t.Fatal("expected a prediction prompt notice")
	}
}

func TestRemoteTranscriptSelfFiltered(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, clk := newTestController(userA, twoHumans(userA, userB), ch, &fakeEvaluator{})

	c.handleRemoteTranscript(events.TranscriptPayload{
		UserID:    userA.String(),
		Text:      "echo of my own words",
		Phase:     string(PhasePropConstructive),
		Timestamp: clk.Now(),
	})
	assert.Equal(t, 0, c.Transcript().Len())

	c.handleRemoteTranscript(events.TranscriptPayload{
		UserID:    userB.String(),
		Text:      "peer argument",
		Phase:     string(PhaseOppConstructive),
		Timestamp: clk.Now(),
	})
	entries := c.Transcript().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.SpeakerPeer, entries[0].Speaker)
	assert.Equal(t, string(PhaseOppConstructive), entries[0].Phase, "tagged with the phase at broadcast time")
}

func TestSegmentInterimThenFinal(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, _ := newTestController(userA, twoHumans(userA, userB), ch, &fakeEvaluator{})
	c.phase = PhasePropConstructive

	c.handleSegment(speech.Segment{Text: "the economy", Final: false})
	assert.Equal(t, "the economy", c.Snapshot().InterimText)
	assert.Equal(t, 0, c.Transcript().Len(), "interim text never enters the transcript")

	c.handleSegment(speech.Segment{Text: "the economy will suffer", Final: true})
	assert.Empty(t, c.Snapshot().InterimText)
	require.Equal(t, 1, c.Transcript().Len())
	assert.Equal(t, []string{"the economy will suffer"}, c.Transcript().Utterances(models.SpeakerSelf))

	require.Len(t, ch.broadcasts, 1)
	assert.Equal(t, events.EventTranscript, ch.broadcasts[0].event)
	payload := ch.broadcasts[0].payload.(events.TranscriptPayload)
	assert.Equal(t, "the economy will suffer", payload.Text)
	assert.Equal(t, string(PhasePropConstructive), payload.Phase)
}

func TestParticipantChangeGoesLive(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, _ := newTestController(userA, twoHumans(userA, userB), ch, &fakeEvaluator{})
	c.phase = PhaseWaitingForOpponent

	c.handleParticipantChange(context.Background(), participantsMsg{
		participants: twoHumans(userA, userB),
		live:         true,
	})

	assert.Equal(t, PhaseSetup, c.Snapshot().Phase)
	select {
	case n := <-c.Notices():
		assert.Equal(t, NoticeInfo, n.Level)
		assert.Equal(t, "Opponent connected!", n.Message)
	default:
		t.Fatal("expected an opponent-connected notice")
	}
}

func TestHostReelectionOnParticipantChange(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, _ := newTestController(userB, twoHumans(userA, userB), ch, &fakeEvaluator{})
	require.False(t, c.isHost())

	// Host disconnects; the survivor inherits timing authority.
	opp := "opposition"
	c.handleParticipantChange(context.Background(), participantsMsg{
		participants: []models.Participant{{ID: uuid.New(), UserID: &userB, Role: &opp}},
		live:         true,
	})
	assert.True(t, c.isHost())
}

func TestConnectAndStartGatedOnReadiness(t *testing.T) {
	bus := signaling.NewBus()
	c, _ := newTestController(userA, twoHumans(userA, userB), bus, &fakeEvaluator{})

	bus.SetReady(false)
	err := c.ConnectAndStart()
	assert.ErrorIs(t, err, signaling.ErrNotReady)

	bus.SetReady(true)
	require.NoError(t, c.ConnectAndStart())

	select {
	case msg := <-c.mailbox:
		action, ok := msg.(actionMsg)
		require.True(t, ok)
		assert.Equal(t, actionConnectAndStart, action.kind)
	default:
		t.Fatal("expected the action to be enqueued")
	}
}

func TestConnectWithoutDialerBeginsPrep(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, _ := newTestController(userA, twoHumans(userA, userB), ch, &fakeEvaluator{})
	ctx := context.Background()

	c.handleAction(ctx, actionMsg{kind: actionConnectAndStart})

	select {
	case msg := <-c.mailbox:
		c.dispatch(ctx, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a media-opened message")
	}

	snap := c.Snapshot()
	assert.Equal(t, PhasePrep, snap.Phase)
	assert.Equal(t, 60*time.Second, snap.TimeLeft, "standard format prep allotment")
	assert.True(t, snap.TimerRunning)

	require.Len(t, ch.broadcasts, 1)
	assert.Equal(t, events.EventUserReady, ch.broadcasts[0].event)
}

func TestSkipPrepHostOnly(t *testing.T) {
	ch := &recordingChannel{ready: true}
	host, _ := newTestController(userA, twoHumans(userA, userB), ch, &fakeEvaluator{})
	host.phase = PhasePrep
	host.timerRunning = true

	host.handleAction(context.Background(), actionMsg{kind: actionSkipPrep})
	assert.Equal(t, PhaseTransition, host.Snapshot().Phase)
	assert.Equal(t, PhasePropConstructive, host.pendingNext)
	assert.Equal(t, 1, systemEntries(host, `Motion: "This House believes testing matters"`))
	assert.Equal(t, 1, systemEntries(host, "You are arguing FOR (Proposition)"))

	guest, _ := newTestController(userB, twoHumans(userA, userB), &recordingChannel{ready: true}, &fakeEvaluator{})
	guest.phase = PhasePrep
	guest.handleAction(context.Background(), actionMsg{kind: actionSkipPrep})
	assert.Equal(t, PhasePrep, guest.Snapshot().Phase, "skip is a host-only effect")
}

func TestJudgingFailureDegradesToResults(t *testing.T) {
	ch := &recordingChannel{ready: true}
	ev := &fakeEvaluator{err: errors.New("function timeout")}
	c, _ := newTestController(userA, twoHumans(userA, userB), ch, ev)
	ctx := context.Background()

	c.phase = PhaseDebateComplete
	verdict := models.VerdictWin
	c.predictAndJudge(ctx, &verdict)
	assert.Equal(t, PhaseJudging, c.Snapshot().Phase)

	select {
	case msg := <-c.mailbox:
		c.dispatch(ctx, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a judged message")
	}

	snap := c.Snapshot()
	assert.Equal(t, PhaseResults, snap.Phase, "a judging failure still reaches results")
	assert.Nil(t, snap.Feedback)
	require.NotNil(t, snap.Prediction)
	assert.Equal(t, models.VerdictWin, *snap.Prediction)

	select {
	case n := <-c.Notices():
		assert.Equal(t, NoticeError, n.Level)
		assert.Equal(t, "Failed to get AI judgment", n.Message)
	default:
		t.Fatal("expected a judgment-failure notice")
	}
}

func TestJudgingSuccessCarriesFeedback(t *testing.T) {
	ch := &recordingChannel{ready: true}
	ev := &fakeEvaluator{feedback: &models.Feedback{Verdict: models.VerdictWin, OverallScore: 82}}
	c, clk := newTestController(userA, twoHumans(userA, userB), ch, ev)
	ctx := context.Background()

	c.Transcript().Append(models.SpeakerSelf, "my case", PhasePropConstructive, clk.Now())
	c.Transcript().Append(models.SpeakerPeer, "their case", PhaseOppConstructive, clk.Now())

	c.phase = PhaseDebateComplete
	c.predictAndJudge(ctx, nil)

	select {
	case msg := <-c.mailbox:
		c.dispatch(ctx, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a judged message")
	}

	snap := c.Snapshot()
	assert.Equal(t, PhaseResults, snap.Phase)
	require.NotNil(t, snap.Feedback)
	assert.Equal(t, 82, snap.Feedback.OverallScore)
	assert.Nil(t, snap.Prediction, "a skipped prediction stays nil")

	assert.Equal(t, "proposition", ev.lastReq.UserSide)
	assert.Equal(t, []string{"my case"}, ev.lastReq.UserArguments)
	assert.Equal(t, []string{"their case"}, ev.lastReq.OpponentArguments)
	require.Len(t, ev.lastReq.ConversationHistory, 2)
	assert.Equal(t, "user", ev.lastReq.ConversationHistory[0].Role)
	assert.Equal(t, "assistant", ev.lastReq.ConversationHistory[1].Role)
}

func TestPredictOutsideDebateCompleteIsNoOp(t *testing.T) {
	ch := &recordingChannel{ready: true}
	c, _ := newTestController(userA, twoHumans(userA, userB), ch, &fakeEvaluator{})

	c.phase = PhasePropConstructive
	c.predictAndJudge(context.Background(), nil)
	assert.Equal(t, PhasePropConstructive, c.Snapshot().Phase)
}

func TestRunExitsAtResults(t *testing.T) {
	bus := signaling.NewBus()
	c, clk := newTestController(userA, twoHumans(userA, userB), bus, &fakeEvaluator{})
	c.phase = PhaseDebateComplete

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	// Wait for Run to be parked on its ticker before driving it.
	clk.BlockUntilContext(context.Background(), 1)
	verdict := models.VerdictClose
	c.Predict(&verdict)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not exit after reaching results")
	}
	assert.Equal(t, PhaseResults, c.Snapshot().Phase)
}
