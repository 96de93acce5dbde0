package handsfree

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clccHarness подключает AG с поддержкой +CLCC и проводит пробный опрос с пустым списком.
func clccHarness(t *testing.T, call, setup, held int, rows ...CurrentCallEvent) *harness {
	t.Helper()
	h := newHarness(t)
	h.connect(fullFeatures|PeerFeatureECS, allChld)
	h.indicators(call, setup, held)
	require.Equal(t, []string{"clcc"}, h.tr.take())
	h.poll(rows...)
	require.True(t, h.m.Snapshot().QueryCallsSupported)
	return h
}

// poll отвечает на опрос списком строк и OK.
func (h *harness) poll(rows ...CurrentCallEvent) {
	h.t.Helper()
	for _, r := range rows {
		require.NoError(h.t, h.m.Post(r))
	}
	h.post(CommandResultEvent{Code: ResultOK})
}

func TestClccProbeBuildsTable(t *testing.T) {
	h := clccHarness(t, CallIndicatorInProgress, CallSetupIncoming, CallHeldNone,
		CurrentCallEvent{Index: 2, State: CallWaiting, Number: "+200"},
		CurrentCallEvent{Index: 1, State: CallActive, Number: "+100", Outgoing: true},
	)

	calls := h.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, Call{ID: 1, State: CallActive, Number: "+100", Outgoing: true,
		Device: testDevice, CreatedAt: calls[0].CreatedAt}, calls[0])
	assert.Equal(t, CallWaiting, calls[1].State)
	assert.False(t, calls[1].Outgoing)
	assert.Zero(t, h.sched.pending())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.metrics.clccPolls))
}

// TestClccPollIdempotent повторный опрос с тем же списком не порождает уведомлений
func TestClccPollIdempotent(t *testing.T) {
	row := CurrentCallEvent{Index: 1, State: CallIncoming, Number: "+100"}
	h := clccHarness(t, CallIndicatorNone, CallSetupIncoming, CallHeldNone, row)
	h.rec.take()

	h.post(ClipEvent{Number: "+100"})
	assert.Empty(t, h.rec.takeCalls())

	h.post(CallIndicatorEvent{Value: CallIndicatorNone})
	assert.Equal(t, []string{"clcc"}, h.tr.take(), "каждое изменение индикатора вызывает опрос")
	h.poll(row)
	assert.Empty(t, h.rec.takeCalls())
	assert.Len(t, h.calls(), 1)
}

func TestClccTransitions(t *testing.T) {
	h := clccHarness(t, CallIndicatorNone, CallSetupIncoming, CallHeldNone,
		CurrentCallEvent{Index: 1, State: CallIncoming, Number: "+100"})
	h.rec.take()

	h.post(CallIndicatorEvent{Value: CallIndicatorInProgress})
	require.Equal(t, []string{"clcc"}, h.tr.take())
	h.poll(CurrentCallEvent{Index: 1, State: CallActive})

	changes := h.rec.takeCalls()
	require.Len(t, changes, 1)
	assert.Equal(t, CallActive, changes[0].State)
	assert.Equal(t, "+100", changes[0].Number, "пустой номер в строке не затирает известный")

	h.post(CallIndicatorEvent{Value: CallIndicatorNone})
	h.poll()
	changes = h.rec.takeCalls()
	require.Len(t, changes, 1)
	assert.Equal(t, CallTerminated, changes[0].State)
	assert.Empty(t, h.calls())
}

func TestClccIndicatorHeuristicsBypassed(t *testing.T) {
	h := clccHarness(t, CallIndicatorNone, CallSetupNone, CallHeldNone)

	h.post(CallSetupIndicatorEvent{Value: CallSetupIncoming})
	assert.Empty(t, h.calls(), "без списка вызов не создается")

	h.post(ClipEvent{Number: "+300"}, CallWaitingEvent{Number: "+400"})
	assert.Empty(t, h.calls())
	assert.Equal(t, 1, h.m.queued.len())
}

func TestClccInvalidRowsSkipped(t *testing.T) {
	h := clccHarness(t, CallIndicatorInProgress, CallSetupNone, CallHeldNone,
		CurrentCallEvent{Index: 0, State: CallActive},
		CurrentCallEvent{Index: 3, State: CallTerminated},
		CurrentCallEvent{Index: 4, State: CallActive, Number: "+400"},
	)
	calls := h.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 4, calls[0].ID)
}

// TestClccProbeFailureFallsBack AG ответил ошибкой на пробный +CLCC
func TestClccProbeFailureFallsBack(t *testing.T) {
	h := newHarness(t)
	h.connect(fullFeatures|PeerFeatureECS, allChld)
	h.indicators(CallIndicatorInProgress, CallSetupNone, CallHeldNone)
	require.Equal(t, []string{"clcc"}, h.tr.take())
	assert.Empty(t, h.calls())

	h.post(CommandResultEvent{Code: ResultError})
	snap := h.m.Snapshot()
	assert.False(t, snap.QueryCallsSupported)
	require.Len(t, snap.Calls, 1)
	assert.Equal(t, CallActive, snap.Calls[0].State)

	h.post(CallIndicatorEvent{Value: CallIndicatorNone})
	assert.Empty(t, h.tr.take(), "после отказа опросы не отправляются")
	assert.Empty(t, h.calls())
}

func TestClccProbeNotSentWithoutECS(t *testing.T) {
	h := newHarness(t)
	h.connect(fullFeatures, allChld)
	h.indicators(CallIndicatorNone, CallSetupIncoming, CallHeldNone)
	assert.Empty(t, h.tr.take())
	assert.False(t, h.m.Snapshot().QueryCallsSupported)
	assert.Len(t, h.calls(), 1)
}

func TestClccTransportRejectsProbe(t *testing.T) {
	h := newHarness(t)
	h.connect(fullFeatures|PeerFeatureECS, allChld)
	h.tr.failOn("clcc", assert.AnError)

	h.indicators(CallIndicatorNone, CallSetupIncoming, CallHeldNone)
	assert.False(t, h.m.Snapshot().QueryCallsSupported)
	assert.Len(t, h.calls(), 1)
}

func TestClccLaterPollFailureKeepsTable(t *testing.T) {
	h := clccHarness(t, CallIndicatorInProgress, CallSetupNone, CallHeldNone,
		CurrentCallEvent{Index: 1, State: CallActive})

	h.post(CallHeldIndicatorEvent{Value: CallHeldHold})
	require.Equal(t, []string{"clcc"}, h.tr.take())
	h.post(CommandResultEvent{Code: ResultError})

	assert.True(t, h.m.Snapshot().QueryCallsSupported)
	assert.Equal(t, []Call{{ID: 1, State: CallActive, Device: testDevice, CreatedAt: h.calls()[0].CreatedAt}}, h.calls())
}

func TestClccClearsPendingAction(t *testing.T) {
	h := clccHarness(t, CallIndicatorNone, CallSetupIncoming, CallHeldNone,
		CurrentCallEvent{Index: 1, State: CallIncoming})

	require.NoError(t, h.svc.AcceptCall(testDevice, AcceptNone))
	h.m.ProcessPending()
	require.Equal(t, []string{"ATA"}, h.tr.take())
	h.ok(1)
	assert.Equal(t, ActionAcceptCall, h.m.Snapshot().Pending.Kind)

	h.post(CallIndicatorEvent{Value: CallIndicatorInProgress})
	h.poll(CurrentCallEvent{Index: 1, State: CallActive})
	assert.Equal(t, ActionNone, h.m.Snapshot().Pending.Kind)
}

// TestClccRequeryOnMultipleActive несколько активных вызовов перепроверяются одним таймером
func TestClccRequeryOnMultipleActive(t *testing.T) {
	rows := []CurrentCallEvent{
		{Index: 1, State: CallActive, MultiParty: true},
		{Index: 2, State: CallActive, MultiParty: true},
	}
	h := clccHarness(t, CallIndicatorInProgress, CallSetupNone, CallHeldNone, rows...)
	checkMultiParty(t, h.calls())
	assert.Equal(t, 1, h.sched.pending())

	h.post(CallHeldIndicatorEvent{Value: CallHeldNone})
	h.tr.take()
	h.poll(rows...)
	assert.Equal(t, 1, h.sched.pending(), "не больше одного таймера")

	h.sched.fire(false)
	h.m.ProcessPending()
	assert.Equal(t, []string{"clcc"}, h.tr.take())

	h.poll(CurrentCallEvent{Index: 1, State: CallActive}, CurrentCallEvent{Index: 2, State: CallHeld})
	assert.Zero(t, h.sched.pending())
	assert.Equal(t, []CallState{CallActive, CallHeld}, []CallState{h.calls()[0].State, h.calls()[1].State})
}

func TestClccRequeryOnSettledIncoming(t *testing.T) {
	row := CurrentCallEvent{Index: 1, State: CallIncoming}
	h := clccHarness(t, CallIndicatorNone, CallSetupIncoming, CallHeldNone, row)
	assert.Zero(t, h.sched.pending())

	h.post(CallSetupIndicatorEvent{Value: CallSetupNone})
	h.tr.take()
	h.poll(row)
	assert.Equal(t, 1, h.sched.pending())
}

// TestClccStaleRequeryIgnored таймер прошлой сессии не запускает опрос в новой
func TestClccStaleRequeryIgnored(t *testing.T) {
	rows := []CurrentCallEvent{{Index: 1, State: CallActive}, {Index: 2, State: CallActive}}
	h := clccHarness(t, CallIndicatorInProgress, CallSetupNone, CallHeldNone, rows...)
	require.Equal(t, 1, h.sched.pending())

	h.post(ConnectionStateEvent{State: ConnectionDisconnected, Device: testDevice})
	assert.Zero(t, h.sched.pending(), "таймер отменен при отключении")

	h.connect(fullFeatures|PeerFeatureECS, allChld)
	h.sched.fire(true)
	h.m.ProcessPending()
	assert.Empty(t, h.tr.take())
	assert.Empty(t, h.calls())
}
