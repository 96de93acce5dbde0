package handsfree

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var (
	testDevice  = Device{Address: "00:11:22:33:44:55", Name: "Phone", Path: "/org/bluez/hci0/dev_00_11_22_33_44_55"}
	otherDevice = Device{Address: "66:77:88:99:AA:BB", Name: "Tablet"}
)

// fakeTransport записывает отправленные примитивы и возвращает заданные ошибки.
type fakeTransport struct {
	mu   sync.Mutex
	sent []string
	fail map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{fail: make(map[string]error)}
}

func (f *fakeTransport) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, op)
	return f.fail[op]
}

func (f *fakeTransport) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

// take возвращает отправленные примитивы и очищает журнал.
func (f *fakeTransport) take() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sent
	f.sent = nil
	return out
}

func (f *fakeTransport) Connect(Device) error         { return f.record("connect") }
func (f *fakeTransport) Disconnect(Device) error      { return f.record("disconnect") }
func (f *fakeTransport) ConnectAudio(Device) error    { return f.record("connect_audio") }
func (f *fakeTransport) DisconnectAudio(Device) error { return f.record("disconnect_audio") }
func (f *fakeTransport) StartVoiceRecognition() error { return f.record("bvra=1") }
func (f *fakeTransport) StopVoiceRecognition() error  { return f.record("bvra=0") }
func (f *fakeTransport) QueryCurrentCalls() error     { return f.record("clcc") }
func (f *fakeTransport) QueryOperatorName() error     { return f.record("cops") }
func (f *fakeTransport) RetrieveSubscriberInfo() error {
	return f.record("cnum")
}
func (f *fakeTransport) RequestLastVoiceTagNumber() error {
	return f.record("binp")
}

func (f *fakeTransport) SetVolume(volume VolumeType, level int) error {
	if volume == VolumeMic {
		return f.record(fmt.Sprintf("vgm=%d", level))
	}
	return f.record(fmt.Sprintf("vgs=%d", level))
}

func (f *fakeTransport) Dial(number string) error {
	if number == "" {
		return f.record("redial")
	}
	return f.record("dial:" + number)
}

func (f *fakeTransport) DialMemory(location int) error {
	return f.record(fmt.Sprintf("mem:%d", location))
}

func (f *fakeTransport) SendCallAction(cmd CallCommand, index int) error {
	switch cmd {
	case CommandCHLD1x:
		return f.record(fmt.Sprintf("CHLD=1%d", index))
	case CommandCHLD2x:
		return f.record(fmt.Sprintf("CHLD=2%d", index))
	}
	return f.record(cmd.String())
}

func (f *fakeTransport) SendDTMF(code byte) error {
	return f.record("vts=" + string(code))
}

// manualScheduler откладывает функции до явного fire.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// pending количество не сработавших и не отмененных таймеров.
func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// fire запускает все активные таймеры, включая отмененные, если force.
func (s *manualScheduler) fire(force bool) {
	s.mu.Lock()
	timers := s.timers
	s.timers = nil
	s.mu.Unlock()
	for _, t := range timers {
		if t.stopped && !force {
			continue
		}
		t.stopped = true
		t.f()
	}
}

// recorder собирает уведомления.
type recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recorder) OnNotification(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recorder) take() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	return out
}

func (r *recorder) takeCalls() []Call {
	var out []Call
	for _, n := range r.take() {
		if c, ok := n.(CallChanged); ok {
			out = append(out, c.Call)
		}
	}
	return out
}

// fakeAudio запоминает вызовы маршрутизатора.
type fakeAudio struct {
	params  []AudioParams
	speaker int
	muted   bool
}

func (a *fakeAudio) SetAudioParams(p AudioParams) { a.params = append(a.params, p) }
func (a *fakeAudio) SetSpeakerVolume(level int)   { a.speaker = level }
func (a *fakeAudio) SetMicMute(mute bool)         { a.muted = mute }

type harness struct {
	t     *testing.T
	m     *Machine
	svc   *Service
	tr    *fakeTransport
	sched *manualScheduler
	rec   *recorder
	audio *fakeAudio
	reg   *prometheus.Registry
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		tr:    newFakeTransport(),
		sched: &manualScheduler{},
		rec:   &recorder{},
		audio: &fakeAudio{},
		reg:   prometheus.NewRegistry(),
	}
	session := 0
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithScheduler(h.sched),
		WithListener(h.rec),
		WithAudioRouter(h.audio),
		WithMetrics(NewMetrics(&MetricsConfig{Namespace: "hfp", Registerer: h.reg})),
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }),
		WithSessionIDs(func() string {
			session++
			return fmt.Sprintf("session-%d", session)
		}),
	}
	m, err := New(h.tr, append(base, opts...)...)
	require.NoError(t, err)
	h.m = m
	h.svc = NewService(m)
	return h
}

// post доставляет события и обрабатывает почтовый ящик.
func (h *harness) post(events ...Event) {
	h.t.Helper()
	for _, ev := range events {
		require.NoError(h.t, h.m.Post(ev))
	}
	h.m.ProcessPending()
}

// connect проводит машину до Connected и подтверждает служебные команды.
func (h *harness) connect(peer PeerFeatures, chld ChldFeatures) {
	h.t.Helper()
	require.NoError(h.t, h.svc.Connect(testDevice))
	h.m.ProcessPending()
	h.post(
		ConnectionStateEvent{State: ConnectionConnected, Device: testDevice},
		ConnectionStateEvent{State: ConnectionSLCConnected, Device: testDevice, PeerFeatures: peer, ChldFeatures: chld},
	)
	require.Equal(h.t, StateConnected, h.m.State())
	h.ok(3)
	h.tr.take()
	h.rec.take()
}

// ok подтверждает n команд.
func (h *harness) ok(n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		h.post(CommandResultEvent{Code: ResultOK})
	}
}

func (h *harness) indicators(call, setup, held int) {
	h.t.Helper()
	h.post(
		CallIndicatorEvent{Value: call},
		CallSetupIndicatorEvent{Value: setup},
		CallHeldIndicatorEvent{Value: held},
	)
}

func (h *harness) calls() []Call {
	return h.m.Snapshot().Calls
}

// seed кладет вызов напрямую в таблицу, минуя индикаторы.
func (h *harness) seed(state CallState, number string) *Call {
	c := h.m.calls.add(state, number)
	h.m.publishSnapshot()
	h.rec.take()
	return c
}

// checkMultiParty проверяет инвариант multiparty на текущей таблице.
func checkMultiParty(t *testing.T, calls []Call) {
	t.Helper()
	active := 0
	for _, c := range calls {
		if c.State == CallActive {
			active++
		}
	}
	for _, c := range calls {
		require.Equal(t, c.State == CallActive && active > 1, c.MultiParty, "multiparty для вызова %d", c.ID)
	}
}

const fullFeatures = PeerFeature3Way | PeerFeatureVoiceRecog | PeerFeatureVoiceTag | PeerFeatureReject |
	PeerFeatureECC | PeerFeatureInBandRing

const allChld = ChldRelease | ChldReleaseAccept | ChldReleaseSpecific | ChldHoldAccept |
	ChldPrivateMode | ChldMerge | ChldMergeDetach
