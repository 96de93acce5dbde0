package handsfree

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/pkg/errors"
)

// State состояние жизненного цикла подключения.
type State string

const (
	StateDisconnected State = "Disconnected"
	StateConnecting   State = "Connecting"
	StateConnected    State = "Connected"
	StateAudioOn      State = "AudioOn"
)

func (s State) String() string {
	return string(s)
}

func formEventName(src, dst State) string {
	builder := strings.Builder{}
	builder.WriteString(string(src))
	builder.WriteString("_to_")
	builder.WriteString(string(dst))
	return builder.String()
}

/*
Жизненный цикл подключения:

	[Disconnected] → [Connecting] → [Connected] ⇄ [AudioOn]
	[Connecting] → [Disconnected]
	[Connected] → [Disconnected]
	[AudioOn] → [Disconnected]

Disconnected → Connected напрямую не бывает: входящее подключение тоже проходит через
Connecting, пока не установлен SLC.

Каждое состояние обрабатывает сообщения своим обработчиком. Необработанные AudioOn
сообщения передаются обработчику Connected. Отложенные сообщения возвращаются в голову
почтового ящика при любом входе в состояние, в исходном порядке.
*/

// Transition запись в истории переходов.
type Transition struct {
	From    State
	To      State
	Trigger string
	At      time.Time
}

type stateHandler func(m *Machine, msg message) bool

// Machine клиентская машина состояний HFP для одного AG.
//
// Все мутации выполняются одной горутиной, которая читает почтовый ящик (Run или
// ProcessPending). Остальные горутины только кладут сообщения (Post и методы Service)
// и читают опубликованный Snapshot.
type Machine struct {
	cfg       *Config
	baseLog   *slog.Logger
	log       *slog.Logger
	transport Transport
	audio     AudioRouter
	policy    ConnectPolicy
	redirect  func(Device)
	scheduler Scheduler
	now       func() time.Time
	metrics   *Metrics

	broadcaster *Broadcaster
	newSession  func() string

	mailbox  *mailbox
	fsm      *fsm.FSM
	handlers map[State]stateHandler
	deferred []message
	// current имя обрабатываемого сообщения, для истории переходов
	current string

	historyMu sync.Mutex
	history   []Transition

	device     Device
	session    string
	generation uint64
	requery    Timer

	calls               *callTable
	clccBuffer          []CurrentCallEvent
	indicators          Indicators
	queryCallsSupported bool
	clccProbe           bool
	pending             Action
	queued              actionQueue

	peerFeatures PeerFeatures
	chldFeatures ChldFeatures
	agEvents     AgEvents
	connState    ConnectionState
	audioState   AudioState
	wideband     bool

	snapshot atomic.Pointer[Snapshot]
}

// New создает машину в состоянии Disconnected.
func New(transport Transport, opts ...Option) (*Machine, error) {
	if transport == nil {
		return nil, ErrInvalidArgument("transport", nil)
	}
	m := &Machine{
		cfg:         DefaultConfig(),
		baseLog:     slog.Default(),
		transport:   transport,
		audio:       NopAudioRouter{},
		policy:      allowAll,
		scheduler:   realScheduler{},
		now:         time.Now,
		broadcaster: &Broadcaster{},
		newSession:  func() string { return uuid.NewString() },
		mailbox:     newMailbox(),
		indicators:  unknownIndicators(),
		pending:     noAction,
		connState:   ConnectionDisconnected,
		audioState:  AudioDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "некорректная конфигурация")
	}
	m.log = m.baseLog.With(slog.String("component", "hfp"))
	m.calls = newCallTable(m.onCallChanged, m.now)
	m.handlers = map[State]stateHandler{
		StateDisconnected: (*Machine).handleDisconnected,
		StateConnecting:   (*Machine).handleConnecting,
		StateConnected:    (*Machine).handleConnected,
		StateAudioOn:      (*Machine).handleAudioOn,
	}
	m.initFSM()
	m.publishSnapshot()
	return m, nil
}

func (m *Machine) initFSM() {
	m.fsm = fsm.NewFSM(
		string(StateDisconnected),
		fsm.Events{
			{Name: formEventName(StateDisconnected, StateConnecting), Src: []string{string(StateDisconnected)}, Dst: string(StateConnecting)},
			{Name: formEventName(StateConnecting, StateConnected), Src: []string{string(StateConnecting)}, Dst: string(StateConnected)},
			{Name: formEventName(StateConnecting, StateDisconnected), Src: []string{string(StateConnecting)}, Dst: string(StateDisconnected)},
			{Name: formEventName(StateConnected, StateAudioOn), Src: []string{string(StateConnected)}, Dst: string(StateAudioOn)},
			{Name: formEventName(StateConnected, StateDisconnected), Src: []string{string(StateConnected)}, Dst: string(StateDisconnected)},
			{Name: formEventName(StateAudioOn, StateConnected), Src: []string{string(StateAudioOn)}, Dst: string(StateConnected)},
			{Name: formEventName(StateAudioOn, StateDisconnected), Src: []string{string(StateAudioOn)}, Dst: string(StateDisconnected)},
		}, fsm.Callbacks{
			"enter_state": m.afterStateChange,
		})
}

func (m *Machine) afterStateChange(ctx context.Context, e *fsm.Event) {
	from, to := State(e.Src), State(e.Dst)
	m.metrics.transition(from, to)

	if m.cfg.HistorySize == 0 {
		return
	}
	m.historyMu.Lock()
	m.history = append(m.history, Transition{From: from, To: to, Trigger: m.current, At: m.now()})
	if over := len(m.history) - m.cfg.HistorySize; over > 0 {
		m.history = append([]Transition(nil), m.history[over:]...)
	}
	m.historyMu.Unlock()
}

// State текущее состояние жизненного цикла.
func (m *Machine) State() State {
	return State(m.fsm.Current())
}

// History последние переходы состояний, старые первыми.
func (m *Machine) History() []Transition {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Subscribe добавляет получателя уведомлений.
func (m *Machine) Subscribe(l Listener) {
	m.broadcaster.Subscribe(l)
}

// Post кладет событие транспорта в почтовый ящик.
func (m *Machine) Post(ev Event) error {
	return m.mailbox.push(ev)
}

func (m *Machine) post(msg message) error {
	return m.mailbox.push(msg)
}

// Run обрабатывает сообщения до отмены ctx.
func (m *Machine) Run(ctx context.Context) error {
	m.log.Info("машина HF запущена")
	for {
		m.ProcessPending()
		select {
		case <-ctx.Done():
			m.stop()
			m.log.Info("машина HF остановлена")
			return ctx.Err()
		case <-m.mailbox.signal:
		}
	}
}

// ProcessPending синхронно обрабатывает все сообщения, включая поставленные во время
// обработки, и возвращает их количество. Не вызывать параллельно с Run.
func (m *Machine) ProcessPending() int {
	n := 0
	for {
		msg, ok := m.mailbox.pop()
		if !ok {
			return n
		}
		m.dispatch(msg)
		n++
	}
}

func (m *Machine) stop() {
	m.mailbox.close()
	m.cancelRequery()
}

func (m *Machine) dispatch(msg message) {
	state := m.State()
	m.current = msg.messageName()
	defer func() {
		if r := recover(); r != nil {
			m.metrics.panicked()
			m.log.Error("PANIC при обработке сообщения",
				slog.String("message", msg.messageName()),
				slog.String("state", string(state)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
		m.current = ""
		m.publishSnapshot()
	}()

	m.metrics.message(msg.messageName(), state)
	if !m.handlers[state](m, msg) {
		m.log.Debug("сообщение проигнорировано",
			slog.String("message", msg.messageName()),
			slog.String("state", string(state)))
	}
}

// deferMessage откладывает сообщение до следующей смены состояния.
func (m *Machine) deferMessage(msg message) {
	m.metrics.deferral()
	m.log.Debug("сообщение отложено",
		slog.String("message", msg.messageName()),
		slog.String("state", m.fsm.Current()))
	m.deferred = append(m.deferred, msg)
}

// transitionTo переводит машину в dst, выполняет действия входа и возвращает
// отложенные сообщения в голову почтового ящика.
func (m *Machine) transitionTo(dst State) {
	src := m.State()
	if src == dst {
		return
	}
	if err := m.fsm.Event(context.TODO(), formEventName(src, dst)); err != nil {
		m.log.Error("недопустимый переход",
			slog.String("from", string(src)),
			slog.String("to", string(dst)),
			slog.String("error", err.Error()))
		return
	}
	m.log.Info("смена состояния",
		slog.String("from", string(src)),
		slog.String("to", string(dst)))

	switch dst {
	case StateDisconnected:
		m.enterDisconnected(src)
	case StateConnecting:
		m.enterConnecting(src)
	case StateConnected:
		m.enterConnected(src)
	case StateAudioOn:
		m.enterAudioOn(src)
	}

	if len(m.deferred) > 0 {
		deferred := m.deferred
		m.deferred = nil
		m.mailbox.pushFront(deferred)
	}
}

func (m *Machine) bindDevice(dev Device) {
	m.device = dev
	m.calls.bind(dev)
	m.session = m.newSession()
	m.log = m.baseLog.With(
		slog.String("component", "hfp"),
		slog.String("device", dev.Address),
		slog.String("session", m.session))
}

func (m *Machine) onCallChanged(c Call) {
	m.metrics.callChanged(c, m.calls.size())
	m.log.Debug("изменение вызова",
		slog.Int("id", c.ID),
		slog.String("state", c.State.String()),
		slog.Bool("multiparty", c.MultiParty))
	m.broadcaster.Publish(CallChanged{Call: c, Session: m.session})
}

func (m *Machine) publish(n Notification) {
	m.broadcaster.Publish(n)
}

func (m *Machine) publishAgEvent(kind AgEventKind) {
	m.publish(AgEventChanged{Device: m.device, Kind: kind, Events: m.agEvents})
}

func connectionStateOf(s State) ConnectionState {
	switch s {
	case StateConnecting:
		return ConnectionConnecting
	case StateConnected, StateAudioOn:
		return ConnectionConnected
	}
	return ConnectionDisconnected
}

// announce рассылает смену состояния подключения, если оно отличается от последнего разосланного.
func (m *Machine) announce(state ConnectionState) {
	previous := m.connState
	if state == previous {
		return
	}
	m.connState = state
	m.publish(ConnectionStateChanged{Device: m.device, State: state, Previous: previous, Session: m.session})
}

func (m *Machine) setAudioState(state AudioState) {
	previous := m.audioState
	if previous == state {
		return
	}
	m.audioState = state
	m.publish(AudioStateChanged{Device: m.device, State: state, Previous: previous, Wideband: m.wideband})
}

// scheduleRequery планирует повторный +CLCC. Одновременно ждет не больше одного опроса.
func (m *Machine) scheduleRequery() {
	if m.requery != nil {
		return
	}
	gen := m.generation
	m.requery = m.scheduler.AfterFunc(m.cfg.QueryCallsRetryDelay, func() {
		_ = m.mailbox.push(queryCurrentCallsMsg{generation: gen})
	})
}

func (m *Machine) cancelRequery() {
	if m.requery != nil {
		m.requery.Stop()
		m.requery = nil
	}
}
