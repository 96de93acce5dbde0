package handsfree

// Snapshot согласованный срез состояния машины, опубликованный после обработки
// очередного сообщения. Значение неизменяемо.
type Snapshot struct {
	State               State
	ConnectionState     ConnectionState
	AudioState          AudioState
	Wideband            bool
	Device              Device
	Session             string
	Calls               []Call
	Indicators          Indicators
	Pending             Action
	Queued              []Action
	PeerFeatures        PeerFeatures
	ChldFeatures        ChldFeatures
	AgEvents            AgEvents
	QueryCallsSupported bool
}

// Call возвращает вызов по id.
func (s *Snapshot) Call(id int) (Call, bool) {
	for _, c := range s.Calls {
		if c.ID == id {
			return c, true
		}
	}
	return Call{}, false
}

// Features возможности AG в разобранном виде.
func (s *Snapshot) Features() AgFeatures {
	return newAgFeatures(s.PeerFeatures, s.ChldFeatures)
}

func (m *Machine) publishSnapshot() {
	state := m.State()
	m.snapshot.Store(&Snapshot{
		State:               state,
		ConnectionState:     connectionStateOf(state),
		AudioState:          m.audioState,
		Wideband:            m.wideband,
		Device:              m.device,
		Session:             m.session,
		Calls:               m.calls.list(),
		Indicators:          m.indicators,
		Pending:             m.pending,
		Queued:              m.queued.snapshot(),
		PeerFeatures:        m.peerFeatures,
		ChldFeatures:        m.chldFeatures,
		AgEvents:            m.agEvents,
		QueryCallsSupported: m.queryCallsSupported,
	})
}

// Snapshot возвращает последний опубликованный срез состояния.
func (m *Machine) Snapshot() *Snapshot {
	return m.snapshot.Load()
}
