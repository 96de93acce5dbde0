package handsfree

import "sync"

// Notification уведомление, которое машина рассылает остальной системе при каждом
// существенном изменении.
type Notification interface {
	notificationName() string
}

// ConnectionStateChanged смена состояния профиля.
type ConnectionStateChanged struct {
	Device   Device
	State    ConnectionState
	Previous ConnectionState
	// Session идентификатор подключения, общий для всех уведомлений одной сессии
	Session string
}

// AudioStateChanged смена состояния SCO.
type AudioStateChanged struct {
	Device   Device
	State    AudioState
	Previous AudioState
	Wideband bool
}

// CallChanged изменение вызова. Для завершенного вызова State == CallTerminated,
// после этого уведомления вызова в таблице больше нет.
type CallChanged struct {
	Call    Call
	Session string
}

// AgEventKind какое из полей AgEvents изменилось.
type AgEventKind int

const (
	AgEventNetworkStatus AgEventKind = iota
	AgEventRoaming
	AgEventSignal
	AgEventBattery
	AgEventOperator
	AgEventVoiceRecognition
	AgEventInBandRing
	AgEventSubscriber
)

func (k AgEventKind) String() string {
	switch k {
	case AgEventNetworkStatus:
		return "network_status"
	case AgEventRoaming:
		return "roaming"
	case AgEventSignal:
		return "signal"
	case AgEventBattery:
		return "battery"
	case AgEventOperator:
		return "operator"
	case AgEventVoiceRecognition:
		return "voice_recognition"
	case AgEventInBandRing:
		return "in_band_ring"
	case AgEventSubscriber:
		return "subscriber"
	}
	return "unknown"
}

// AgEvents последние значения индикаторов и событий AG.
type AgEvents struct {
	NetworkStatus    int
	Roaming          int
	Signal           int
	Battery          int
	Operator         string
	VoiceRecognition int
	InBandRing       bool
	Subscriber       string
}

// AgEventChanged изменение одного из значений AgEvents.
type AgEventChanged struct {
	Device Device
	Kind   AgEventKind
	Events AgEvents
}

// AgFeatures возможности AG, разобранные из масок +BRSF и +CHLD.
type AgFeatures struct {
	ThreeWayCalling      bool
	VoiceRecognition     bool
	AttachVoiceTag       bool
	RejectCall           bool
	EnhancedCallStatus   bool
	EnhancedCallControl  bool
	InBandRing           bool
	ExtendedErrors       bool
	CodecNegotiation     bool
	ReleaseHeldOrWaiting bool
	ReleaseAndAccept     bool
	ReleaseSpecific      bool
	HoldAndAccept        bool
	PrivateMode          bool
	Merge                bool
	MergeAndDetach       bool
}

func newAgFeatures(peer PeerFeatures, chld ChldFeatures) AgFeatures {
	return AgFeatures{
		ThreeWayCalling:      peer.Has(PeerFeature3Way),
		VoiceRecognition:     peer.Has(PeerFeatureVoiceRecog),
		AttachVoiceTag:       peer.Has(PeerFeatureVoiceTag),
		RejectCall:           peer.Has(PeerFeatureReject),
		EnhancedCallStatus:   peer.Has(PeerFeatureECS),
		EnhancedCallControl:  peer.Has(PeerFeatureECC),
		InBandRing:           peer.Has(PeerFeatureInBandRing),
		ExtendedErrors:       peer.Has(PeerFeatureExtErrors),
		CodecNegotiation:     peer.Has(PeerFeatureCodecNegot),
		ReleaseHeldOrWaiting: chld.Has(ChldRelease),
		ReleaseAndAccept:     chld.Has(ChldReleaseAccept),
		ReleaseSpecific:      chld.Has(ChldReleaseSpecific),
		HoldAndAccept:        chld.Has(ChldHoldAccept),
		PrivateMode:          chld.Has(ChldPrivateMode),
		Merge:                chld.Has(ChldMerge),
		MergeAndDetach:       chld.Has(ChldMergeDetach),
	}
}

// ActionResult AG отклонил команду (или транспорт не смог ее отправить).
type ActionResult struct {
	Device   Device
	Action   ActionKind
	Code     ResultCode
	CmeError int
}

// SubscriberInfo номер абонента AG (+CNUM).
type SubscriberInfo struct {
	Device Device
	Number string
}

// LastVoiceTag номер для голосовой метки (+BINP).
type LastVoiceTag struct {
	Device Device
	Number string
}

// RingIndication AG прислал RING.
type RingIndication struct {
	Device Device
}

func (ConnectionStateChanged) notificationName() string { return "connection_state_changed" }
func (AudioStateChanged) notificationName() string      { return "audio_state_changed" }
func (CallChanged) notificationName() string            { return "call_changed" }
func (AgEventChanged) notificationName() string         { return "ag_event_changed" }
func (ActionResult) notificationName() string           { return "result_code" }
func (SubscriberInfo) notificationName() string         { return "subscriber_info" }
func (LastVoiceTag) notificationName() string           { return "last_voice_tag" }
func (RingIndication) notificationName() string         { return "ring_indication" }

// NotificationName возвращает стабильное имя уведомления для логов и метрик.
func NotificationName(n Notification) string {
	return n.notificationName()
}

// Listener получатель уведомлений. Вызывается из горутины машины и не должен блокироваться.
type Listener interface {
	OnNotification(n Notification)
}

// ListenerFunc адаптер функции к Listener.
type ListenerFunc func(n Notification)

func (f ListenerFunc) OnNotification(n Notification) {
	f(n)
}

// Broadcaster рассылает уведомления всем подписчикам в порядке подписки.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []Listener
}

// Subscribe добавляет подписчика.
func (b *Broadcaster) Subscribe(l Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Publish синхронно доставляет уведомление.
func (b *Broadcaster) Publish(n Notification) {
	b.mu.RLock()
	listeners := b.listeners
	b.mu.RUnlock()
	for _, l := range listeners {
		l.OnNotification(n)
	}
}
