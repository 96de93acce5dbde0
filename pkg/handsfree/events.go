package handsfree

// message элемент почтового ящика машины: событие транспорта, команда вызывающего
// или внутреннее отложенное действие.
type message interface {
	messageName() string
}

// Event событие, доставляемое транспортом через Machine.Post.
type Event interface {
	message
	isEvent()
}

// ConnectionStateEvent изменение состояния RFCOMM/SLC.
// PeerFeatures и ChldFeatures заполняются только для ConnectionSLCConnected.
type ConnectionStateEvent struct {
	State        ConnectionState
	Device       Device
	PeerFeatures PeerFeatures
	ChldFeatures ChldFeatures
}

// AudioStateEvent изменение состояния SCO.
type AudioStateEvent struct {
	State  AudioState
	Device Device
}

// VoiceRecognitionEvent AG сообщил состояние распознавания голоса (+BVRA).
type VoiceRecognitionEvent struct {
	State int
}

// NetworkStateEvent индикатор service.
type NetworkStateEvent struct {
	State int
}

// RoamingEvent индикатор roam.
type RoamingEvent struct {
	Roaming int
}

// SignalStrengthEvent индикатор signal.
type SignalStrengthEvent struct {
	Level int
}

// BatteryLevelEvent индикатор battchg.
type BatteryLevelEvent struct {
	Level int
}

// OperatorNameEvent ответ +COPS.
type OperatorNameEvent struct {
	Name string
}

// CallIndicatorEvent индикатор call.
type CallIndicatorEvent struct {
	Value int
}

// CallSetupIndicatorEvent индикатор callsetup.
type CallSetupIndicatorEvent struct {
	Value int
}

// CallHeldIndicatorEvent индикатор callheld.
type CallHeldIndicatorEvent struct {
	Value int
}

// RespAndHoldEvent +BTRH.
type RespAndHoldEvent struct {
	Value int
}

// ClipEvent номер звонящего (+CLIP).
type ClipEvent struct {
	Number string
}

// CallWaitingEvent ожидающий вызов (+CCWA).
type CallWaitingEvent struct {
	Number string
}

// CurrentCallEvent одна строка ответа +CLCC.
type CurrentCallEvent struct {
	Index      int
	Outgoing   bool
	State      CallState
	MultiParty bool
	Number     string
}

// VolumeEvent AG изменил громкость (+VGS/+VGM).
type VolumeEvent struct {
	Type  VolumeType
	Level int
}

// CommandResultEvent финальный код ответа на команду из очереди.
type CommandResultEvent struct {
	Code     ResultCode
	CmeError int
}

// SubscriberInfoEvent ответ +CNUM.
type SubscriberInfoEvent struct {
	Number  string
	Service int
}

// InBandRingEvent +BSIR.
type InBandRingEvent struct {
	Enabled bool
}

// LastVoiceTagNumberEvent ответ +BINP.
type LastVoiceTagNumberEvent struct {
	Number string
}

// RingEvent незапрошенный RING.
type RingEvent struct{}

func (ConnectionStateEvent) isEvent()    {}
func (AudioStateEvent) isEvent()         {}
func (VoiceRecognitionEvent) isEvent()   {}
func (NetworkStateEvent) isEvent()       {}
func (RoamingEvent) isEvent()            {}
func (SignalStrengthEvent) isEvent()     {}
func (BatteryLevelEvent) isEvent()       {}
func (OperatorNameEvent) isEvent()       {}
func (CallIndicatorEvent) isEvent()      {}
func (CallSetupIndicatorEvent) isEvent() {}
func (CallHeldIndicatorEvent) isEvent()  {}
func (RespAndHoldEvent) isEvent()        {}
func (ClipEvent) isEvent()               {}
func (CallWaitingEvent) isEvent()        {}
func (CurrentCallEvent) isEvent()        {}
func (VolumeEvent) isEvent()             {}
func (CommandResultEvent) isEvent()      {}
func (SubscriberInfoEvent) isEvent()     {}
func (InBandRingEvent) isEvent()         {}
func (LastVoiceTagNumberEvent) isEvent() {}
func (RingEvent) isEvent()               {}

func (ConnectionStateEvent) messageName() string    { return "EVENT_CONNECTION_STATE" }
func (AudioStateEvent) messageName() string         { return "EVENT_AUDIO_STATE" }
func (VoiceRecognitionEvent) messageName() string   { return "EVENT_VR_STATE" }
func (NetworkStateEvent) messageName() string       { return "EVENT_NETWORK_STATE" }
func (RoamingEvent) messageName() string            { return "EVENT_ROAMING_STATE" }
func (SignalStrengthEvent) messageName() string     { return "EVENT_NETWORK_SIGNAL" }
func (BatteryLevelEvent) messageName() string       { return "EVENT_BATTERY_LEVEL" }
func (OperatorNameEvent) messageName() string       { return "EVENT_OPERATOR_NAME" }
func (CallIndicatorEvent) messageName() string      { return "EVENT_CALL" }
func (CallSetupIndicatorEvent) messageName() string { return "EVENT_CALLSETUP" }
func (CallHeldIndicatorEvent) messageName() string  { return "EVENT_CALLHELD" }
func (RespAndHoldEvent) messageName() string        { return "EVENT_RESP_AND_HOLD" }
func (ClipEvent) messageName() string               { return "EVENT_CLIP" }
func (CallWaitingEvent) messageName() string        { return "EVENT_CALL_WAITING" }
func (CurrentCallEvent) messageName() string        { return "EVENT_CURRENT_CALLS" }
func (VolumeEvent) messageName() string             { return "EVENT_VOLUME_CHANGED" }
func (CommandResultEvent) messageName() string      { return "EVENT_CMD_RESULT" }
func (SubscriberInfoEvent) messageName() string     { return "EVENT_SUBSCRIBER_INFO" }
func (InBandRingEvent) messageName() string         { return "EVENT_IN_BAND_RING" }
func (LastVoiceTagNumberEvent) messageName() string { return "EVENT_LAST_VOICE_TAG_NUMBER" }
func (RingEvent) messageName() string               { return "EVENT_RING_INDICATION" }

// Команды вызывающих, поставленные в почтовый ящик сервисом.

type connectMsg struct{ device Device }
type disconnectMsg struct{ device Device }
type connectAudioMsg struct{}
type disconnectAudioMsg struct{}
type acceptCallMsg struct{ flag AcceptFlag }
type rejectCallMsg struct{}
type holdCallMsg struct{}
type terminateCallMsg struct{ index int }
type enterPrivateModeMsg struct{ index int }
type explicitCallTransferMsg struct{}
type redialMsg struct{}
type dialMsg struct{ number string }
type dialMemoryMsg struct{ location int }
type sendDTMFMsg struct{ code byte }
type lastVoiceTagNumberMsg struct{}
type voiceRecognitionMsg struct{ start bool }
type setVolumeMsg struct {
	volume VolumeType
	level  int
}

// queryCurrentCallsMsg отложенный повторный опрос +CLCC. generation привязывает его к
// конкретному подключению: после возврата в Disconnected старые опросы игнорируются.
type queryCurrentCallsMsg struct{ generation uint64 }

func (connectMsg) messageName() string              { return "CONNECT" }
func (disconnectMsg) messageName() string           { return "DISCONNECT" }
func (connectAudioMsg) messageName() string         { return "CONNECT_AUDIO" }
func (disconnectAudioMsg) messageName() string      { return "DISCONNECT_AUDIO" }
func (acceptCallMsg) messageName() string           { return "ACCEPT_CALL" }
func (rejectCallMsg) messageName() string           { return "REJECT_CALL" }
func (holdCallMsg) messageName() string             { return "HOLD_CALL" }
func (terminateCallMsg) messageName() string        { return "TERMINATE_CALL" }
func (enterPrivateModeMsg) messageName() string     { return "ENTER_PRIVATE_MODE" }
func (explicitCallTransferMsg) messageName() string { return "EXPLICIT_CALL_TRANSFER" }
func (redialMsg) messageName() string               { return "REDIAL" }
func (dialMsg) messageName() string                 { return "DIAL_NUMBER" }
func (dialMemoryMsg) messageName() string           { return "DIAL_MEMORY" }
func (sendDTMFMsg) messageName() string             { return "SEND_DTMF" }
func (lastVoiceTagNumberMsg) messageName() string   { return "LAST_VOICE_TAG_NUMBER" }
func (voiceRecognitionMsg) messageName() string     { return "VOICE_RECOGNITION" }
func (setVolumeMsg) messageName() string            { return "SET_VOLUME" }
func (queryCurrentCallsMsg) messageName() string    { return "QUERY_CURRENT_CALLS" }
