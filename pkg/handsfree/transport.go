package handsfree

// Transport командная поверхность адаптера, который говорит с AG по AT.
//
// Каждый метод только отправляет примитив: nil означает, что команда принята к отправке,
// а не что она выполнена. Итог команды приходит позже как CommandResultEvent, строго в
// порядке отправки. Connect/Disconnect/ConnectAudio/DisconnectAudio отчитываются
// событиями состояния, а не CommandResultEvent.
type Transport interface {
	Connect(dev Device) error
	Disconnect(dev Device) error
	ConnectAudio(dev Device) error
	DisconnectAudio(dev Device) error

	StartVoiceRecognition() error
	StopVoiceRecognition() error
	SetVolume(volume VolumeType, level int) error

	// Dial набирает номер; пустой номер означает повторный набор последнего.
	Dial(number string) error
	DialMemory(location int) error
	// SendCallAction отправляет CHLD/ATA/CHUP/BTRH; index используется для CHLD=1x и CHLD=2x.
	SendCallAction(cmd CallCommand, index int) error

	QueryCurrentCalls() error
	QueryOperatorName() error
	RetrieveSubscriberInfo() error
	SendDTMF(code byte) error
	RequestLastVoiceTagNumber() error
}

// AudioParams параметры маршрутизации аудио для поднятого SCO.
type AudioParams struct {
	SampleRate int
	Enabled    bool
	Wideband   bool
}

// AudioRouter возможность маршрутизации звука, которую машина вызывает при смене состояния SCO
// и громкости.
type AudioRouter interface {
	SetAudioParams(p AudioParams)
	SetSpeakerVolume(level int)
	SetMicMute(mute bool)
}

// NopAudioRouter ничего не делает.
type NopAudioRouter struct{}

func (NopAudioRouter) SetAudioParams(AudioParams) {}
func (NopAudioRouter) SetSpeakerVolume(int)       {}
func (NopAudioRouter) SetMicMute(bool)            {}

// ConnectPolicy решает, принимать ли входящее подключение от устройства.
type ConnectPolicy interface {
	OkToConnect(dev Device) bool
}

// ConnectPolicyFunc адаптер функции к ConnectPolicy.
type ConnectPolicyFunc func(dev Device) bool

func (f ConnectPolicyFunc) OkToConnect(dev Device) bool {
	return f(dev)
}

// allowAll политика по умолчанию.
var allowAll = ConnectPolicyFunc(func(Device) bool { return true })
