package handsfree

// Service поверхность для вызывающих. Каждый метод проверяет опубликованный срез
// состояния и кладет команду в почтовый ящик машины; эффект наступает асинхронно и
// виден через уведомления и следующие срезы.
type Service struct {
	machine *Machine
}

// NewService создает сервис поверх машины.
func NewService(m *Machine) *Service {
	return &Service{machine: m}
}

// Machine возвращает машину, которой управляет сервис.
func (s *Service) Machine() *Machine {
	return s.machine
}

func (s *Service) snapshot() *Snapshot {
	return s.machine.Snapshot()
}

// connected проверяет, что машина подключена к dev (или к любому устройству, если dev пустой).
func (s *Service) connected(dev Device, operation string) (*Snapshot, error) {
	snap := s.snapshot()
	if snap.ConnectionState != ConnectionConnected {
		return nil, ErrNotConnected(snap.ConnectionState, operation)
	}
	if !dev.IsZero() && !dev.Equal(snap.Device) {
		return nil, ErrWrongDevice(dev)
	}
	return snap, nil
}

// Connect инициирует подключение к устройству.
func (s *Service) Connect(dev Device) error {
	if dev.IsZero() {
		return ErrInvalidArgument("device", dev)
	}
	snap := s.snapshot()
	if snap.ConnectionState == ConnectionConnected && dev.Equal(snap.Device) {
		return nil
	}
	return s.machine.post(connectMsg{device: dev})
}

// Disconnect разрывает подключение.
func (s *Service) Disconnect(dev Device) error {
	snap := s.snapshot()
	if snap.ConnectionState == ConnectionDisconnected {
		return ErrNotConnected(snap.ConnectionState, "disconnect")
	}
	if !dev.Equal(snap.Device) {
		return ErrWrongDevice(dev)
	}
	return s.machine.post(disconnectMsg{device: dev})
}

// ConnectionState состояние подключения устройства.
func (s *Service) ConnectionState(dev Device) ConnectionState {
	snap := s.snapshot()
	if !dev.Equal(snap.Device) {
		return ConnectionDisconnected
	}
	return snap.ConnectionState
}

// AudioState состояние SCO устройства.
func (s *Service) AudioState(dev Device) AudioState {
	snap := s.snapshot()
	if !dev.Equal(snap.Device) {
		return AudioDisconnected
	}
	return snap.AudioState
}

// ConnectAudio поднимает SCO.
func (s *Service) ConnectAudio(dev Device) error {
	if _, err := s.connected(dev, "connect_audio"); err != nil {
		return err
	}
	return s.machine.post(connectAudioMsg{})
}

// DisconnectAudio опускает SCO.
func (s *Service) DisconnectAudio(dev Device) error {
	if _, err := s.connected(dev, "disconnect_audio"); err != nil {
		return err
	}
	return s.machine.post(disconnectAudioMsg{})
}

// AcceptCall отвечает на входящий, ожидающий или удержанный вызов.
func (s *Service) AcceptCall(dev Device, flag AcceptFlag) error {
	snap, err := s.connected(dev, "accept_call")
	if err != nil {
		return err
	}
	if flag < AcceptNone || flag > AcceptTerminate {
		return ErrInvalidArgument("flag", flag)
	}
	if flag != AcceptNone && hasCall(snap, CallActive) {
		features := snap.Features()
		if flag == AcceptHold && !features.HoldAndAccept {
			return ErrFeatureUnsupported("CHLD=2")
		}
		if flag == AcceptTerminate && !features.ReleaseAndAccept {
			return ErrFeatureUnsupported("CHLD=1")
		}
	}
	return s.machine.post(acceptCallMsg{flag: flag})
}

// RejectCall отклоняет вызов.
func (s *Service) RejectCall(dev Device) error {
	if _, err := s.connected(dev, "reject_call"); err != nil {
		return err
	}
	return s.machine.post(rejectCallMsg{})
}

// HoldCall удерживает вызов.
func (s *Service) HoldCall(dev Device) error {
	if _, err := s.connected(dev, "hold_call"); err != nil {
		return err
	}
	return s.machine.post(holdCallMsg{})
}

// TerminateCall завершает вызов; id 0 означает текущий.
func (s *Service) TerminateCall(dev Device, id int) error {
	snap, err := s.connected(dev, "terminate_call")
	if err != nil {
		return err
	}
	if id < 0 {
		return ErrInvalidArgument("id", id)
	}
	if id > 0 {
		if _, ok := snap.Call(id); !ok {
			return ErrInvalidArgument("id", id)
		}
		if !snap.Features().ReleaseSpecific {
			if c, _ := snap.Call(id); c.State != CallHeld {
				return ErrFeatureUnsupported("CHLD=1x")
			}
		}
	}
	return s.machine.post(terminateCallMsg{index: id})
}

// EnterPrivateMode отделяет участника конференции.
func (s *Service) EnterPrivateMode(dev Device, id int) error {
	snap, err := s.connected(dev, "enter_private_mode")
	if err != nil {
		return err
	}
	if !snap.Features().PrivateMode {
		return ErrFeatureUnsupported("CHLD=2x")
	}
	if _, ok := snap.Call(id); !ok {
		return ErrInvalidArgument("id", id)
	}
	return s.machine.post(enterPrivateModeMsg{index: id})
}

// ExplicitCallTransfer соединяет два вызова и отключается.
func (s *Service) ExplicitCallTransfer(dev Device) error {
	snap, err := s.connected(dev, "explicit_call_transfer")
	if err != nil {
		return err
	}
	if !snap.Features().MergeAndDetach {
		return ErrFeatureUnsupported("CHLD=4")
	}
	return s.machine.post(explicitCallTransferMsg{})
}

// Redial повторяет последний набранный номер.
func (s *Service) Redial(dev Device) error {
	if _, err := s.connected(dev, "redial"); err != nil {
		return err
	}
	return s.machine.post(redialMsg{})
}

// Dial набирает номер.
func (s *Service) Dial(dev Device, number string) error {
	if _, err := s.connected(dev, "dial"); err != nil {
		return err
	}
	if number == "" {
		return ErrInvalidArgument("number", number)
	}
	return s.machine.post(dialMsg{number: number})
}

// DialMemory набирает номер из ячейки памяти AG.
func (s *Service) DialMemory(dev Device, location int) error {
	if _, err := s.connected(dev, "dial_memory"); err != nil {
		return err
	}
	if location < 0 {
		return ErrInvalidArgument("location", location)
	}
	return s.machine.post(dialMemoryMsg{location: location})
}

// SendDTMF отправляет тоновый сигнал.
func (s *Service) SendDTMF(dev Device, code byte) error {
	if _, err := s.connected(dev, "send_dtmf"); err != nil {
		return err
	}
	if !isDTMF(code) {
		return ErrInvalidArgument("dtmf", string(code))
	}
	return s.machine.post(sendDTMFMsg{code: code})
}

// LastVoiceTagNumber запрашивает номер для голосовой метки.
func (s *Service) LastVoiceTagNumber(dev Device) error {
	snap, err := s.connected(dev, "last_voice_tag_number")
	if err != nil {
		return err
	}
	if !snap.Features().AttachVoiceTag {
		return ErrFeatureUnsupported("BINP")
	}
	return s.machine.post(lastVoiceTagNumberMsg{})
}

// StartVoiceRecognition включает голосовое управление на AG.
func (s *Service) StartVoiceRecognition(dev Device) error {
	return s.voiceRecognition(dev, true)
}

// StopVoiceRecognition выключает голосовое управление на AG.
func (s *Service) StopVoiceRecognition(dev Device) error {
	return s.voiceRecognition(dev, false)
}

func (s *Service) voiceRecognition(dev Device, start bool) error {
	snap, err := s.connected(dev, "voice_recognition")
	if err != nil {
		return err
	}
	if !snap.Features().VoiceRecognition {
		return ErrFeatureUnsupported("BVRA")
	}
	return s.machine.post(voiceRecognitionMsg{start: start})
}

// SetVolume устанавливает громкость динамика или усиление микрофона (0..15).
func (s *Service) SetVolume(dev Device, volume VolumeType, level int) error {
	if _, err := s.connected(dev, "set_volume"); err != nil {
		return err
	}
	if level < 0 || level > 15 {
		return ErrInvalidArgument("level", level)
	}
	return s.machine.post(setVolumeMsg{volume: volume, level: level})
}

// CurrentCalls возвращает вызовы устройства.
func (s *Service) CurrentCalls(dev Device) ([]Call, error) {
	snap, err := s.connected(dev, "current_calls")
	if err != nil {
		return nil, err
	}
	return snap.Calls, nil
}

// CurrentAgEvents возвращает последние значения индикаторов AG.
func (s *Service) CurrentAgEvents(dev Device) (AgEvents, error) {
	snap, err := s.connected(dev, "current_ag_events")
	if err != nil {
		return AgEvents{}, err
	}
	return snap.AgEvents, nil
}

// CurrentAgFeatures возвращает возможности AG.
func (s *Service) CurrentAgFeatures(dev Device) (AgFeatures, error) {
	snap, err := s.connected(dev, "current_ag_features")
	if err != nil {
		return AgFeatures{}, err
	}
	return snap.Features(), nil
}

func hasCall(snap *Snapshot, state CallState) bool {
	for _, c := range snap.Calls {
		if c.State == state {
			return true
		}
	}
	return false
}

func isDTMF(code byte) bool {
	switch {
	case code >= '0' && code <= '9':
		return true
	case code >= 'A' && code <= 'D':
		return true
	case code == '*' || code == '#':
		return true
	}
	return false
}
