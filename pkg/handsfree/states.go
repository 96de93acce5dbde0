package handsfree

import "log/slog"

// Disconnected

func (m *Machine) handleDisconnected(msg message) bool {
	switch msg := msg.(type) {
	case connectMsg:
		m.bindDevice(msg.device)
		m.announce(ConnectionConnecting)
		if err := m.transport.Connect(msg.device); err != nil {
			m.log.Error("не удалось инициировать подключение", slog.String("error", err.Error()))
			m.announce(ConnectionDisconnected)
			m.unbindDevice()
			return true
		}
		m.transitionTo(StateConnecting)
		return true

	case ConnectionStateEvent:
		switch msg.State {
		case ConnectionConnected, ConnectionConnecting:
			if !m.policy.OkToConnect(msg.Device) {
				m.log.Warn("входящее подключение отклонено политикой",
					slog.String("peer", msg.Device.Address))
				if err := m.transport.Disconnect(msg.Device); err != nil {
					m.log.Error("не удалось разорвать входящее подключение",
						slog.String("peer", msg.Device.Address),
						slog.String("error", err.Error()))
				}
				if m.redirect != nil {
					m.redirect(msg.Device)
				}
				return true
			}
			m.log.Info("входящее подключение", slog.String("peer", msg.Device.Address))
			m.bindDevice(msg.Device)
			m.transitionTo(StateConnecting)
			return true
		}
	}
	return false
}

func (m *Machine) enterDisconnected(from State) {
	m.cancelRequery()
	m.generation++

	m.calls.clear()
	m.indicators = unknownIndicators()
	m.pending = noAction
	m.queued.clear()
	m.clccBuffer = nil
	m.queryCallsSupported = false
	m.clccProbe = false

	m.peerFeatures = 0
	m.chldFeatures = 0
	m.agEvents = AgEvents{}
	if m.audioState != AudioDisconnected {
		m.teardownAudio()
	}
	m.wideband = false

	m.announce(ConnectionDisconnected)
	m.unbindDevice()
}

func (m *Machine) unbindDevice() {
	m.device = Device{}
	m.calls.bind(Device{})
	m.session = ""
	m.log = m.baseLog.With(slog.String("component", "hfp"))
}

// Connecting

func (m *Machine) handleConnecting(msg message) bool {
	switch msg := msg.(type) {
	case connectMsg, connectAudioMsg, disconnectMsg:
		m.deferMessage(msg)
		return true

	case ConnectionStateEvent:
		if !msg.Device.Equal(m.device) {
			m.log.Warn("событие подключения от чужого устройства",
				slog.String("peer", msg.Device.Address),
				slog.String("event_state", msg.State.String()))
			return true
		}
		switch msg.State {
		case ConnectionSLCConnected:
			m.peerFeatures = msg.PeerFeatures
			m.chldFeatures = msg.ChldFeatures
			if !m.peerFeatures.Has(PeerFeature3Way) {
				m.chldFeatures = 0
			}
			m.transitionTo(StateConnected)
		case ConnectionDisconnected:
			m.transitionTo(StateDisconnected)
		default:
			m.log.Debug("ожидание SLC", slog.String("event_state", msg.State.String()))
		}
		return true

	case Event:
		m.deferMessage(msg)
		return true
	}
	return false
}

func (m *Machine) enterConnecting(from State) {
	m.announce(ConnectionConnecting)
}

// Connected

func (m *Machine) enterConnected(from State) {
	if from != StateConnecting {
		return
	}
	m.log.Info("SLC установлен",
		slog.Int("peer_features", int(m.peerFeatures)),
		slog.Int("chld_features", int(m.chldFeatures)))
	m.announce(ConnectionConnected)

	m.setVolume(VolumeSpeaker, m.cfg.SpeakerVolume)
	m.setVolume(VolumeMic, m.cfg.MicVolume)
	m.retrieveSubscriberInfo()
}

func (m *Machine) handleConnected(msg message) bool {
	switch msg := msg.(type) {
	case connectMsg:
		if msg.device.Equal(m.device) {
			m.log.Debug("устройство уже подключено")
			return true
		}
		m.log.Info("переключение на другое устройство", slog.String("peer", msg.device.Address))
		if err := m.transport.Disconnect(m.device); err != nil {
			m.log.Error("не удалось отключить текущее устройство, запрос отброшен",
				slog.String("peer", msg.device.Address),
				slog.String("error", err.Error()))
			m.publish(ConnectionStateChanged{Device: msg.device, State: ConnectionConnecting, Previous: ConnectionDisconnected})
			m.publish(ConnectionStateChanged{Device: msg.device, State: ConnectionDisconnected, Previous: ConnectionConnecting})
			return true
		}
		m.deferMessage(msg)
		return true

	case disconnectMsg:
		if !msg.device.Equal(m.device) {
			m.log.Warn("отключение чужого устройства", slog.String("peer", msg.device.Address))
			return true
		}
		if err := m.transport.Disconnect(m.device); err != nil {
			m.log.Error("не удалось отключиться", slog.String("error", err.Error()))
		}
		return true

	case connectAudioMsg:
		m.setAudioState(AudioConnecting)
		if err := m.transport.ConnectAudio(m.device); err != nil {
			m.log.Error("не удалось поднять SCO", slog.String("error", err.Error()))
			m.setAudioState(AudioDisconnected)
		}
		return true

	case disconnectAudioMsg:
		m.log.Debug("SCO не поднят")
		return true

	case acceptCallMsg:
		m.acceptCall(msg.flag, false)
	case rejectCallMsg:
		m.rejectCall()
	case holdCallMsg:
		m.holdCall()
	case terminateCallMsg:
		m.terminateCall(msg.index)
	case enterPrivateModeMsg:
		m.enterPrivateMode(msg.index)
	case explicitCallTransferMsg:
		m.explicitCallTransfer()
	case redialMsg:
		m.dial(ActionRedial, "")
	case dialMsg:
		m.dial(ActionDialNumber, msg.number)
	case dialMemoryMsg:
		m.dialMemory(msg.location)
	case sendDTMFMsg:
		m.sendDTMF(msg.code)
	case lastVoiceTagNumberMsg:
		m.requestLastVoiceTag()
	case voiceRecognitionMsg:
		m.voiceRecognition(msg.start)
	case setVolumeMsg:
		m.setVolume(msg.volume, msg.level)
	case queryCurrentCallsMsg:
		m.requeryCurrentCalls(msg.generation)

	case ConnectionStateEvent:
		if !msg.Device.Equal(m.device) {
			m.log.Warn("событие подключения от чужого устройства", slog.String("peer", msg.Device.Address))
			return true
		}
		if msg.State == ConnectionDisconnected {
			m.transitionTo(StateDisconnected)
			return true
		}
		m.log.Debug("событие подключения проигнорировано", slog.String("event_state", msg.State.String()))

	case AudioStateEvent:
		if !msg.Device.Equal(m.device) {
			m.log.Warn("событие SCO от чужого устройства", slog.String("peer", msg.Device.Address))
			return true
		}
		switch msg.State {
		case AudioConnecting:
			m.setAudioState(AudioConnecting)
		case AudioConnected, AudioConnectedMSBC:
			m.wideband = msg.State == AudioConnectedMSBC
			rate := m.cfg.NarrowbandSampleRate
			if m.wideband {
				rate = m.cfg.WidebandSampleRate
			}
			m.audio.SetAudioParams(AudioParams{SampleRate: rate, Enabled: true, Wideband: m.wideband})
			m.setAudioState(AudioConnected)
			m.transitionTo(StateAudioOn)
		case AudioDisconnected:
			m.setAudioState(AudioDisconnected)
		}

	case VoiceRecognitionEvent:
		if m.agEvents.VoiceRecognition != msg.State {
			m.agEvents.VoiceRecognition = msg.State
			m.publishAgEvent(AgEventVoiceRecognition)
		}
	case NetworkStateEvent:
		m.agEvents.NetworkStatus = msg.State
		m.publishAgEvent(AgEventNetworkStatus)
		if msg.State == NetworkAvailable {
			m.queryOperatorName()
		}
	case RoamingEvent:
		m.agEvents.Roaming = msg.Roaming
		m.publishAgEvent(AgEventRoaming)
	case SignalStrengthEvent:
		m.agEvents.Signal = msg.Level
		m.publishAgEvent(AgEventSignal)
	case BatteryLevelEvent:
		m.agEvents.Battery = msg.Level
		m.publishAgEvent(AgEventBattery)
	case OperatorNameEvent:
		m.agEvents.Operator = msg.Name
		m.publishAgEvent(AgEventOperator)
	case InBandRingEvent:
		m.agEvents.InBandRing = msg.Enabled
		m.publishAgEvent(AgEventInBandRing)
	case SubscriberInfoEvent:
		m.agEvents.Subscriber = msg.Number
		m.publishAgEvent(AgEventSubscriber)
		m.publish(SubscriberInfo{Device: m.device, Number: msg.Number})
	case LastVoiceTagNumberEvent:
		m.publish(LastVoiceTag{Device: m.device, Number: msg.Number})
	case RingEvent:
		m.publish(RingIndication{Device: m.device})

	case VolumeEvent:
		switch msg.Type {
		case VolumeSpeaker:
			m.audio.SetSpeakerVolume(msg.Level)
		case VolumeMic:
			m.audio.SetMicMute(msg.Level == 0)
		}

	case CallIndicatorEvent:
		m.updateCallIndicator(msg.Value)
	case CallSetupIndicatorEvent:
		m.updateCallSetupIndicator(msg.Value)
	case CallHeldIndicatorEvent:
		m.updateCallHeldIndicator(msg.Value)
	case RespAndHoldEvent:
		m.updateRespAndHold(msg.Value)
	case ClipEvent:
		m.updateClip(msg.Number)
	case CallWaitingEvent:
		m.updateCallWaiting(msg.Number)
	case CurrentCallEvent:
		m.queryCallsUpdate(msg)
	case CommandResultEvent:
		m.handleCommandResult(msg)

	default:
		return false
	}
	return true
}

// AudioOn

func (m *Machine) enterAudioOn(from State) {
	m.log.Info("SCO поднят", slog.Bool("wideband", m.wideband))
}

func (m *Machine) handleAudioOn(msg message) bool {
	switch msg := msg.(type) {
	case disconnectMsg:
		if !msg.device.Equal(m.device) {
			break
		}
		// сначала SCO, потом RFCOMM
		m.deferMessage(msg)
		if err := m.transport.DisconnectAudio(m.device); err != nil {
			m.log.Error("не удалось опустить SCO", slog.String("error", err.Error()))
		}
		return true

	case connectAudioMsg:
		m.log.Debug("SCO уже поднят")
		return true

	case disconnectAudioMsg:
		if err := m.transport.DisconnectAudio(m.device); err != nil {
			m.log.Error("не удалось опустить SCO", slog.String("error", err.Error()))
		}
		return true

	case ConnectionStateEvent:
		if msg.Device.Equal(m.device) && msg.State == ConnectionDisconnected {
			m.deferMessage(msg)
			m.teardownAudio()
			m.transitionTo(StateConnected)
			return true
		}

	case AudioStateEvent:
		if !msg.Device.Equal(m.device) {
			break
		}
		if msg.State == AudioDisconnected {
			m.teardownAudio()
			m.transitionTo(StateConnected)
		}
		return true
	}
	return m.handleConnected(msg)
}

func (m *Machine) teardownAudio() {
	m.audio.SetAudioParams(AudioParams{Enabled: false})
	m.setAudioState(AudioDisconnected)
}
