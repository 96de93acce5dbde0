package handsfree

import "log/slog"

// enqueue ставит отправленную команду в очередь ожидания результата.
func (m *Machine) enqueue(a Action) {
	m.metrics.command(a.Kind)
	m.queued.push(a)
	m.log.Debug("команда отправлена",
		slog.String("action", a.String()),
		slog.Int("queued", m.queued.len()))
}

// dispatchFailed сообщает об отказе транспорта принять команду.
func (m *Machine) dispatchFailed(kind ActionKind, err error) {
	m.log.Error("транспорт не принял команду",
		slog.String("action", kind.String()),
		slog.String("error", err.Error()))
	m.publish(ActionResult{Device: m.device, Action: kind, Code: ResultError})
}

func (m *Machine) sendCallAction(kind ActionKind, cmd CallCommand, index int, payload ActionPayload) bool {
	if err := m.transport.SendCallAction(cmd, index); err != nil {
		m.dispatchFailed(kind, err)
		return false
	}
	m.enqueue(Action{Kind: kind, Payload: payload})
	return true
}

// acceptCall выбирает команду ответа по таблице вызовов и флагу. Сначала ищется
// входящий или ожидающий вызов, затем удержанный.
func (m *Machine) acceptCall(flag AcceptFlag, retry bool) bool {
	c := m.calls.find(CallIncoming, CallWaiting)
	if c == nil {
		c = m.calls.find(CallHeldByResponseAndHold, CallHeld)
	}
	if c == nil {
		m.log.Debug("нет вызова для ответа")
		return false
	}

	var cmd CallCommand
	switch c.State {
	case CallIncoming:
		if flag != AcceptNone {
			m.log.Debug("флаг ответа на входящий вызов проигнорирован", slog.String("flag", flag.String()))
			return false
		}
		// единственный вызов: повтор идет через CHLD=1, а не вторым ATA
		if retry && m.calls.size() == 1 {
			cmd = CommandCHLD1
		} else {
			cmd = CommandATA
		}

	case CallWaiting:
		switch flag {
		case AcceptHold:
			cmd = CommandCHLD2
		case AcceptTerminate:
			cmd = CommandCHLD1
		default:
			if retry && m.calls.count(CallActive) == 0 {
				cmd = CommandATA
			} else {
				cmd = CommandCHLD2
			}
		}

	case CallHeld:
		switch {
		case flag == AcceptHold:
			cmd = CommandCHLD2
		case flag == AcceptTerminate:
			cmd = CommandCHLD1
		case m.calls.count(CallActive) > 0:
			cmd = CommandCHLD3
		default:
			cmd = CommandCHLD2
		}

	case CallHeldByResponseAndHold:
		cmd = CommandBTRH1
	}

	if retry {
		m.metrics.acceptRetry()
		m.log.Info("повторный ответ на вызов", slog.String("command", cmd.String()))
	}
	return m.sendCallAction(ActionAcceptCall, cmd, 0, CallActionPayload{Command: cmd, Retry: retry})
}

func (m *Machine) rejectCall() {
	c := m.calls.find(CallIncoming, CallWaiting)
	if c == nil {
		c = m.calls.find(CallHeldByResponseAndHold, CallHeld)
	}
	if c == nil {
		m.log.Debug("нет вызова для отклонения")
		return
	}
	var cmd CallCommand
	switch c.State {
	case CallIncoming:
		cmd = CommandCHUP
	case CallWaiting, CallHeld:
		cmd = CommandCHLD0
	case CallHeldByResponseAndHold:
		cmd = CommandBTRH2
	}
	m.sendCallAction(ActionRejectCall, cmd, 0, CallActionPayload{Command: cmd})
}

func (m *Machine) holdCall() {
	var cmd CallCommand
	switch {
	case m.calls.find(CallIncoming) != nil:
		cmd = CommandBTRH0
	case m.calls.find(CallActive) != nil:
		cmd = CommandCHLD2
	default:
		m.log.Debug("нет вызова для удержания")
		return
	}
	m.sendCallAction(ActionHoldCall, cmd, 0, CallActionPayload{Command: cmd})
}

// terminateCall завершает вызов: index 0 означает текущий, иначе конкретный по id.
func (m *Machine) terminateCall(index int) {
	if index == 0 {
		if m.calls.find(CallDialing, CallAlerting) == nil && m.calls.find(CallActive) == nil {
			m.log.Debug("нет вызова для завершения")
			return
		}
		m.sendCallAction(ActionTerminateCall, CommandCHUP, 0, CallActionPayload{Command: CommandCHUP})
		return
	}

	c := m.calls.get(index)
	if c == nil {
		m.log.Debug("вызов не найден", slog.Int("id", index))
		return
	}
	switch c.State {
	case CallActive, CallDialing, CallAlerting:
		m.sendCallAction(ActionTerminateSpecificCall, CommandCHLD1x, index,
			CallRefPayload{CallID: index, Command: CommandCHLD1x})
	case CallHeld:
		m.sendCallAction(ActionTerminateCall, CommandCHLD0, 0, CallActionPayload{Command: CommandCHLD0})
	default:
		m.log.Debug("вызов нельзя завершить в этом состоянии",
			slog.Int("id", index),
			slog.String("state", c.State.String()))
	}
}

func (m *Machine) enterPrivateMode(index int) {
	c := m.calls.get(index)
	if c == nil || c.State != CallActive || !c.MultiParty {
		m.log.Debug("частный режим недоступен", slog.Int("id", index))
		return
	}
	m.sendCallAction(ActionEnterPrivateMode, CommandCHLD2x, index,
		CallRefPayload{CallID: index, Command: CommandCHLD2x})
}

func (m *Machine) explicitCallTransfer() {
	if m.calls.size() < 2 {
		m.log.Debug("для передачи нужно два вызова")
		return
	}
	m.sendCallAction(ActionExplicitCallTransfer, CommandCHLD4, 0, CallActionPayload{Command: CommandCHLD4})
}

func (m *Machine) dial(kind ActionKind, number string) {
	if err := m.transport.Dial(number); err != nil {
		m.dispatchFailed(kind, err)
		return
	}
	if kind == ActionRedial {
		m.enqueue(Action{Kind: ActionRedial, Payload: NoPayload{}})
		return
	}
	m.enqueue(Action{Kind: ActionDialNumber, Payload: NumberPayload{Number: number}})
}

func (m *Machine) dialMemory(location int) {
	if err := m.transport.DialMemory(location); err != nil {
		m.dispatchFailed(ActionDialMemory, err)
		return
	}
	m.enqueue(Action{Kind: ActionDialMemory, Payload: MemoryPayload{Location: location}})
}

func (m *Machine) sendDTMF(code byte) {
	if err := m.transport.SendDTMF(code); err != nil {
		m.dispatchFailed(ActionSendDTMF, err)
		return
	}
	m.enqueue(Action{Kind: ActionSendDTMF, Payload: NoPayload{}})
}

func (m *Machine) requestLastVoiceTag() {
	if err := m.transport.RequestLastVoiceTagNumber(); err != nil {
		m.dispatchFailed(ActionLastVoiceTagNumber, err)
		return
	}
	m.enqueue(Action{Kind: ActionLastVoiceTagNumber, Payload: NoPayload{}})
}

func (m *Machine) voiceRecognition(start bool) {
	kind := ActionVoiceRecognitionStop
	send := m.transport.StopVoiceRecognition
	if start {
		kind = ActionVoiceRecognitionStart
		send = m.transport.StartVoiceRecognition
	}
	if err := send(); err != nil {
		m.dispatchFailed(kind, err)
		return
	}
	m.enqueue(Action{Kind: kind, Payload: NoPayload{}})
}

func (m *Machine) setVolume(volume VolumeType, level int) {
	kind := ActionSetSpeakerVolume
	if volume == VolumeMic {
		kind = ActionSetMicVolume
	}
	if err := m.transport.SetVolume(volume, level); err != nil {
		m.log.Error("не удалось установить громкость",
			slog.String("volume", volume.String()),
			slog.String("error", err.Error()))
		return
	}
	m.enqueue(Action{Kind: kind, Payload: NoPayload{}})
}

func (m *Machine) retrieveSubscriberInfo() {
	if err := m.transport.RetrieveSubscriberInfo(); err != nil {
		m.log.Error("не удалось запросить номер абонента", slog.String("error", err.Error()))
		return
	}
	m.enqueue(Action{Kind: ActionSubscriberInfo, Payload: NoPayload{}})
}

func (m *Machine) queryOperatorName() {
	if err := m.transport.QueryOperatorName(); err != nil {
		m.log.Error("не удалось запросить оператора", slog.String("error", err.Error()))
		return
	}
	m.enqueue(Action{Kind: ActionQueryOperatorName, Payload: NoPayload{}})
}

// handleCommandResult сопоставляет результат с головой очереди.
func (m *Machine) handleCommandResult(ev CommandResultEvent) {
	a, ok := m.queued.pop()
	if !ok || a.Kind == ActionNone {
		m.log.Debug("результат без отправленной команды", slog.String("code", ev.Code.String()))
		m.clearPendingAction()
		return
	}
	m.metrics.result(a.Kind, ev.Code)
	m.log.Debug("результат команды",
		slog.String("action", a.String()),
		slog.String("code", ev.Code.String()),
		slog.Int("cme", ev.CmeError))

	success := ev.Code == ResultOK
	switch a.Kind {
	case ActionVoiceRecognitionStart, ActionVoiceRecognitionStop:
		if success {
			if a.Kind == ActionVoiceRecognitionStart {
				m.agEvents.VoiceRecognition = VoiceRecognitionStarted
			} else {
				m.agEvents.VoiceRecognition = VoiceRecognitionStopped
			}
		}
		m.publishAgEvent(AgEventVoiceRecognition)

	case ActionQueryCurrentCalls:
		m.queryCallsDone(ev.Code)

	case ActionAcceptCall:
		if success {
			m.setPendingAction(a)
			return
		}
		p, _ := a.Payload.(CallActionPayload)
		if !p.Retry && m.calls.count(CallActive) == 0 && m.acceptCall(AcceptNone, true) {
			return
		}
		m.publishResult(a, ev)

	case ActionRejectCall, ActionHoldCall, ActionTerminateCall, ActionEnterPrivateMode,
		ActionDialNumber, ActionDialMemory, ActionRedial:
		if success {
			m.setPendingAction(a)
			return
		}
		m.publishResult(a, ev)

	case ActionTerminateSpecificCall:
		if success {
			if p, ok := a.Payload.(CallRefPayload); ok {
				m.calls.terminate(p.CallID)
			}
			return
		}
		m.publishResult(a, ev)

	case ActionLastVoiceTagNumber:
		if !success {
			m.publishResult(a, ev)
		}

	case ActionSetMicVolume, ActionSetSpeakerVolume, ActionSubscriberInfo, ActionQueryOperatorName:
		if !success {
			m.log.Debug("служебная команда не выполнена",
				slog.String("action", a.Kind.String()),
				slog.String("code", ev.Code.String()))
		}

	default:
		m.publishResult(a, ev)
	}
}

func (m *Machine) publishResult(a Action, ev CommandResultEvent) {
	m.publish(ActionResult{Device: m.device, Action: a.Kind, Code: ev.Code, CmeError: ev.CmeError})
}
