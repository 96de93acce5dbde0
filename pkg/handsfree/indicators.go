package handsfree

import "log/slog"

// Вывод состояния вызовов из индикаторов call, callsetup и callheld.
//
// Пока не пришел полный набор индикаторов, значения только копятся. На первом полном
// наборе машина пробует +CLCC: если AG его поддерживает, дальше таблица строится по
// спискам вызовов, иначе по эвристикам ниже, с учетом ожидающего действия.

// waitForIndicators копит индикаторы до первого полного набора. Возвращает true, если
// событие поглощено (набор был неполным или только что стал полным).
func (m *Machine) waitForIndicators(call, setup, held int) bool {
	if m.indicators.Known() {
		return false
	}
	if call != IndicatorUnknown {
		m.indicators.Call = call
	}
	if setup != IndicatorUnknown {
		m.indicators.CallSetup = setup
	}
	if held != IndicatorUnknown {
		m.indicators.CallHeld = held
	}
	if !m.indicators.Known() {
		return true
	}

	m.log.Debug("получен полный набор индикаторов",
		slog.Int("call", m.indicators.Call),
		slog.Int("callsetup", m.indicators.CallSetup),
		slog.Int("callheld", m.indicators.CallHeld))

	if m.peerFeatures.Has(PeerFeatureECS) && m.queryCallsStart() {
		m.queryCallsSupported = true
		m.clccProbe = true
		return true
	}
	m.queryCallsSupported = false
	m.synthesizeFromIndicators()
	return true
}

// synthesizeFromIndicators создает начальную таблицу по индикаторам, не больше одного
// вызова на каждое значение.
func (m *Machine) synthesizeFromIndicators() {
	addOnce := func(state CallState) {
		if m.calls.find(state) == nil {
			m.calls.add(state, "")
		}
	}
	switch m.indicators.CallSetup {
	case CallSetupIncoming:
		if m.calls.find(CallWaiting) == nil {
			addOnce(CallIncoming)
		}
	case CallSetupOutgoing:
		addOnce(CallDialing)
	case CallSetupAlerting:
		addOnce(CallAlerting)
	}
	// callheld=2 означает, что активного вызова нет: call=1 описывает удержанный
	if m.indicators.Call == CallIndicatorInProgress && m.indicators.CallHeld != CallHeldHold {
		addOnce(CallActive)
	}
	switch m.indicators.CallHeld {
	case CallHeldHoldAndActive, CallHeldHold:
		addOnce(CallHeld)
	}
}

func (m *Machine) clearPendingAction() {
	m.pending = noAction
}

// setPendingAction запоминает подтвержденное действие до наблюдения его эффекта.
func (m *Machine) setPendingAction(a Action) {
	if m.pending.Kind != ActionNone {
		m.metrics.overwrite()
		m.log.Warn("ожидающее действие перезаписано",
			slog.String("previous", m.pending.String()),
			slog.String("next", a.String()))
	}
	m.pending = a
}

func (m *Machine) pendingIs(kinds ...ActionKind) bool {
	for _, k := range kinds {
		if m.pending.Kind == k {
			return true
		}
	}
	return false
}

func (m *Machine) ignoreIndicator(name string, value int) {
	m.log.Warn("неожиданное изменение индикатора",
		slog.String("indicator", name),
		slog.Int("value", value),
		slog.String("pending", m.pending.String()))
}

func (m *Machine) updateCallIndicator(call int) {
	if m.waitForIndicators(call, IndicatorUnknown, IndicatorUnknown) {
		return
	}
	previous := m.indicators.Call
	m.indicators.Call = call
	if m.pollOnIndicator() {
		return
	}

	switch call {
	case CallIndicatorNone:
		m.calls.remove(CallActive, CallHeld, CallHeldByResponseAndHold)
		if m.pendingIs(ActionTerminateCall) {
			m.clearPendingAction()
		}
	case CallIndicatorInProgress:
		if previous == CallIndicatorInProgress {
			// WP7.8 повторяет call=1 до callsetup=0, когда ожидающий вызов отклонен
			if m.indicators.CallSetup != CallSetupNone && !m.pendingIs(ActionAcceptCall) {
				m.calls.remove(CallWaiting)
			}
			return
		}
		if c := m.calls.find(CallDialing, CallAlerting, CallIncoming); c != nil {
			m.calls.setState(c, CallActive)
		}
	default:
		m.ignoreIndicator("call", call)
	}
}

func (m *Machine) updateCallSetupIndicator(setup int) {
	if m.waitForIndicators(IndicatorUnknown, setup, IndicatorUnknown) {
		return
	}
	m.indicators.CallSetup = setup
	if m.pollOnIndicator() {
		return
	}

	switch setup {
	case CallSetupNone:
		m.callSetupNone()

	case CallSetupAlerting:
		if c := m.calls.find(CallDialing); c != nil {
			m.calls.setState(c, CallAlerting)
		} else if m.calls.find(CallAlerting) == nil {
			m.calls.add(CallAlerting, m.pendingNumber())
		}
		if m.pendingIs(ActionDialNumber, ActionDialMemory, ActionRedial) {
			m.clearPendingAction()
		}

	case CallSetupOutgoing:
		if c := m.calls.find(CallDialing); c != nil {
			if c.Number == "" {
				m.calls.setNumber(c, m.pendingNumber())
			}
		} else {
			m.calls.add(CallDialing, m.pendingNumber())
		}

	case CallSetupIncoming:
		if m.calls.find(CallWaiting, CallIncoming) == nil {
			m.calls.add(CallIncoming, "")
		}

	default:
		m.ignoreIndicator("callsetup", setup)
	}
}

func (m *Machine) pendingNumber() string {
	if p, ok := m.pending.Payload.(NumberPayload); ok && m.pending.Kind == ActionDialNumber {
		return p.Number
	}
	return ""
}

// callSetupNone обработка callsetup=0: установка вызова завершилась тем или иным образом.
func (m *Machine) callSetupNone() {
	cmd, _ := m.pending.command()
	switch m.pending.Kind {
	case ActionAcceptCall:
		switch cmd {
		case CommandATA:
			if c := m.calls.find(CallIncoming, CallWaiting); c != nil {
				m.calls.setState(c, CallActive)
			}
			m.clearPendingAction()
		case CommandCHLD1:
			// активный освобождается, только если есть кому его сменить; повтор ответа
			// на единственный входящий ведет себя как ATA
			if waiting := m.calls.find(CallWaiting); waiting != nil {
				m.calls.remove(CallActive)
				m.calls.setState(waiting, CallActive)
			} else if c := m.calls.find(CallIncoming); c != nil {
				m.calls.setState(c, CallActive)
			}
			m.clearPendingAction()
		case CommandCHLD2:
			// подтверждение придет индикатором callheld, если было что удерживать
			if m.calls.count(CallActive) == 0 {
				m.calls.changeState(CallWaiting, CallActive)
				m.clearPendingAction()
			}
		case CommandCHLD3:
			m.log.Debug("объединение ждет callheld")
		default:
			m.ignoreIndicator("callsetup", CallSetupNone)
		}

	case ActionRejectCall:
		switch cmd {
		case CommandCHUP:
			m.calls.remove(CallIncoming)
			m.clearPendingAction()
		case CommandCHLD0:
			m.calls.remove(CallWaiting)
			m.clearPendingAction()
		default:
			m.ignoreIndicator("callsetup", CallSetupNone)
		}

	case ActionHoldCall:
		if cmd == CommandBTRH0 {
			m.calls.changeState(CallIncoming, CallHeldByResponseAndHold)
			m.clearPendingAction()
			return
		}
		m.ignoreIndicator("callsetup", CallSetupNone)

	case ActionDialNumber, ActionDialMemory, ActionRedial, ActionNone, ActionTerminateCall:
		m.calls.remove(CallIncoming, CallDialing, CallWaiting, CallAlerting)
		m.clearPendingAction()

	default:
		m.ignoreIndicator("callsetup", CallSetupNone)
	}
}

func (m *Machine) updateCallHeldIndicator(held int) {
	if m.waitForIndicators(IndicatorUnknown, IndicatorUnknown, held) {
		return
	}
	previous := m.indicators
	m.indicators.CallHeld = held
	if m.pollOnIndicator() {
		return
	}

	cmd, _ := m.pending.command()
	switch held {
	case CallHeldNone:
		switch m.pending.Kind {
		case ActionRejectCall, ActionTerminateCall:
			m.calls.remove(CallHeld)
			m.clearPendingAction()
		case ActionAcceptCall:
			switch cmd {
			case CommandCHLD1:
				m.calls.remove(CallActive)
				m.calls.changeState(CallHeld, CallActive)
				m.clearPendingAction()
			case CommandCHLD2:
				// снятие удержания без активного вызова
				if m.calls.count(CallActive) > 0 {
					m.ignoreIndicator("callheld", held)
					return
				}
				m.calls.changeState(CallHeld, CallActive)
				m.clearPendingAction()
			case CommandCHLD3:
				m.calls.changeState(CallHeld, CallActive)
				m.clearPendingAction()
			default:
				m.ignoreIndicator("callheld", held)
			}
		case ActionNone:
			if previous.Call == CallIndicatorInProgress && previous.CallHeld == CallHeldHold {
				m.calls.changeState(CallHeld, CallActive)
			} else {
				m.calls.remove(CallHeld)
			}
		default:
			m.ignoreIndicator("callheld", held)
		}

	case CallHeldHoldAndActive:
		switch {
		case m.pending.is(ActionAcceptCall, CommandCHLD2), m.pending.is(ActionHoldCall, CommandCHLD2):
			m.holdAndAccept()
			m.clearPendingAction()
		case m.pending.Kind == ActionNone:
			switch {
			case m.calls.find(CallWaiting) != nil:
				m.holdAndAccept()
			case previous.CallHeld == CallHeldHoldAndActive:
				m.swapCalls()
			case m.calls.count(CallActive) == 0 && m.calls.find(CallHeld) != nil:
				// AG сообщает об активном вызове, которого в таблице нет
				m.calls.add(CallActive, "")
			default:
				m.ignoreIndicator("callheld", held)
			}
		default:
			m.ignoreIndicator("callheld", held)
		}

	case CallHeldHold:
		switch m.pending.Kind {
		case ActionDialNumber, ActionDialMemory, ActionRedial:
			m.calls.changeState(CallActive, CallHeld)
		case ActionHoldCall:
			m.calls.changeState(CallActive, CallHeld)
			m.clearPendingAction()
		case ActionRejectCall:
			switch cmd {
			case CommandCHLD1:
				m.calls.remove(CallActive)
				m.calls.changeState(CallHeld, CallActive)
			case CommandCHLD3:
				m.calls.changeState(CallHeld, CallActive)
			default:
				m.ignoreIndicator("callheld", held)
			}
		case ActionTerminateCall, ActionNone:
			if m.calls.count(CallHeld) > 0 {
				m.calls.remove(CallActive)
			} else {
				m.calls.changeState(CallActive, CallHeld)
			}
			if m.pending.Kind == ActionTerminateCall {
				m.clearPendingAction()
			}
		default:
			m.ignoreIndicator("callheld", held)
		}

	default:
		m.ignoreIndicator("callheld", held)
	}
}

// holdAndAccept удерживает активный вызов и принимает ожидающий; без ожидающего меняет
// местами активный и удержанный.
func (m *Machine) holdAndAccept() {
	if waiting := m.calls.find(CallWaiting); waiting != nil {
		m.calls.changeState(CallActive, CallHeld)
		m.calls.setState(waiting, CallActive)
		return
	}
	m.swapCalls()
}

func (m *Machine) swapCalls() {
	active := make([]*Call, 0, 2)
	held := make([]*Call, 0, 1)
	for _, c := range m.calls.sorted() {
		switch c.State {
		case CallActive:
			active = append(active, c)
		case CallHeld:
			held = append(held, c)
		}
	}
	for _, c := range active {
		m.calls.setState(c, CallHeld)
	}
	for _, c := range held {
		m.calls.setState(c, CallActive)
	}
}

func (m *Machine) updateRespAndHold(value int) {
	switch value {
	case RespAndHoldHeld:
		if c := m.calls.find(CallIncoming); c != nil {
			m.calls.setState(c, CallHeldByResponseAndHold)
		} else if m.calls.find(CallHeldByResponseAndHold) == nil {
			m.calls.add(CallHeldByResponseAndHold, "")
		}
		if m.pending.is(ActionHoldCall, CommandBTRH0) {
			m.clearPendingAction()
		}
	case RespAndHoldAccept:
		if c := m.calls.find(CallHeldByResponseAndHold); c != nil {
			m.calls.setState(c, CallActive)
		}
		if m.pending.is(ActionAcceptCall, CommandBTRH1) {
			m.clearPendingAction()
		}
	case RespAndHoldReject:
		m.calls.remove(CallHeldByResponseAndHold)
		if m.pending.is(ActionRejectCall, CommandBTRH2) {
			m.clearPendingAction()
		}
	default:
		m.ignoreIndicator("btrh", value)
	}
}

func (m *Machine) updateClip(number string) {
	if c := m.calls.find(CallIncoming); c != nil {
		m.calls.setNumber(c, number)
		return
	}
	// MeeGo сначала сообщает ожидающий вызов, а затем CLIP, когда он становится входящим
	if c := m.calls.find(CallWaiting); c != nil {
		m.calls.setState(c, CallIncoming)
		if number != "" {
			m.calls.setNumber(c, number)
		}
		return
	}
	if m.queryCallsSupported {
		m.log.Debug("CLIP без входящего вызова проигнорирован")
		return
	}
	m.calls.add(CallIncoming, number)
}

func (m *Machine) updateCallWaiting(number string) {
	if c := m.calls.find(CallWaiting); c != nil {
		if c.Number == "" {
			m.calls.setNumber(c, number)
		}
		return
	}
	if m.queryCallsSupported {
		m.log.Debug("CCWA без ожидающего вызова проигнорирован")
		return
	}
	m.calls.add(CallWaiting, number)
}
