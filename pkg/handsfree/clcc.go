package handsfree

import (
	"log/slog"
	"sort"
)

// queryCallsStart отправляет +CLCC. Ответ приходит строками CurrentCallEvent и итоговым
// CommandResultEvent, который закрывает опрос.
func (m *Machine) queryCallsStart() bool {
	if err := m.transport.QueryCurrentCalls(); err != nil {
		m.log.Error("не удалось запросить список вызовов", slog.String("error", err.Error()))
		return false
	}
	m.enqueue(Action{Kind: ActionQueryCurrentCalls, Payload: NoPayload{}})
	return true
}

// pollOnIndicator в режиме CLCC заменяет эвристику опросом. Если опрос не ушел,
// изменение обрабатывается эвристикой.
func (m *Machine) pollOnIndicator() bool {
	if !m.queryCallsSupported {
		return false
	}
	return m.queryCallsStart()
}

// queryCallsUpdate копит строку списка вызовов до завершения опроса.
func (m *Machine) queryCallsUpdate(ev CurrentCallEvent) {
	if ev.Index <= 0 || ev.State == CallTerminated {
		m.log.Warn("некорректная строка списка вызовов",
			slog.Int("index", ev.Index),
			slog.String("state", ev.State.String()))
		return
	}
	m.clccBuffer = append(m.clccBuffer, ev)
}

// queryCallsDone применяет накопленный список к таблице.
func (m *Machine) queryCallsDone(code ResultCode) {
	buffer := m.clccBuffer
	m.clccBuffer = nil
	probe := m.clccProbe
	m.clccProbe = false

	if code != ResultOK {
		if probe {
			m.log.Info("AG не поддерживает список вызовов, используются индикаторы")
			m.queryCallsSupported = false
			m.synthesizeFromIndicators()
			return
		}
		m.log.Warn("опрос списка вызовов завершился ошибкой", slog.String("code", code.String()))
		return
	}

	update := make([]Call, 0, len(buffer))
	for _, ev := range buffer {
		update = append(update, Call{
			ID:         ev.Index,
			State:      ev.State,
			Number:     ev.Number,
			MultiParty: ev.MultiParty,
			Outgoing:   ev.Outgoing,
		})
	}
	sort.Slice(update, func(i, j int) bool { return update[i].ID < update[j].ID })
	m.calls.reconcile(update)
	m.clearPendingAction()

	// несколько активных вызовов или входящий без callsetup: AG мог еще не закончить переход
	incomingSettled := m.calls.find(CallIncoming) != nil && m.indicators.CallSetup == CallSetupNone
	if m.calls.count(CallActive) > 1 || incomingSettled {
		m.scheduleRequery()
	}
}

// requeryCurrentCalls отложенный повторный опрос.
func (m *Machine) requeryCurrentCalls(generation uint64) {
	if generation != m.generation {
		m.log.Debug("устаревший повторный опрос проигнорирован")
		return
	}
	m.requery = nil
	m.queryCallsStart()
}
