package handsfree

import (
	"sort"
	"time"
)

// callTable авторитетное отображение id -> вызов.
//
// Инварианты:
//   - id уникальны среди живых вызовов, новый вызов получает наименьший свободный id начиная с 1;
//   - вызов в состоянии Terminated рассылается один раз и сразу удаляется из таблицы;
//   - после каждой мутации вызов multiparty тогда и только тогда, когда он Active
//     и активных вызовов больше одного.
type callTable struct {
	calls  map[int]*Call
	device Device
	notify func(Call)
	now    func() time.Time
}

func newCallTable(notify func(Call), now func() time.Time) *callTable {
	if notify == nil {
		notify = func(Call) {}
	}
	if now == nil {
		now = time.Now
	}
	return &callTable{
		calls:  make(map[int]*Call),
		notify: notify,
		now:    now,
	}
}

func (t *callTable) bind(dev Device) {
	t.device = dev
}

func (t *callTable) size() int {
	return len(t.calls)
}

// nextID возвращает наименьшее положительное целое, не занятое живым вызовом.
func (t *callTable) nextID() int {
	id := 1
	for {
		if _, used := t.calls[id]; !used {
			return id
		}
		id++
	}
}

// sorted возвращает вызовы в порядке возрастания id, чтобы поиск был детерминированным.
func (t *callTable) sorted() []*Call {
	out := make([]*Call, 0, len(t.calls))
	for _, c := range t.calls {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// list возвращает копии вызовов, отсортированные по id.
func (t *callTable) list() []Call {
	sorted := t.sorted()
	out := make([]Call, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, *c)
	}
	return out
}

func (t *callTable) get(id int) *Call {
	return t.calls[id]
}

// find возвращает вызов с наименьшим id в любом из states.
func (t *callTable) find(states ...CallState) *Call {
	for _, c := range t.sorted() {
		for _, s := range states {
			if c.State == s {
				return c
			}
		}
	}
	return nil
}

func (t *callTable) count(state CallState) int {
	n := 0
	for _, c := range t.calls {
		if c.State == state {
			n++
		}
	}
	return n
}

// add создает новый вызов и рассылает его.
func (t *callTable) add(state CallState, number string) *Call {
	c := &Call{
		ID:        t.nextID(),
		State:     state,
		Number:    number,
		Outgoing:  state == CallDialing || state == CallAlerting,
		Device:    t.device,
		CreatedAt: t.now(),
	}
	t.calls[c.ID] = c
	c.MultiParty = c.State == CallActive && t.count(CallActive) > 1
	t.notify(*c)
	t.normalize()
	return c
}

// put вставляет вызов с заданным id (используется сверкой +CLCC).
func (t *callTable) put(c Call) {
	c.Device = t.device
	if c.CreatedAt.IsZero() {
		c.CreatedAt = t.now()
	}
	stored := c
	t.calls[c.ID] = &stored
	t.notify(stored)
}

// setState меняет состояние вызова; переход в Terminated удаляет вызов.
func (t *callTable) setState(c *Call, state CallState) {
	if c == nil || c.State == state {
		return
	}
	c.State = state
	if state == CallTerminated {
		c.MultiParty = false
		delete(t.calls, c.ID)
		t.notify(*c)
		t.normalize()
		return
	}
	c.MultiParty = state == CallActive && t.count(CallActive) > 1
	t.notify(*c)
	t.normalize()
}

// setNumber привязывает номер к вызову, рассылая изменение только при отличии.
func (t *callTable) setNumber(c *Call, number string) {
	if c == nil || c.Number == number {
		return
	}
	c.Number = number
	t.notify(*c)
}

// terminate завершает вызов по id.
func (t *callTable) terminate(id int) bool {
	c := t.calls[id]
	if c == nil {
		return false
	}
	t.setState(c, CallTerminated)
	return true
}

// remove завершает все вызовы в перечисленных состояниях.
func (t *callTable) remove(states ...CallState) int {
	n := 0
	for _, c := range t.sorted() {
		for _, s := range states {
			if c.State == s {
				t.setState(c, CallTerminated)
				n++
				break
			}
		}
	}
	return n
}

// changeState переводит все вызовы из old в next.
func (t *callTable) changeState(old, next CallState) int {
	n := 0
	for _, c := range t.sorted() {
		if c.State == old {
			t.setState(c, next)
			n++
		}
	}
	return n
}

// clear завершает все вызовы, рассылая Terminated для каждого.
func (t *callTable) clear() {
	for _, c := range t.sorted() {
		t.setState(c, CallTerminated)
	}
	t.calls = make(map[int]*Call)
}

// normalize восстанавливает инвариант multiparty, рассылая только реальные изменения.
func (t *callTable) normalize() {
	multi := t.count(CallActive) > 1
	for _, c := range t.sorted() {
		want := c.State == CallActive && multi
		if c.MultiParty != want {
			c.MultiParty = want
			t.notify(*c)
		}
	}
}

// reconcile сверяет таблицу с полным списком вызовов AG.
//
// Вызовы, которых нет в списке, завершаются. Пустой номер в списке не затирает известный.
// Направление и время создания существующего вызова сохраняются. Повторная сверка с тем же
// списком ничего не рассылает.
func (t *callTable) reconcile(update []Call) {
	seen := make(map[int]bool, len(update))
	active := 0
	for _, u := range update {
		seen[u.ID] = true
		if u.State == CallActive {
			active++
		}
	}

	for _, c := range t.sorted() {
		if seen[c.ID] {
			continue
		}
		c.State = CallTerminated
		c.MultiParty = false
		delete(t.calls, c.ID)
		t.notify(*c)
	}

	for _, u := range update {
		u.MultiParty = u.State == CallActive && active > 1
		c, ok := t.calls[u.ID]
		if !ok {
			t.put(u)
			continue
		}
		if u.Number == "" {
			u.Number = c.Number
		}
		if c.State == u.State && c.Number == u.Number && c.MultiParty == u.MultiParty {
			continue
		}
		c.State = u.State
		c.Number = u.Number
		c.MultiParty = u.MultiParty
		t.notify(*c)
	}
	t.normalize()
}
