package handsfree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable() (*callTable, *[]Call) {
	var notified []Call
	t := newCallTable(func(c Call) { notified = append(notified, c) },
		func() time.Time { return time.Unix(0, 0) })
	t.bind(testDevice)
	return t, &notified
}

// TestCallTableIDAllocation проверяет выдачу наименьшего свободного id
func TestCallTableIDAllocation(t *testing.T) {
	table, _ := newTestTable()

	assert.Equal(t, 1, table.add(CallIncoming, "").ID)
	assert.Equal(t, 2, table.add(CallWaiting, "").ID)
	assert.Equal(t, 3, table.add(CallDialing, "").ID)

	require.True(t, table.terminate(2))
	assert.Equal(t, 2, table.add(CallAlerting, "").ID)

	require.True(t, table.terminate(1))
	require.True(t, table.terminate(3))
	assert.Equal(t, 1, table.add(CallActive, "").ID)
	assert.Equal(t, 3, table.add(CallHeld, "").ID)
	assert.Equal(t, 4, table.add(CallHeld, "").ID)

	assert.False(t, table.terminate(42))
}

// TestCallTableMultiParty проверяет инвариант multiparty после каждой мутации
func TestCallTableMultiParty(t *testing.T) {
	table, _ := newTestTable()
	check := func() {
		t.Helper()
		checkMultiParty(t, table.list())
	}

	first := table.add(CallActive, "100")
	check()
	assert.False(t, first.MultiParty)

	second := table.add(CallActive, "200")
	check()
	assert.True(t, first.MultiParty)
	assert.True(t, second.MultiParty)

	table.setState(second, CallHeld)
	check()
	assert.False(t, first.MultiParty)

	table.changeState(CallHeld, CallActive)
	check()

	table.terminate(first.ID)
	check()
	assert.False(t, table.get(second.ID).MultiParty)
}

// TestCallTableTerminatedOnce проверяет, что завершенный вызов рассылается один раз и удаляется
func TestCallTableTerminatedOnce(t *testing.T) {
	table, notified := newTestTable()
	c := table.add(CallIncoming, "+15551234")
	*notified = nil

	table.setState(c, CallTerminated)
	table.setState(c, CallTerminated)

	require.Len(t, *notified, 1)
	assert.Equal(t, CallTerminated, (*notified)[0].State)
	assert.Equal(t, "+15551234", (*notified)[0].Number)
	assert.Nil(t, table.get(c.ID))
	assert.Zero(t, table.size())
}

func TestCallTableOutgoingAndDevice(t *testing.T) {
	table, _ := newTestTable()

	tests := []struct {
		name     string
		state    CallState
		outgoing bool
	}{
		{"набор номера", CallDialing, true},
		{"дозвон", CallAlerting, true},
		{"входящий", CallIncoming, false},
		{"ожидающий", CallWaiting, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := table.add(tt.state, "")
			assert.Equal(t, tt.outgoing, c.Outgoing)
			assert.True(t, c.Device.Equal(testDevice))
			table.setState(c, CallActive)
			assert.Equal(t, tt.outgoing, table.get(c.ID).Outgoing, "направление не меняется")
			table.terminate(c.ID)
		})
	}
}

func TestCallTableSetNumberOnlyOnChange(t *testing.T) {
	table, notified := newTestTable()
	c := table.add(CallIncoming, "")
	*notified = nil

	table.setNumber(c, "+100")
	table.setNumber(c, "+100")
	assert.Len(t, *notified, 1)
}

// TestCallTableReconcile проверяет сверку со списком вызовов AG
func TestCallTableReconcile(t *testing.T) {
	table, notified := newTestTable()
	table.add(CallActive, "+100")
	table.add(CallHeld, "+200")
	*notified = nil

	table.reconcile([]Call{{ID: 1, State: CallActive, Number: ""}})

	require.Len(t, *notified, 1, "вызов 1 не изменился, вызов 2 завершен")
	assert.Equal(t, 2, (*notified)[0].ID)
	assert.Equal(t, CallTerminated, (*notified)[0].State)
	assert.Equal(t, "+100", table.get(1).Number, "пустой номер не затирает известный")

	*notified = nil
	update := []Call{
		{ID: 1, State: CallActive, Number: "+100"},
		{ID: 3, State: CallActive, Number: "+300", Outgoing: true},
	}
	table.reconcile(update)
	assert.Len(t, *notified, 2)
	checkMultiParty(t, table.list())
	assert.True(t, table.get(3).Outgoing)

	*notified = nil
	table.reconcile(update)
	assert.Empty(t, *notified, "повторная сверка с тем же списком ничего не рассылает")
}

func TestCallTableClear(t *testing.T) {
	table, notified := newTestTable()
	table.add(CallActive, "")
	table.add(CallHeld, "")
	*notified = nil

	table.clear()

	assert.Zero(t, table.size())
	require.Len(t, *notified, 2)
	for _, c := range *notified {
		assert.Equal(t, CallTerminated, c.State)
	}
	assert.Equal(t, 1, table.nextID())
}
