package slc

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arzzra/handsfree/pkg/at"
	"github.com/arzzra/handsfree/pkg/handsfree"
)

var testDevice = handsfree.Device{Address: "00:11:22:33:44:55", Name: "Phone"}

const (
	cindTest = `+CIND: ("call",(0,1)),("callsetup",(0-3)),("service",(0,1)),("signal",(0-5)),("roam",(0,1)),("battchg",(0-5)),("callheld",(0-2))`
	cindRead = "+CIND: 0,0,1,4,0,5,0"
)

// recordSink запоминает события в порядке доставки.
type recordSink struct {
	mu     sync.Mutex
	events []handsfree.Event
}

func (r *recordSink) Post(ev handsfree.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordSink) snapshot() []handsfree.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]handsfree.Event(nil), r.events...)
}

func (r *recordSink) wait(t *testing.T, n int) []handsfree.Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.snapshot()) >= n }, time.Second, 5*time.Millisecond)
	return r.snapshot()
}

func ofType[T handsfree.Event](events []handsfree.Event) []T {
	var out []T
	for _, ev := range events {
		if typed, ok := ev.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

// fakeAG отвечает на команды HF по сценарию reply.
type fakeAG struct {
	conn  net.Conn
	reply func(line string) []string

	mu       sync.Mutex
	received []string
}

func standardReply(line string) []string {
	switch {
	case strings.HasPrefix(line, "AT+BRSF="):
		return []string{"+BRSF: 871", "OK"}
	case line == at.IndicatorsTest:
		return []string{cindTest, "OK"}
	case line == at.IndicatorsRead:
		return []string{cindRead, "OK"}
	case line == at.CallHoldTest:
		return []string{"+CHLD: (0,1,1x,2,2x,3,4)", "OK"}
	}
	return []string{"OK"}
}

// withOverrides отвечает по таблице, остальное по standardReply.
func withOverrides(table map[string][]string) func(string) []string {
	return func(line string) []string {
		if resp, ok := table[line]; ok {
			return resp
		}
		return standardReply(line)
	}
}

func newFakeAG(t *testing.T, reply func(string) []string) (*fakeAG, net.Conn) {
	hf, ag := net.Pipe()
	fake := &fakeAG{conn: ag, reply: reply}
	t.Cleanup(func() {
		ag.Close()
		hf.Close()
	})
	go fake.serve()
	return fake, hf
}

func (a *fakeAG) serve() {
	sc := bufio.NewScanner(a.conn)
	sc.Split(at.ScanLines)
	for sc.Scan() {
		line := sc.Text()
		a.mu.Lock()
		a.received = append(a.received, line)
		a.mu.Unlock()
		if resp := a.reply(line); len(resp) > 0 {
			a.send(resp...)
		}
	}
}

func (a *fakeAG) send(lines ...string) {
	for _, line := range lines {
		if _, err := a.conn.Write([]byte("\r\n" + line + "\r\n")); err != nil {
			return
		}
	}
}

func (a *fakeAG) commands() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.received...)
}

func (a *fakeAG) waitCommand(t *testing.T, line string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, got := range a.commands() {
			if got == line {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "AG не получил %s", line)
}

type fakeAudio struct {
	mu        sync.Mutex
	connects  []bool
	disconnts int
	err       error
}

func (f *fakeAudio) ConnectSCO(ctx context.Context, dev handsfree.Device, wideband bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, wideband)
	return f.err
}

func (f *fakeAudio) DisconnectSCO(dev handsfree.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnts++
	return nil
}

// attached поднимает Link поверх fakeAG и ждет установки SLC.
func attached(t *testing.T, reply func(string) []string, opts ...Option) (*Link, *fakeAG, *recordSink) {
	t.Helper()
	ag, conn := newFakeAG(t, reply)
	link, err := New(nil, opts...)
	require.NoError(t, err)
	sink := &recordSink{}
	link.SetSink(sink)
	t.Cleanup(func() { link.Close() })

	require.NoError(t, link.Attach(testDevice, conn))
	// callheld объявлен последним, его событие замыкает начальные индикаторы
	require.Eventually(t, func() bool {
		return len(ofType[handsfree.CallHeldIndicatorEvent](sink.snapshot())) > 0
	}, time.Second, 5*time.Millisecond)
	return link, ag, sink
}
