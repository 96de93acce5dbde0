package slc

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/arzzra/handsfree/pkg/at"
	"github.com/arzzra/handsfree/pkg/handsfree"
)

// command одна AT команда в очереди. Итоговый результат ровно один: от AG,
// по таймауту или при закрытии сессии.
type command struct {
	line string
	// report публиковать итог как CommandResultEvent
	report bool
	// collect собирать информационные строки вместо перевода их в события
	collect bool

	infos    []at.Result
	final    at.Result
	finished chan struct{}
}

func newCommand(line string, report, collect bool) *command {
	return &command{line: line, report: report, collect: collect, finished: make(chan struct{})}
}

func (c *command) info(name string) (at.Result, bool) {
	for _, r := range c.infos {
		if r.Name == name {
			return r, true
		}
	}
	return at.Result{}, false
}

// session одно открытое соединение с AG.
type session struct {
	link *Link
	dev  handsfree.Device
	conn io.ReadWriteCloser
	log  *slog.Logger

	queue     chan *command
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	pending *command
	// late ждет запоздавший итог команды, завершенной по таймауту
	late    chan struct{}
	names   []string
	peer    handsfree.PeerFeatures
	codec   int
}

func newSession(l *Link, dev handsfree.Device, conn io.ReadWriteCloser) *session {
	return &session{
		link:  l,
		dev:   dev,
		conn:  conn,
		log:   l.log.With(slog.String("peer", dev.Address)),
		queue: make(chan *command, l.cfg.QueueSize),
		done:  make(chan struct{}),
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(); err != nil {
			s.log.Debug("ошибка закрытия канала", slog.String("error", err.Error()))
		}
		s.link.detach(s)
		s.log.Info("канал управления закрыт")
		s.link.post(handsfree.ConnectionStateEvent{State: handsfree.ConnectionDisconnected, Device: s.dev})
	})
}

// submit ставит команду в очередь без ожидания.
func (s *session) submit(line string, report bool) error {
	cmd := newCommand(line, report, false)
	select {
	case <-s.done:
		return ErrNotConnected
	default:
	}
	select {
	case s.queue <- cmd:
		return nil
	case <-s.done:
		return ErrNotConnected
	default:
		return errors.Wrap(ErrQueueFull, line)
	}
}

// exec отправляет команду и ждет итог, собирая информационные строки.
func (s *session) exec(line string) (*command, error) {
	cmd := newCommand(line, false, true)
	select {
	case s.queue <- cmd:
	case <-s.done:
		return nil, ErrNotConnected
	}
	select {
	case <-cmd.finished:
		return cmd, nil
	case <-s.done:
		return nil, ErrNotConnected
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case cmd := <-s.queue:
			if !s.write(cmd) {
				return
			}
		}
	}
}

func (s *session) write(cmd *command) bool {
	s.mu.Lock()
	s.pending = cmd
	s.mu.Unlock()

	s.log.Debug("AT >", slog.String("line", cmd.line))
	if _, err := io.WriteString(s.conn, cmd.line+"\r"); err != nil {
		s.log.Error("ошибка записи", slog.String("line", cmd.line), slog.String("error", err.Error()))
		s.abort(cmd)
		s.close()
		return false
	}

	timer := time.NewTimer(s.link.cfg.CommandTimeout)
	defer timer.Stop()
	select {
	case <-cmd.finished:
		return true
	case <-timer.C:
		s.log.Warn("нет ответа на команду", slog.String("line", cmd.line))
		return s.expire(cmd)
	case <-s.done:
		return false
	}
}

// expire завершает команду с ERROR и до следующей команды ждет ее запоздавший итог,
// чтобы он не достался чужой команде. Если AG молчит и дальше, канал закрывается.
func (s *session) expire(cmd *command) bool {
	late := make(chan struct{})
	s.mu.Lock()
	if s.pending != cmd {
		s.mu.Unlock()
		return true
	}
	s.pending = nil
	s.late = late
	s.mu.Unlock()
	s.complete(cmd, at.Result{Kind: at.KindFinal, Name: "ERROR", Code: handsfree.ResultError})

	timer := time.NewTimer(s.link.cfg.CommandTimeout)
	defer timer.Stop()
	select {
	case <-late:
		return true
	case <-timer.C:
		s.log.Error("AG не отвечает, канал управления закрывается", slog.String("line", cmd.line))
		s.close()
		return false
	case <-s.done:
		return false
	}
}

// abort завершает команду с ERROR, если запись не удалась.
func (s *session) abort(cmd *command) {
	s.mu.Lock()
	if s.pending != cmd {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.mu.Unlock()
	s.complete(cmd, at.Result{Kind: at.KindFinal, Name: "ERROR", Code: handsfree.ResultError})
}

func (s *session) complete(cmd *command, r at.Result) {
	cmd.final = r
	if cmd.report {
		s.link.post(handsfree.CommandResultEvent{Code: r.Code, CmeError: r.CmeError})
	}
	close(cmd.finished)
}

func (s *session) readLoop() {
	defer s.close()
	sc := bufio.NewScanner(s.conn)
	sc.Split(at.ScanLines)
	for sc.Scan() {
		s.handleLine(sc.Text())
	}
	if err := sc.Err(); err != nil {
		select {
		case <-s.done:
		default:
			s.log.Warn("ошибка чтения", slog.String("error", err.Error()))
		}
	}
}

func (s *session) handleLine(line string) {
	s.log.Debug("AT <", slog.String("line", line))
	r, err := at.Parse(line)
	if err != nil {
		if r.Kind != at.KindFinal {
			s.log.Warn("строка не разобрана", slog.String("line", line), slog.String("error", err.Error()))
			return
		}
		// "+CME ERROR" с мусором вместо кода остается итогом команды
	}
	switch r.Kind {
	case at.KindFinal:
		s.finish(r)
	case at.KindUnsolicited:
		s.translate(r)
	default:
		s.mu.Lock()
		if cmd := s.pending; cmd != nil && cmd.collect {
			cmd.infos = append(cmd.infos, r)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		s.translate(r)
	}
}

func (s *session) finish(r at.Result) {
	s.mu.Lock()
	if s.late != nil {
		close(s.late)
		s.late = nil
		s.mu.Unlock()
		s.log.Debug("запоздавший итог отброшен", slog.String("line", r.Raw))
		return
	}
	cmd := s.pending
	s.pending = nil
	s.mu.Unlock()
	if cmd == nil {
		s.log.Debug("итог без команды", slog.String("line", r.Raw))
		return
	}
	s.complete(cmd, r)
}

// translate переводит незапрошенную или информационную строку в событие машины.
func (s *session) translate(r at.Result) {
	var (
		ev  handsfree.Event
		err error
	)
	switch r.Name {
	case "RING":
		ev = handsfree.RingEvent{}
	case "+CIEV":
		var idx, val int
		if idx, val, err = at.CIEV(r); err == nil {
			ev = s.indicator(idx, val)
		}
	case "+CLIP":
		var number string
		if number, err = at.CLIP(r); err == nil {
			ev = handsfree.ClipEvent{Number: s.decode(number)}
		}
	case "+CCWA":
		var number string
		if number, err = at.CCWA(r); err == nil {
			ev = handsfree.CallWaitingEvent{Number: s.decode(number)}
		}
	case "+CLCC":
		var call handsfree.CurrentCallEvent
		if call, err = at.CLCC(r); err == nil {
			call.Number = s.decode(call.Number)
			ev = call
		}
	case "+COPS":
		var name string
		if name, err = at.COPS(r); err == nil {
			ev = handsfree.OperatorNameEvent{Name: s.decode(name)}
		}
	case "+CNUM":
		var (
			number  string
			service int
		)
		if number, service, err = at.CNUM(r); err == nil {
			ev = handsfree.SubscriberInfoEvent{Number: s.decode(number), Service: service}
		}
	case "+BINP":
		var number string
		if number, err = at.BINP(r); err == nil {
			ev = handsfree.LastVoiceTagNumberEvent{Number: s.decode(number)}
		}
	case "+BCS":
		var codec int
		if codec, err = at.Value(r); err == nil {
			s.selectCodec(codec)
		}
	default:
		ev, err = s.value(r)
	}
	if err != nil {
		s.log.Warn("некорректная строка", slog.String("line", r.Raw), slog.String("error", err.Error()))
		return
	}
	if ev != nil {
		s.link.post(ev)
	}
}

// value строки вида "+XXX: <n>".
func (s *session) value(r at.Result) (handsfree.Event, error) {
	var build func(int) handsfree.Event
	switch r.Name {
	case "+BSIR":
		build = func(v int) handsfree.Event { return handsfree.InBandRingEvent{Enabled: v == 1} }
	case "+BVRA":
		build = func(v int) handsfree.Event { return handsfree.VoiceRecognitionEvent{State: v} }
	case "+VGS":
		build = func(v int) handsfree.Event { return handsfree.VolumeEvent{Type: handsfree.VolumeSpeaker, Level: v} }
	case "+VGM":
		build = func(v int) handsfree.Event { return handsfree.VolumeEvent{Type: handsfree.VolumeMic, Level: v} }
	case "+BTRH":
		build = func(v int) handsfree.Event { return handsfree.RespAndHoldEvent{Value: v} }
	default:
		s.log.Debug("строка пропущена", slog.String("line", r.Raw))
		return nil, nil
	}
	v, err := at.Value(r)
	if err != nil {
		return nil, err
	}
	return build(v), nil
}

func (s *session) decode(text string) string {
	out, err := s.link.cfg.Charset.Decode(text)
	if err != nil {
		s.log.Debug("строка оставлена как есть", slog.String("text", text), slog.String("error", err.Error()))
		return text
	}
	return out
}

func (s *session) indicator(idx, val int) handsfree.Event {
	s.mu.Lock()
	var name string
	if idx >= 1 && idx <= len(s.names) {
		name = s.names[idx-1]
	}
	s.mu.Unlock()
	ev, ok := indicatorEvent(name, val)
	if !ok {
		s.log.Debug("неизвестный индикатор", slog.Int("index", idx), slog.String("name", name))
		return nil
	}
	return ev
}

// indicatorEvent событие для индикатора по имени из AT+CIND=?.
func indicatorEvent(name string, val int) (handsfree.Event, bool) {
	switch name {
	case "service":
		return handsfree.NetworkStateEvent{State: val}, true
	case "call":
		return handsfree.CallIndicatorEvent{Value: val}, true
	case "callsetup", "call_setup":
		return handsfree.CallSetupIndicatorEvent{Value: val}, true
	case "callheld", "call_held":
		return handsfree.CallHeldIndicatorEvent{Value: val}, true
	case "signal":
		return handsfree.SignalStrengthEvent{Level: val}, true
	case "roam":
		return handsfree.RoamingEvent{Roaming: val}, true
	case "battchg":
		return handsfree.BatteryLevelEvent{Level: val}, true
	}
	return nil, false
}

func (s *session) codecNegotiation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer.Has(handsfree.PeerFeatureCodecNegot) && s.link.cfg.Features&HFFeatureCodecNegot != 0
}

// selectCodec подтверждает кодек из +BCS; после подтверждения AG открывает SCO.
func (s *session) selectCodec(codec int) {
	s.mu.Lock()
	s.codec = codec
	s.mu.Unlock()
	if err := s.submit(at.BCS(codec), false); err != nil {
		s.log.Warn("кодек не подтвержден", slog.Int("codec", codec), slog.String("error", err.Error()))
		return
	}
	if s.link.audio != nil {
		go s.connectSCO(codec == codecMSBC)
	}
}

const codecMSBC = 2

func (s *session) connectSCO(wideband bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.link.cfg.DialTimeout)
	defer cancel()
	if err := s.link.audio.ConnectSCO(ctx, s.dev, wideband); err != nil {
		s.log.Error("SCO не открыт", slog.String("error", err.Error()))
		s.link.post(handsfree.AudioStateEvent{State: handsfree.AudioDisconnected, Device: s.dev})
		return
	}
	state := handsfree.AudioConnected
	if wideband {
		state = handsfree.AudioConnectedMSBC
	}
	s.link.post(handsfree.AudioStateEvent{State: state, Device: s.dev})
}
