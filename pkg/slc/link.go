// Package slc канал управления Hands-Free поверх байтового потока RFCOMM: установка
// Service Level Connection, последовательная отправка AT команд и перевод ответов AG в
// события машины состояний.
package slc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/arzzra/handsfree/pkg/at"
	"github.com/arzzra/handsfree/pkg/handsfree"
)

// Dialer открывает байтовый поток к AG.
type Dialer interface {
	Dial(ctx context.Context, dev handsfree.Device) (io.ReadWriteCloser, error)
}

// DialerFunc адаптер функции к Dialer.
type DialerFunc func(ctx context.Context, dev handsfree.Device) (io.ReadWriteCloser, error)

func (f DialerFunc) Dial(ctx context.Context, dev handsfree.Device) (io.ReadWriteCloser, error) {
	return f(ctx, dev)
}

// EventSink получатель событий транспорта, обычно *handsfree.Machine.
type EventSink interface {
	Post(ev handsfree.Event) error
}

// AudioLink управление SCO, которое идет мимо AT канала.
type AudioLink interface {
	ConnectSCO(ctx context.Context, dev handsfree.Device, wideband bool) error
	DisconnectSCO(dev handsfree.Device) error
}

var (
	ErrNotConnected     = errors.New("slc: нет канала управления")
	ErrQueueFull        = errors.New("slc: очередь команд переполнена")
	ErrAudioUnsupported = errors.New("slc: управление SCO недоступно")
)

// Link реализует handsfree.Transport для одного AG.
type Link struct {
	cfg    *Config
	log    *slog.Logger
	dialer Dialer
	audio  AudioLink

	mu         sync.Mutex
	sink       EventSink
	sess       *session
	cancelDial context.CancelFunc
}

var _ handsfree.Transport = (*Link)(nil)

// New создает канал. dialer может быть nil, если соединения приходят только через Attach.
func New(dialer Dialer, opts ...Option) (*Link, error) {
	l := &Link{
		cfg:    DefaultConfig(),
		log:    slog.Default(),
		dialer: dialer,
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.cfg.Validate(); err != nil {
		return nil, err
	}
	l.log = l.log.With(slog.String("component", "slc"))
	return l, nil
}

// SetSink задает получателя событий. Вызывается до первого подключения.
func (l *Link) SetSink(sink EventSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

func (l *Link) post(ev handsfree.Event) {
	l.mu.Lock()
	sink := l.sink
	l.mu.Unlock()
	if sink == nil {
		l.log.Warn("событие без получателя", slog.String("event", fmt.Sprintf("%T", ev)))
		return
	}
	if err := sink.Post(ev); err != nil {
		l.log.Debug("событие не доставлено",
			slog.String("event", fmt.Sprintf("%T", ev)),
			slog.String("error", err.Error()))
	}
}

func (l *Link) current() *session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sess
}

// Connect устанавливает соединение асинхронно; итог приходит событиями состояния.
func (l *Link) Connect(dev handsfree.Device) error {
	if l.dialer == nil {
		return errors.New("slc: исходящие подключения не настроены")
	}
	l.mu.Lock()
	if l.sess != nil {
		l.mu.Unlock()
		return errors.Errorf("slc: уже подключен к %s", l.sess.dev)
	}
	if l.cancelDial != nil {
		l.mu.Unlock()
		return errors.New("slc: подключение уже выполняется")
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.DialTimeout)
	l.cancelDial = cancel
	l.mu.Unlock()

	go l.dial(ctx, cancel, dev)
	return nil
}

func (l *Link) dial(ctx context.Context, cancel context.CancelFunc, dev handsfree.Device) {
	defer cancel()
	conn, err := l.dialer.Dial(ctx, dev)

	l.mu.Lock()
	l.cancelDial = nil
	l.mu.Unlock()

	if err != nil {
		l.log.Error("не удалось открыть канал",
			slog.String("peer", dev.Address),
			slog.String("error", err.Error()))
		l.post(handsfree.ConnectionStateEvent{State: handsfree.ConnectionDisconnected, Device: dev})
		return
	}
	if err := l.start(dev, conn); err != nil {
		l.log.Error("канал открыт повторно", slog.String("error", err.Error()))
		conn.Close()
	}
}

// Attach принимает входящее соединение, например из BlueZ NewConnection.
func (l *Link) Attach(dev handsfree.Device, conn io.ReadWriteCloser) error {
	if err := l.start(dev, conn); err != nil {
		conn.Close()
		return err
	}
	return nil
}

func (l *Link) start(dev handsfree.Device, conn io.ReadWriteCloser) error {
	s := newSession(l, dev, conn)
	l.mu.Lock()
	if l.sess != nil {
		l.mu.Unlock()
		return errors.Errorf("slc: уже подключен к %s", l.sess.dev)
	}
	l.sess = s
	l.mu.Unlock()

	l.log.Info("канал управления открыт", slog.String("peer", dev.Address))
	l.post(handsfree.ConnectionStateEvent{State: handsfree.ConnectionConnected, Device: dev})
	go s.readLoop()
	go s.writeLoop()
	go s.handshake()
	return nil
}

func (l *Link) detach(s *session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sess == s {
		l.sess = nil
	}
}

// Disconnect закрывает канал; Disconnected придет событием.
func (l *Link) Disconnect(dev handsfree.Device) error {
	l.mu.Lock()
	s, cancel := l.sess, l.cancelDial
	l.mu.Unlock()

	switch {
	case s != nil:
		if !dev.IsZero() && !dev.Equal(s.dev) {
			return errors.Errorf("slc: подключен к %s, а не к %s", s.dev, dev)
		}
		s.close()
	case cancel != nil:
		cancel()
	default:
		l.post(handsfree.ConnectionStateEvent{State: handsfree.ConnectionDisconnected, Device: dev})
	}
	return nil
}

// Close закрывает текущий канал.
func (l *Link) Close() error {
	if s := l.current(); s != nil {
		s.close()
	}
	return nil
}

func (l *Link) send(line string) error {
	s := l.current()
	if s == nil {
		return ErrNotConnected
	}
	return s.submit(line, true)
}

// ConnectAudio запрашивает SCO. При согласовании кодеков AG сам поднимает SCO после
// AT+BCC и +BCS, иначе SCO открывает AudioLink.
func (l *Link) ConnectAudio(dev handsfree.Device) error {
	s := l.current()
	if s == nil {
		return ErrNotConnected
	}
	if s.codecNegotiation() {
		return s.submit(at.CodecConnection, false)
	}
	if l.audio == nil {
		return ErrAudioUnsupported
	}
	go s.connectSCO(false)
	return nil
}

func (l *Link) DisconnectAudio(dev handsfree.Device) error {
	s := l.current()
	if s == nil {
		return ErrNotConnected
	}
	if l.audio == nil {
		return ErrAudioUnsupported
	}
	go func() {
		if err := l.audio.DisconnectSCO(s.dev); err != nil {
			s.log.Warn("ошибка закрытия SCO", slog.String("error", err.Error()))
		}
		l.post(handsfree.AudioStateEvent{State: handsfree.AudioDisconnected, Device: s.dev})
	}()
	return nil
}

func (l *Link) StartVoiceRecognition() error { return l.send(at.BVRA(true)) }
func (l *Link) StopVoiceRecognition() error  { return l.send(at.BVRA(false)) }

func (l *Link) SetVolume(volume handsfree.VolumeType, level int) error {
	return l.send(at.Volume(volume, level))
}

func (l *Link) Dial(number string) error {
	if number == "" {
		return l.send(at.Redial)
	}
	return l.send(at.Dial(number))
}

func (l *Link) DialMemory(location int) error {
	return l.send(at.DialMemory(location))
}

func (l *Link) SendCallAction(cmd handsfree.CallCommand, index int) error {
	line, err := at.CallAction(cmd, index)
	if err != nil {
		return err
	}
	return l.send(line)
}

func (l *Link) QueryCurrentCalls() error         { return l.send(at.ListCalls) }
func (l *Link) QueryOperatorName() error         { return l.send(at.OperatorQuery) }
func (l *Link) RetrieveSubscriberInfo() error    { return l.send(at.SubscriberQuery) }
func (l *Link) SendDTMF(code byte) error         { return l.send(at.VTS(code)) }
func (l *Link) RequestLastVoiceTagNumber() error { return l.send(at.VoiceTagNumber) }
