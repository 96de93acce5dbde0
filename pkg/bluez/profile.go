// Package bluez регистрирует профиль Hands-Free в BlueZ и выдает RFCOMM соединения
// с AG, полученные через org.bluez.Profile1.NewConnection.
package bluez

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"

	"github.com/arzzra/handsfree/pkg/handsfree"
	"github.com/arzzra/handsfree/pkg/rfcomm"
)

const (
	// HandsfreeUUID профиль HFP Hands-Free unit
	HandsfreeUUID = "0000111e-0000-1000-8000-00805f9b34fb"
	// GatewayUUID профиль HFP Audio Gateway на стороне телефона
	GatewayUUID = "0000111f-0000-1000-8000-00805f9b34fb"

	bluezService        = "org.bluez"
	profileIface        = "org.bluez.Profile1"
	profileManagerIface = "org.bluez.ProfileManager1"
	deviceIface         = "org.bluez.Device1"

	profilePath = dbus.ObjectPath("/org/arzzra/handsfree/profile")
)

// InboundHandler получает соединения, которые открыл AG.
type InboundHandler func(dev handsfree.Device, conn io.ReadWriteCloser)

type delivery struct {
	dev  handsfree.Device
	conn io.ReadWriteCloser
}

// Profile профиль HF в BlueZ. Реализует slc.Dialer.
type Profile struct {
	log     *slog.Logger
	adapter string
	// newConn оборачивает дескриптор из NewConnection
	newConn func(fd int, name string) (io.ReadWriteCloser, error)

	mu      sync.Mutex
	bus     *dbus.Conn
	waiters map[string]chan delivery
	inbound InboundHandler
	cleanup []func()
	closed  bool
}

// New создает профиль для адаптера, например "hci0".
func New(adapter string, logger *slog.Logger) *Profile {
	if logger == nil {
		logger = slog.Default()
	}
	if adapter == "" {
		adapter = "hci0"
	}
	return &Profile{
		log:     logger.With(slog.String("component", "bluez")),
		adapter: adapter,
		newConn: rfcomm.FileConn,
		waiters: make(map[string]chan delivery),
	}
}

// OnInbound задает обработчик соединений, которых никто не ждет.
func (p *Profile) OnInbound(h InboundHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbound = h
}

// Register подключается к системной шине и регистрирует профиль.
func (p *Profile) Register(features int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("bluez: профиль закрыт")
	}
	if p.bus != nil {
		return nil
	}

	bus, err := dbus.SystemBus()
	if err != nil {
		return errors.Wrap(err, "bluez: системная шина")
	}
	p.bus = bus
	p.cleanup = append(p.cleanup, func() { bus.Close() })

	if err := bus.Export(profileObject{p}, profilePath, profileIface); err != nil {
		return errors.Wrap(err, "bluez: export профиля")
	}
	opts := map[string]dbus.Variant{
		"Name":     dbus.MakeVariant("Hands-Free unit"),
		"Role":     dbus.MakeVariant("client"),
		"Features": dbus.MakeVariant(uint16(features)),
	}
	manager := bus.Object(bluezService, "/org/bluez")
	if call := manager.Call(profileManagerIface+".RegisterProfile", 0, profilePath, HandsfreeUUID, opts); call.Err != nil {
		return errors.Wrap(call.Err, "bluez: RegisterProfile")
	}
	p.cleanup = append(p.cleanup, func() {
		if err := manager.Call(profileManagerIface+".UnregisterProfile", 0, profilePath).Err; err != nil {
			p.log.Warn("UnregisterProfile", slog.String("error", err.Error()))
		}
		bus.Export(nil, profilePath, profileIface)
	})
	p.log.Info("профиль зарегистрирован", slog.String("adapter", p.adapter))
	return nil
}

// Dial просит BlueZ подключить профиль AG и ждет NewConnection от этого устройства.
func (p *Profile) Dial(ctx context.Context, dev handsfree.Device) (io.ReadWriteCloser, error) {
	p.mu.Lock()
	bus := p.bus
	p.mu.Unlock()
	if bus == nil {
		return nil, errors.New("bluez: профиль не зарегистрирован")
	}

	ch, release := p.wait(dev.Address)
	defer release()

	path := dbus.ObjectPath(dev.Path)
	if path == "" {
		path = devicePath(p.adapter, dev.Address)
	}
	call := bus.Object(bluezService, path).CallWithContext(ctx, deviceIface+".ConnectProfile", 0, GatewayUUID)
	if call.Err != nil {
		return nil, errors.Wrapf(call.Err, "bluez: ConnectProfile %s", dev.Address)
	}

	select {
	case d := <-ch:
		return d.conn, nil
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "bluez: ожидание NewConnection")
	}
}

func (p *Profile) wait(address string) (<-chan delivery, func()) {
	key := strings.ToUpper(address)
	ch := make(chan delivery, 1)
	p.mu.Lock()
	p.waiters[key] = ch
	p.mu.Unlock()
	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.waiters[key] == ch {
			delete(p.waiters, key)
		}
	}
}

// deliver передает соединение ожидающему Dial или обработчику входящих.
func (p *Profile) deliver(path dbus.ObjectPath, fd int) error {
	address := macFromPath(path)
	dev := handsfree.Device{Address: address, Path: string(path)}
	conn, err := p.newConn(fd, "bluez:"+address)
	if err != nil {
		return err
	}

	p.mu.Lock()
	ch, waiting := p.waiters[address]
	inbound := p.inbound
	p.mu.Unlock()

	if waiting {
		select {
		case ch <- delivery{dev: dev, conn: conn}:
			return nil
		default:
		}
	}
	if inbound != nil {
		p.log.Info("входящее соединение", slog.String("peer", address))
		go inbound(dev, conn)
		return nil
	}
	conn.Close()
	return errors.Errorf("bluez: соединение от %s никто не ждет", address)
}

// Close снимает регистрацию и закрывает шину.
func (p *Profile) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	cleanup := p.cleanup
	p.cleanup = nil
	p.mu.Unlock()

	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
	return nil
}

// profileObject методы org.bluez.Profile1, экспортируемые в шину.
type profileObject struct {
	p *Profile
}

func (o profileObject) Release() *dbus.Error {
	o.p.log.Info("BlueZ освободил профиль")
	return nil
}

func (o profileObject) Cancel() *dbus.Error { return nil }

func (o profileObject) NewConnection(dev dbus.ObjectPath, fd dbus.UnixFD, _ map[string]dbus.Variant) *dbus.Error {
	if err := o.p.deliver(dev, int(fd)); err != nil {
		o.p.log.Warn("соединение отклонено", slog.String("device", string(dev)), slog.String("error", err.Error()))
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{err.Error()}}
	}
	return nil
}

func (o profileObject) RequestDisconnection(dev dbus.ObjectPath) *dbus.Error {
	o.p.log.Info("BlueZ запросил отключение", slog.String("device", string(dev)))
	return nil
}

// macFromPath "/org/bluez/hci0/dev_00_11_22_33_44_55" -> "00:11:22:33:44:55".
func macFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/dev_")
	if i < 0 {
		return ""
	}
	return strings.ToUpper(strings.ReplaceAll(s[i+len("/dev_"):], "_", ":"))
}

func devicePath(adapter, address string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + adapter + "/dev_" + strings.ToUpper(strings.ReplaceAll(address, ":", "_")))
}
