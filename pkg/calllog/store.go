// Package calllog хранит историю вызовов и приоритеты подключения устройств в SQLite.
package calllog

import (
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arzzra/handsfree/pkg/handsfree"
)

// Priority приоритет автоматического подключения устройства.
type Priority int

const (
	PriorityUndefined Priority = iota
	PriorityOff
	PriorityOn
)

func (p Priority) String() string {
	switch p {
	case PriorityOff:
		return "off"
	case PriorityOn:
		return "on"
	}
	return "undefined"
}

// CallRecord один вызов в рамках сессии подключения.
type CallRecord struct {
	ID         uint   `gorm:"primaryKey"`
	Session    string `gorm:"index:idx_session_call"`
	CallID     int    `gorm:"index:idx_session_call"`
	Device     string `gorm:"index"`
	Number     string
	Outgoing   bool
	MultiParty bool
	FirstState string
	LastState  string
	StartedAt  time.Time
	EndedAt    *time.Time
}

// DevicePriority приоритет устройства по адресу.
type DevicePriority struct {
	Address   string `gorm:"primaryKey"`
	Priority  Priority
	UpdatedAt time.Time
}

// Store журнал вызовов. Реализует handsfree.Listener и handsfree.ConnectPolicy.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
	now func() time.Time
}

var (
	_ handsfree.Listener      = (*Store)(nil)
	_ handsfree.ConnectPolicy = (*Store)(nil)
)

// Open открывает базу по DSN, например "/var/lib/hfpd/calls.db" или ":memory:".
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, errors.Wrapf(err, "calllog: открытие %s", dsn)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		// у каждого соединения своя база в памяти
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "calllog: пул соединений")
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&CallRecord{}, &DevicePriority{}); err != nil {
		return nil, errors.Wrap(err, "calllog: миграция")
	}
	return &Store{
		db:  db,
		log: logger.With(slog.String("component", "calllog")),
		now: time.Now,
	}, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) OnNotification(n handsfree.Notification) {
	switch n := n.(type) {
	case handsfree.CallChanged:
		if err := s.recordCall(n); err != nil {
			s.log.Warn("вызов не записан", slog.Int("call", n.Call.ID), slog.String("error", err.Error()))
		}
	case handsfree.ConnectionStateChanged:
		if n.State == handsfree.ConnectionConnected {
			if err := s.promote(n.Device.Address); err != nil {
				s.log.Warn("приоритет не обновлен", slog.String("device", n.Device.Address), slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Store) recordCall(n handsfree.CallChanged) error {
	call := n.Call
	state := call.State.String()

	var rec CallRecord
	err := s.db.Where("session = ? AND call_id = ? AND ended_at IS NULL", n.Session, call.ID).
		Order("id DESC").First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		started := call.CreatedAt
		if started.IsZero() {
			started = s.now()
		}
		rec = CallRecord{
			Session:    n.Session,
			CallID:     call.ID,
			Device:     normalize(call.Device.Address),
			Outgoing:   call.Outgoing,
			FirstState: state,
			StartedAt:  started,
		}
	case err != nil:
		return err
	}

	rec.LastState = state
	rec.MultiParty = rec.MultiParty || call.MultiParty
	if call.Number != "" {
		rec.Number = call.Number
	}
	if call.State == handsfree.CallTerminated {
		ended := s.now()
		rec.EndedAt = &ended
	}
	return s.db.Save(&rec).Error
}

// promote переводит устройство с неопределенным приоритетом в On при первом подключении.
func (s *Store) promote(address string) error {
	address = normalize(address)
	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&DevicePriority{Address: address, Priority: PriorityOn, UpdatedAt: s.now()}).Error
	if err != nil {
		return err
	}
	return s.db.Model(&DevicePriority{}).
		Where("address = ? AND priority = ?", address, PriorityUndefined).
		Updates(map[string]any{"priority": PriorityOn, "updated_at": s.now()}).Error
}

// OkToConnect отклоняет устройства с приоритетом Off. Ошибка базы не блокирует подключение.
func (s *Store) OkToConnect(dev handsfree.Device) bool {
	p, err := s.Priority(dev.Address)
	if err != nil {
		s.log.Warn("приоритет недоступен", slog.String("device", dev.Address), slog.String("error", err.Error()))
		return true
	}
	return p != PriorityOff
}

// SetPriority задает приоритет устройства.
func (s *Store) SetPriority(address string, p Priority) error {
	rec := DevicePriority{Address: normalize(address), Priority: p, UpdatedAt: s.now()}
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	return errors.Wrapf(err, "calllog: приоритет %s", address)
}

// Priority возвращает приоритет; неизвестное устройство имеет PriorityUndefined.
func (s *Store) Priority(address string) (Priority, error) {
	var rec DevicePriority
	err := s.db.Where("address = ?", normalize(address)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PriorityUndefined, nil
	}
	if err != nil {
		return PriorityUndefined, errors.Wrapf(err, "calllog: приоритет %s", address)
	}
	return rec.Priority, nil
}

// History последние вызовы устройства, новые первыми. limit <= 0 без ограничения.
func (s *Store) History(address string, limit int) ([]CallRecord, error) {
	q := s.db.Where("device = ?", normalize(address)).Order("started_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []CallRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, errors.Wrapf(err, "calllog: история %s", address)
	}
	return out, nil
}

func normalize(address string) string {
	return strings.ToUpper(address)
}
