package handsfree

import (
	"fmt"
	"log/slog"
	"time"
)

// Config настройки машины состояний.
type Config struct {
	// SpeakerVolume громкость динамика, которая передается AG сразу после SLC (0..15)
	SpeakerVolume int
	// MicVolume усиление микрофона, которое передается AG сразу после SLC (0..15)
	MicVolume int
	// QueryCallsRetryDelay задержка повторного +CLCC при неоднозначном состоянии
	QueryCallsRetryDelay time.Duration
	// NarrowbandSampleRate частота дискретизации для CVSD
	NarrowbandSampleRate int
	// WidebandSampleRate частота дискретизации для mSBC
	WidebandSampleRate int
	// HistorySize сколько переходов состояний хранить для отладки
	HistorySize int
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		SpeakerVolume:        8,
		MicVolume:            8,
		QueryCallsRetryDelay: 1500 * time.Millisecond,
		NarrowbandSampleRate: 8000,
		WidebandSampleRate:   16000,
		HistorySize:          20,
	}
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	if c.SpeakerVolume < 0 || c.SpeakerVolume > 15 {
		return fmt.Errorf("громкость динамика вне диапазона 0..15: %d", c.SpeakerVolume)
	}
	if c.MicVolume < 0 || c.MicVolume > 15 {
		return fmt.Errorf("усиление микрофона вне диапазона 0..15: %d", c.MicVolume)
	}
	if c.QueryCallsRetryDelay <= 0 {
		return fmt.Errorf("некорректная задержка повторного опроса: %s", c.QueryCallsRetryDelay)
	}
	if c.NarrowbandSampleRate <= 0 || c.WidebandSampleRate <= 0 {
		return fmt.Errorf("некорректная частота дискретизации: %d/%d", c.NarrowbandSampleRate, c.WidebandSampleRate)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("некорректный размер истории: %d", c.HistorySize)
	}
	return nil
}

// Option настраивает Machine.
type Option func(*Machine)

// WithConfig задает конфигурацию.
func WithConfig(cfg *Config) Option {
	return func(m *Machine) {
		if cfg != nil {
			m.cfg = cfg
		}
	}
}

// WithLogger задает логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.baseLog = logger
		}
	}
}

// WithAudioRouter задает маршрутизатор звука.
func WithAudioRouter(r AudioRouter) Option {
	return func(m *Machine) {
		if r != nil {
			m.audio = r
		}
	}
}

// WithConnectPolicy задает политику приема входящих подключений.
func WithConnectPolicy(p ConnectPolicy) Option {
	return func(m *Machine) {
		if p != nil {
			m.policy = p
		}
	}
}

// WithProfileRedirect задает обработчик отклоненного входящего подключения:
// устройство, которому отказали, можно направить на другой профиль.
func WithProfileRedirect(f func(dev Device)) Option {
	return func(m *Machine) {
		m.redirect = f
	}
}

// WithScheduler подменяет источник отложенных вызовов.
func WithScheduler(s Scheduler) Option {
	return func(m *Machine) {
		if s != nil {
			m.scheduler = s
		}
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMetrics подключает сборщик метрик.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Machine) {
		m.metrics = metrics
	}
}

// WithListener подписывает получателя уведомлений.
func WithListener(l Listener) Option {
	return func(m *Machine) {
		m.broadcaster.Subscribe(l)
	}
}

// WithSessionIDs подменяет генератор идентификаторов сессий.
func WithSessionIDs(gen func() string) Option {
	return func(m *Machine) {
		if gen != nil {
			m.newSession = gen
		}
	}
}
