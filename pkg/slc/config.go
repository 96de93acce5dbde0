package slc

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/arzzra/handsfree/pkg/at"
)

// HFFeatures возможности HF, которые сообщаются AG в AT+BRSF.
type HFFeatures int

const (
	HFFeatureECNR         HFFeatures = 1 << 0
	HFFeature3Way         HFFeatures = 1 << 1
	HFFeatureCLI          HFFeatures = 1 << 2
	HFFeatureVoiceRecog   HFFeatures = 1 << 3
	HFFeatureRemoteVolume HFFeatures = 1 << 4
	HFFeatureECS          HFFeatures = 1 << 5
	HFFeatureECC          HFFeatures = 1 << 6
	HFFeatureCodecNegot   HFFeatures = 1 << 7
)

// DefaultHFFeatures набор, который поддерживает движок вызовов.
const DefaultHFFeatures = HFFeature3Way | HFFeatureCLI | HFFeatureVoiceRecog |
	HFFeatureRemoteVolume | HFFeatureECS | HFFeatureECC

// Config настройки канала управления.
type Config struct {
	// Features возможности HF для AT+BRSF
	Features HFFeatures
	// Charset кодировка строковых полей AG
	Charset at.Charset
	// DialTimeout ограничение на установку байтового потока
	DialTimeout time.Duration
	// CommandTimeout сколько ждать итогового результата команды
	CommandTimeout time.Duration
	// QueueSize сколько команд может ждать отправки
	QueueSize int
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		Features:       DefaultHFFeatures,
		Charset:        at.CharsetUTF8,
		DialTimeout:    10 * time.Second,
		CommandTimeout: 5 * time.Second,
		QueueSize:      32,
	}
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	if c.DialTimeout <= 0 {
		return errors.Errorf("slc: некорректный таймаут подключения %s", c.DialTimeout)
	}
	if c.CommandTimeout <= 0 {
		return errors.Errorf("slc: некорректный таймаут команды %s", c.CommandTimeout)
	}
	if c.QueueSize <= 0 {
		return errors.Errorf("slc: некорректный размер очереди %d", c.QueueSize)
	}
	if _, err := at.ParseCharset(string(c.Charset)); err != nil {
		return err
	}
	return nil
}

// Option настраивает Link.
type Option func(*Link)

// WithConfig задает конфигурацию.
func WithConfig(cfg *Config) Option {
	return func(l *Link) {
		if cfg != nil {
			l.cfg = cfg
		}
	}
}

// WithLogger задает логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Link) {
		if logger != nil {
			l.log = logger
		}
	}
}

// WithAudio подключает управление SCO.
func WithAudio(a AudioLink) Option {
	return func(l *Link) {
		l.audio = a
	}
}
