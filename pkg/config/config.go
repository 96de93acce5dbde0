// Package config конфигурация демона hfpd в YAML.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/arzzra/handsfree/pkg/at"
	"github.com/arzzra/handsfree/pkg/handsfree"
	"github.com/arzzra/handsfree/pkg/slc"
)

// Виды транспорта до AG.
const (
	TransportBlueZ  = "bluez"
	TransportRFCOMM = "rfcomm"
	TransportSerial = "serial"
)

type Config struct {
	// Adapter адаптер BlueZ, например hci0
	Adapter   string `yaml:"adapter"`
	Transport string `yaml:"transport"`
	// Device адрес AG, к которому подключаться при старте
	Device string `yaml:"device"`

	RFCOMM  RFCOMMConfig  `yaml:"rfcomm"`
	Serial  SerialConfig  `yaml:"serial"`
	Link    LinkConfig    `yaml:"link"`
	Engine  EngineConfig  `yaml:"engine"`
	CallLog CallLogConfig `yaml:"calllog"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type RFCOMMConfig struct {
	Channel uint8 `yaml:"channel"`
}

type SerialConfig struct {
	Path string `yaml:"path"`
	Baud int    `yaml:"baud"`
}

type LinkConfig struct {
	Charset          string        `yaml:"charset"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	CommandTimeout   time.Duration `yaml:"command_timeout"`
	QueueSize        int           `yaml:"queue_size"`
	CodecNegotiation bool          `yaml:"codec_negotiation"`
}

type EngineConfig struct {
	SpeakerVolume        int           `yaml:"speaker_volume"`
	MicVolume            int           `yaml:"mic_volume"`
	QueryCallsRetryDelay time.Duration `yaml:"query_calls_retry_delay"`
	HistorySize          int           `yaml:"history_size"`
}

type CallLogConfig struct {
	// DSN путь к базе SQLite; пустая строка отключает журнал
	DSN string `yaml:"dsn"`
}

type MetricsConfig struct {
	// Listen адрес HTTP для /metrics; пустая строка отключает
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default конфигурация по умолчанию.
func Default() *Config {
	engine := handsfree.DefaultConfig()
	link := slc.DefaultConfig()
	return &Config{
		Adapter:   "hci0",
		Transport: TransportBlueZ,
		RFCOMM:    RFCOMMConfig{Channel: 1},
		Serial:    SerialConfig{Path: "/dev/rfcomm0", Baud: 115200},
		Link: LinkConfig{
			Charset:        string(link.Charset),
			DialTimeout:    link.DialTimeout,
			CommandTimeout: link.CommandTimeout,
			QueueSize:      link.QueueSize,
		},
		Engine: EngineConfig{
			SpeakerVolume:        engine.SpeakerVolume,
			MicVolume:            engine.MicVolume,
			QueryCallsRetryDelay: engine.QueryCallsRetryDelay,
			HistorySize:          engine.HistorySize,
		},
		CallLog: CallLogConfig{DSN: "hfpd.db"},
		Metrics: MetricsConfig{Listen: ":9101"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load читает файл поверх значений по умолчанию.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: чтение")
	}
	return Parse(data)
}

// Parse разбирает YAML поверх значений по умолчанию и проверяет результат.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "config: yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportBlueZ:
	case TransportRFCOMM:
		if c.RFCOMM.Channel == 0 || c.RFCOMM.Channel > 30 {
			return errors.Errorf("config: канал RFCOMM вне диапазона 1..30: %d", c.RFCOMM.Channel)
		}
	case TransportSerial:
		if c.Serial.Path == "" {
			return errors.New("config: не задан serial.path")
		}
	default:
		return errors.Errorf("config: неизвестный транспорт %q", c.Transport)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("config: неизвестный формат лога %q", c.Log.Format)
	}
	if err := c.HandsfreeConfig().Validate(); err != nil {
		return errors.Wrap(err, "config: engine")
	}
	if _, err := c.LinkConfig(); err != nil {
		return err
	}
	return nil
}

// HandsfreeConfig настройки машины состояний.
func (c *Config) HandsfreeConfig() *handsfree.Config {
	cfg := handsfree.DefaultConfig()
	cfg.SpeakerVolume = c.Engine.SpeakerVolume
	cfg.MicVolume = c.Engine.MicVolume
	cfg.QueryCallsRetryDelay = c.Engine.QueryCallsRetryDelay
	cfg.HistorySize = c.Engine.HistorySize
	return cfg
}

// LinkConfig настройки канала управления.
func (c *Config) LinkConfig() (*slc.Config, error) {
	charset, err := at.ParseCharset(c.Link.Charset)
	if err != nil {
		return nil, errors.Wrap(err, "config: link")
	}
	cfg := slc.DefaultConfig()
	cfg.Charset = charset
	cfg.DialTimeout = c.Link.DialTimeout
	cfg.CommandTimeout = c.Link.CommandTimeout
	cfg.QueueSize = c.Link.QueueSize
	if c.Link.CodecNegotiation {
		cfg.Features |= slc.HFFeatureCodecNegot
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config: link")
	}
	return cfg, nil
}

// SlogLevel уровень логирования.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Errorf("config: неизвестный уровень лога %q", c.Log.Level)
}
