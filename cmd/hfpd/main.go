// hfpd демон Hands-Free: держит SLC с телефоном, ведет журнал вызовов и отдает метрики.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arzzra/handsfree/pkg/bluez"
	"github.com/arzzra/handsfree/pkg/calllog"
	"github.com/arzzra/handsfree/pkg/config"
	"github.com/arzzra/handsfree/pkg/handsfree"
	"github.com/arzzra/handsfree/pkg/rfcomm"
	"github.com/arzzra/handsfree/pkg/slc"
)

func main() {
	var (
		configPath = flag.String("config", "", "Путь к YAML конфигурации")
		device     = flag.String("device", "", "Адрес AG, переопределяет config")
		logLevel   = flag.String("log-level", "", "Уровень лога: debug, info, warn, error")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
			os.Exit(1)
		}
		cfg = loaded
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger, err := newLogger(cfg)
	if err != nil {
		slog.Error("Ошибка настройки лога", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("hfpd завершился с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("hfpd остановлен")
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	linkCfg, err := cfg.LinkConfig()
	if err != nil {
		return err
	}

	var (
		dialer  slc.Dialer
		profile *bluez.Profile
	)
	switch cfg.Transport {
	case config.TransportBlueZ:
		profile = bluez.New(cfg.Adapter, logger)
		if err := profile.Register(int(linkCfg.Features)); err != nil {
			return err
		}
		defer profile.Close()
		dialer = profile
	case config.TransportRFCOMM:
		dialer = rfcomm.SocketDialer{Channel: cfg.RFCOMM.Channel}
	case config.TransportSerial:
		dialer = rfcomm.SerialDialer{Path: cfg.Serial.Path, Baud: cfg.Serial.Baud}
	}

	link, err := slc.New(dialer, slc.WithConfig(linkCfg), slc.WithLogger(logger))
	if err != nil {
		return err
	}
	defer link.Close()

	opts := []handsfree.Option{
		handsfree.WithConfig(cfg.HandsfreeConfig()),
		handsfree.WithLogger(logger),
		handsfree.WithMetrics(handsfree.NewMetrics(&handsfree.MetricsConfig{Namespace: "hfp", Registerer: reg})),
		handsfree.WithListener(handsfree.NewLoggingListener(logger)),
	}
	if cfg.CallLog.DSN != "" {
		store, err := calllog.Open(cfg.CallLog.DSN, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, handsfree.WithConnectPolicy(store), handsfree.WithListener(store))
	}

	machine, err := handsfree.New(link, opts...)
	if err != nil {
		return err
	}
	link.SetSink(machine)
	if profile != nil {
		profile.OnInbound(func(dev handsfree.Device, conn io.ReadWriteCloser) {
			if err := link.Attach(dev, conn); err != nil {
				logger.Warn("входящее соединение отклонено", slog.String("peer", dev.Address), slog.String("error", err.Error()))
			}
		})
	}

	if cfg.Metrics.Listen != "" {
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: metricsMux(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("метрики доступны", slog.String("addr", cfg.Metrics.Listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP сервер метрик", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	done := make(chan error, 1)
	go func() { done <- machine.Run(ctx) }()

	svc := handsfree.NewService(machine)
	if cfg.Device != "" {
		dev := handsfree.Device{Address: cfg.Device}
		if err := svc.Connect(dev); err != nil {
			logger.Error("Ошибка подключения", slog.String("device", dev.Address), slog.String("error", err.Error()))
		}
	} else {
		logger.Info("устройство не задано, ожидаем входящих подключений")
	}

	return <-done
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
