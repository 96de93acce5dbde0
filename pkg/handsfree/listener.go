package handsfree

import "log/slog"

// LoggingListener пишет уведомления в лог.
type LoggingListener struct {
	log *slog.Logger
}

// NewLoggingListener создает слушателя; nil логгер означает slog.Default().
func NewLoggingListener(logger *slog.Logger) *LoggingListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingListener{log: logger.With(slog.String("component", "hfp-events"))}
}

func (l *LoggingListener) OnNotification(n Notification) {
	name := slog.String("notification", NotificationName(n))
	switch n := n.(type) {
	case ConnectionStateChanged:
		l.log.Info("подключение", name,
			slog.String("device", n.Device.Address),
			slog.String("state", n.State.String()),
			slog.String("previous", n.Previous.String()))
	case AudioStateChanged:
		l.log.Info("аудио", name,
			slog.String("device", n.Device.Address),
			slog.String("state", n.State.String()),
			slog.Bool("wideband", n.Wideband))
	case CallChanged:
		l.log.Info("вызов", name,
			slog.Int("id", n.Call.ID),
			slog.String("state", n.Call.State.String()),
			slog.String("number", n.Call.Number),
			slog.Bool("multiparty", n.Call.MultiParty),
			slog.Bool("outgoing", n.Call.Outgoing))
	case AgEventChanged:
		l.log.Debug("индикатор AG", name, slog.String("kind", n.Kind.String()))
	case ActionResult:
		l.log.Warn("команда отклонена", name,
			slog.String("action", n.Action.String()),
			slog.String("code", n.Code.String()),
			slog.Int("cme", n.CmeError))
	default:
		l.log.Debug("уведомление", name)
	}
}
