package notify

import (
	"github.com/sirupsen/logrus"
)

// LoggingNotifier logs a Notification instead of delivering it
// anywhere, used for --dry-run and for deployments with no webhook
// configured.
type LoggingNotifier struct {
	log *logrus.Logger
}

// NewLoggingNotifier wraps log.
func NewLoggingNotifier(log *logrus.Logger) *LoggingNotifier {
	return &LoggingNotifier{log: log}
}

// Emit logs n at warn level for Red/Orange severities and info
// otherwise.
func (l *LoggingNotifier) Emit(n Notification) error {
	entry := l.log.WithField("severity", n.SeverityColor).WithField("fields", n.Fields)
	switch n.SeverityColor {
	case Red, Orange:
		entry.Warn(n.Title)
	default:
		entry.Info(n.Title)
	}
	return nil
}
