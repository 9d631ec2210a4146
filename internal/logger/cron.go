package logger

import (
	"go.uber.org/zap"
)

// CronLogger adapts zap to the robfig/cron Logger interface.
type CronLogger struct {
	logger *zap.SugaredLogger
}

// NewCronLogger wraps l. Cron's routine Info messages are logged at debug,
// except skipped runs, which are logged at warn.
func NewCronLogger(l *zap.Logger) *CronLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &CronLogger{logger: l.Named("cron").Sugar()}
}

func (c *CronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		c.logger.Warnw("job still running, skipping scheduled run", keysAndValues...)
		return
	}
	c.logger.Debugw(msg, keysAndValues...)
}

func (c *CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
