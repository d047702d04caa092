package logger

import (
	"github.com/sirupsen/logrus"
)

// TickHook stamps every entry with the host tick it was logged on.
type TickHook struct {
	now    func() int64
	levels []logrus.Level
}

func NewTickHook(now func() int64, levels []logrus.Level) logrus.Hook {
	if len(levels) == 0 {
		levels = logrus.AllLevels
	}
	return &TickHook{now: now, levels: levels}
}

func (h *TickHook) Levels() []logrus.Level {
	return h.levels
}

func (h *TickHook) Fire(e *logrus.Entry) error {
	if e == nil || h.now == nil {
		return nil
	}
	e.Data["tick"] = h.now()
	return nil
}
