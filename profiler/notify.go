package profiler

import (
	"context"

	"github.com/volcengine/apminsight-tick-profiler-go/profiler/logger"
)

// Notifier delivers a report out of band, e.g. by mail or a message queue.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

type NotifierFunc func(ctx context.Context, subject, body string) error

func (f NotifierFunc) Notify(ctx context.Context, subject, body string) error {
	return f(ctx, subject, body)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger logger.Logger
}

func (n *LogNotifier) Notify(_ context.Context, subject, body string) error {
	n.Logger.Info("[notify] %s\n%s", subject, body)
	return nil
}
