package store

import "go.uber.org/zap"

// Notifier receives user-visible outcome notifications from the stores.
// Implementations must not panic; stores call it on their own goroutines.
type Notifier interface {
	Success(op string, msg string)
	Error(op string, msg string)
}

// LogNotifier routes notifications to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(op, msg string) {
	n.logger.Info("notification", zap.String("op", op), zap.String("msg", msg))
}

func (n *LogNotifier) Error(op, msg string) {
	n.logger.Error("notification", zap.String("op", op), zap.String("msg", msg))
}
