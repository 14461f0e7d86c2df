// Package notify delivers user-facing notifications.
package notify

import "github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/log"

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger log.Logger
}

// NewLogNotifier returns a notifier that logs at info level.
func NewLogNotifier(logger log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(title, message string) {
	n.logger.Info(map[string]any{"title": title, "notification": true}, message)
}
