package alerts

import (
	"context"
	"log/slog"
)

// Dispatcher fans one alert out to every configured notifier.
type Dispatcher struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher over notifiers.
func NewDispatcher(notifiers []Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		logger:    logger,
	}
}

// Notifiers returns the names of the configured notifiers.
func (d *Dispatcher) Notifiers() []string {
	names := make([]string, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// Deliver sends alert through every notifier and reports whether at least one
// accepted it. A failing notifier never stops the others.
func (d *Dispatcher) Deliver(ctx context.Context, alert Alert) bool {
	if len(d.notifiers) == 0 {
		d.logger.Warn("no notifiers configured, alert dropped", "title", alert.Title)
		return false
	}

	delivered := false
	for _, notifier := range d.notifiers {
		if err := notifier.Send(ctx, alert); err != nil {
			d.logger.Error("send alert failed",
				"notifier", notifier.Name(),
				"kind", alert.Kind,
				"level", alert.Level,
				"error", err,
			)
			continue
		}
		delivered = true
	}
	return delivered
}
