package alerts

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"
)

// DesktopNotifier raises a native desktop notification on the host running the check.
type DesktopNotifier struct {
	notify func(title, message string) error
}

// NewDesktopNotifier creates a desktop notifier.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (d *DesktopNotifier) Name() string { return "desktop" }

func (d *DesktopNotifier) Send(_ context.Context, alert Alert) error {
	if err := d.notify(alert.Title, PlainText(alert.Text)); err != nil {
		return fmt.Errorf("desktop notify: %w", err)
	}
	return nil
}
