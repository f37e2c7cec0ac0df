package engine

import (
	"fmt"
	"html"
	"time"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/alerts"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
)

// Severity maps a threshold to its message marker and alert level.
func Severity(threshold int) (string, alerts.AlertLevel) {
	switch {
	case threshold >= 100:
		return "🚨", alerts.AlertCritical
	case threshold >= 95:
		return "🔴", alerts.AlertHigh
	case threshold >= 90:
		return "🟠", alerts.AlertElevated
	case threshold >= 75:
		return "🟡", alerts.AlertNotice
	default:
		return "📊", alerts.AlertInfo
	}
}

// FormatUntil renders the time left until a window resets, e.g. "2h 15m" or "3d 4h".
func FormatUntil(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}

	d = d.Round(time.Minute)
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

func resetText(resetAt *time.Time, now time.Time) string {
	if resetAt == nil {
		return "Reset time unknown"
	}
	if !resetAt.After(now) {
		return "Resetting now"
	}
	return "Resets in " + FormatUntil(resetAt.Sub(now))
}

// ThresholdAlert builds the notification for a threshold crossing.
func ThresholdAlert(c Crossing, now time.Time) alerts.Alert {
	marker, level := Severity(c.Threshold)
	title := fmt.Sprintf("Claude %s usage at %d%%", c.Window.Label(), c.Percent)
	return alerts.Alert{
		Kind:      alerts.KindThreshold,
		Level:     level,
		Window:    c.Window.Label(),
		Threshold: c.Threshold,
		Percent:   c.Percent,
		Title:     title,
		Text: fmt.Sprintf("%s <b>%s</b>\nCrossed %d%% threshold. %s",
			marker, title, c.Threshold, resetText(c.ResetAt, now)),
	}
}

// AuthAlert builds the notification for a credential outage.
func AuthAlert(outcome model.Outcome, cause error) alerts.Alert {
	title := "Claude usage credentials unavailable"
	detail := "No usable credential after a forced refresh."
	if outcome == model.OutcomeAuthRejected {
		title = "Claude usage credentials rejected"
		detail = "The usage API rejected the credential again after a forced refresh."
	}

	text := fmt.Sprintf("⚠️ <b>%s</b>\n%s Usage alerts are paused until credentials are renewed.", title, detail)
	if cause != nil {
		text += fmt.Sprintf("\n<code>%s</code>", html.EscapeString(cause.Error()))
	}
	return alerts.Alert{
		Kind:  alerts.KindAuth,
		Level: alerts.AlertCritical,
		Title: title,
		Text:  text,
	}
}
