package alerts

import (
	"context"
	"html"
	"regexp"
	"strings"
)

// AlertLevel indicates the severity of a usage alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"     // Below every named band
	AlertNotice   AlertLevel = "notice"   // 75% and above
	AlertElevated AlertLevel = "elevated" // 90% and above
	AlertHigh     AlertLevel = "high"     // 95% and above
	AlertCritical AlertLevel = "critical" // Quota exhausted, or credentials unusable
)

// AlertKind distinguishes threshold crossings from credential outages.
type AlertKind string

const (
	KindThreshold AlertKind = "threshold"
	KindAuth      AlertKind = "auth"
)

// Alert is one outbound notification. Text may contain simple HTML markup
// (<b>, <i>, <code>); senders that cannot render it convert or strip it.
type Alert struct {
	Kind      AlertKind  `json:"kind"`
	Level     AlertLevel `json:"level"`
	Window    string     `json:"window,omitempty"`
	Threshold int        `json:"threshold,omitempty"`
	Percent   int        `json:"percent,omitempty"`
	Title     string     `json:"title"`
	Text      string     `json:"text"`
}

// Notifier sends alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert. Implementations must be safe for concurrent use.
	Send(ctx context.Context, alert Alert) error
}

var tagPattern = regexp.MustCompile(`</?[a-zA-Z]+[^>]*>`)

// PlainText strips markup from alert text.
func PlainText(text string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(text, ""))
}

var markdownReplacer = strings.NewReplacer(
	"<b>", "*", "</b>", "*",
	"<i>", "_", "</i>", "_",
	"<code>", "`", "</code>", "`",
)

// Slack mrkdwn keeps &, < and > escaped; every other entity is decoded.
var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// slackText converts the supported markup to Slack mrkdwn.
func slackText(text string) string {
	return slackEscaper.Replace(html.UnescapeString(markdownReplacer.Replace(text)))
}
