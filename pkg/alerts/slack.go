package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier sends alerts to a Slack webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, alert Alert) error {
	color := "#439fe0" // blue
	switch alert.Level {
	case AlertNotice:
		color = "#36a64f" // green
	case AlertElevated:
		color = "#ffcc00" // yellow
	case AlertHigh:
		color = "#ff9900" // orange
	case AlertCritical:
		color = "#ff0000" // red
	}

	fields := []slackField{{Title: "Level", Value: string(alert.Level), Short: true}}
	if alert.Kind == KindThreshold {
		fields = append(fields,
			slackField{Title: "Window", Value: alert.Window, Short: true},
			slackField{Title: "Usage", Value: fmt.Sprintf("%d%%", alert.Percent), Short: true},
			slackField{Title: "Threshold", Value: fmt.Sprintf("%d%%", alert.Threshold), Short: true},
		)
	}

	payload := slackPayload{
		Channel: s.channel,
		Attachments: []slackAttachment{
			{
				Color:    color,
				Title:    alert.Title,
				Text:     slackText(alert.Text),
				Fields:   fields,
				Footer:   "LLM Quota Guardian",
				Ts:       time.Now().Unix(),
				Markdown: []string{"text"},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color    string       `json:"color"`
	Title    string       `json:"title"`
	Text     string       `json:"text"`
	Fields   []slackField `json:"fields"`
	Footer   string       `json:"footer"`
	Ts       int64        `json:"ts"`
	Markdown []string     `json:"mrkdwn_in,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
