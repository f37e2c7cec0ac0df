package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/internal/config"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() model.CheckResult {
	state := model.NewAlertState()
	state.FiveHourAlerted = []int{75}
	return model.CheckResult{
		ID:                "c1",
		Checked:           true,
		Outcome:           model.OutcomeOK,
		FiveHourPercent:   81,
		WeeklyPercent:     40,
		ThresholdsCrossed: 1,
		NotificationsSent: 1,
		Alerts:            []string{"Claude 5-hour usage at 81%"},
		State:             state,
	}
}

func TestWriteResult_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "text", sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "Outcome:       ok")
	assert.Contains(t, out, "5-hour usage:  81%")
	assert.Contains(t, out, "Notified:      1/1")
	assert.Contains(t, out, "  - Claude 5-hour usage at 81%")
	assert.NotContains(t, out, "Error:")
}

func TestWriteResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "json", sampleResult()))

	var decoded model.CheckResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 81, decoded.FiveHourPercent)
	assert.Equal(t, []int{75}, decoded.State.FiveHourAlerted)
}

func TestWriteResult_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "yaml", sampleResult()))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ok", decoded["outcome"])
	assert.Equal(t, 81, decoded["five_hour_percent"])
}

func TestWriteResult_UnknownFormat(t *testing.T) {
	assert.Error(t, writeResult(&bytes.Buffer{}, "xml", sampleResult()))
}

func TestWriteState(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	reset := now.Add(2 * time.Hour)
	state := model.NewAlertState()
	state.FiveHourAlerted = []int{75, 90}
	state.FiveHourResetAt = &reset

	var buf bytes.Buffer
	writeState(&buf, state, now)

	out := buf.String()
	assert.Contains(t, out, "5-hour window")
	assert.Contains(t, out, "Weekly window")
	assert.Contains(t, out, "Alerted:  75%, 90%")
	assert.Contains(t, out, "2 hours from now")
	assert.Contains(t, out, "Last check:      never")
}

func TestPlotHistory(t *testing.T) {
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	records := []model.CheckRecord{
		{CheckedAt: base.Add(2 * time.Hour), Outcome: model.OutcomeOK, FiveHourPercent: 60, WeeklyPercent: 30},
		{CheckedAt: base.Add(time.Hour), Outcome: model.OutcomeFetchFailed},
		{CheckedAt: base, Outcome: model.OutcomeOK, FiveHourPercent: 20, WeeklyPercent: 25},
	}

	chart := plotHistory(records, 5)
	assert.Contains(t, chart, "usage %")
	assert.Greater(t, len(strings.Split(chart, "\n")), 5)

	assert.Equal(t, "No successful checks to plot.", plotHistory(records[1:2], 5))
}

func TestInitStore(t *testing.T) {
	dir := t.TempDir()

	cfg := &config.Config{Storage: config.StorageConfig{Backend: "file", Path: dir + "/state.json"}}
	store, history, err := initStore(cfg)
	require.NoError(t, err)
	assert.Equal(t, "file", store.Name())
	assert.Nil(t, history)

	cfg.Storage = config.StorageConfig{Backend: "sqlite", SQLitePath: dir + "/lqg.db"}
	store, history, err = initStore(cfg)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "sqlite", store.Name())
	assert.NotNil(t, history)

	cfg.Storage = config.StorageConfig{Backend: "redis"}
	_, _, err = initStore(cfg)
	assert.Error(t, err)
}

func TestInitNotifiers(t *testing.T) {
	cfg := &config.Config{}
	assert.Empty(t, initNotifiers(cfg))

	cfg.Alerts.Slack = config.SlackConfig{Enabled: true, WebhookURL: "https://hooks.slack.com/x"}
	cfg.Alerts.Webhook = config.WebhookConfig{Enabled: true}
	cfg.Alerts.Telegram = config.TelegramConfig{Enabled: true, BotToken: "1:a", ChatID: "2"}
	cfg.Alerts.Desktop = config.DesktopConfig{Enabled: true}

	var names []string
	for _, n := range initNotifiers(cfg) {
		names = append(names, n.Name())
	}
	assert.Equal(t, []string{"slack", "telegram", "desktop"}, names)
}
