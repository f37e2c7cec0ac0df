package alerts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/alerts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackNotifier_Name(t *testing.T) {
	n := alerts.NewSlackNotifier("https://hooks.slack.com/test", "#test")
	assert.Equal(t, "slack", n.Name())
}

func TestSlackNotifier_Send(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, http.MethodPost, r.Method)

		err := json.NewDecoder(r.Body).Decode(&received)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewSlackNotifier(server.URL, "#llm-quota")

	alert := alerts.Alert{
		Kind:      alerts.KindThreshold,
		Level:     alerts.AlertNotice,
		Window:    "5-hour",
		Threshold: 75,
		Percent:   80,
		Title:     "5-hour usage at 80%",
		Text:      "<b>5-hour usage at 80%</b>\nResets in 2h 15m",
	}

	err := n.Send(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, "#llm-quota", received["channel"])

	attachments, ok := received["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)
	first := attachments[0].(map[string]any)
	assert.Equal(t, "*5-hour usage at 80%*\nResets in 2h 15m", first["text"])
	assert.Len(t, first["fields"], 4)
}

func TestSlackNotifier_Send_KeepsControlCharactersEscaped(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewSlackNotifier(server.URL, "#llm-quota")
	err := n.Send(context.Background(), alerts.Alert{
		Kind:  alerts.KindAuth,
		Level: alerts.AlertCritical,
		Title: "Claude usage credentials rejected",
		Text:  "<b>Claude usage credentials rejected</b>\n<code>&lt;https://evil.example|click&gt;</code>",
	})
	require.NoError(t, err)

	first := received["attachments"].([]any)[0].(map[string]any)
	assert.Equal(t, "*Claude usage credentials rejected*\n`&lt;https://evil.example|click&gt;`", first["text"])
}

func TestSlackNotifier_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := alerts.NewSlackNotifier(server.URL, "#test")
	err := n.Send(context.Background(), alerts.Alert{Level: alerts.AlertNotice})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSlackNotifier_AlertLevelColors(t *testing.T) {
	tests := []struct {
		level alerts.AlertLevel
		color string
	}{
		{alerts.AlertInfo, "#439fe0"},
		{alerts.AlertNotice, "#36a64f"},
		{alerts.AlertElevated, "#ffcc00"},
		{alerts.AlertHigh, "#ff9900"},
		{alerts.AlertCritical, "#ff0000"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var received map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&received)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			n := alerts.NewSlackNotifier(server.URL, "#test")
			err := n.Send(context.Background(), alerts.Alert{
				Kind:  alerts.KindAuth,
				Level: tt.level,
			})
			require.NoError(t, err)
			first := received["attachments"].([]any)[0].(map[string]any)
			assert.Equal(t, tt.color, first["color"])
		})
	}
}
