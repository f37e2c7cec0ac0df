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

func TestWebhookNotifier_Name(t *testing.T) {
	n := alerts.NewWebhookNotifier("https://example.com/webhook", "")
	assert.Equal(t, "webhook", n.Name())
}

func TestWebhookNotifier_Send(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "LLM-Quota-Guardian/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, http.MethodPost, r.Method)

		err := json.NewDecoder(r.Body).Decode(&received)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "")
	alert := alerts.Alert{
		Kind:      alerts.KindThreshold,
		Level:     alerts.AlertHigh,
		Window:    "weekly",
		Threshold: 95,
		Percent:   96,
		Title:     "Weekly usage at 96%",
		Text:      "<b>Weekly usage at 96%</b> &amp; rising",
	}

	err := n.Send(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, "quota.threshold_crossed", received["event"])
	assert.NotEmpty(t, received["timestamp"])
	assert.Equal(t, "Weekly usage at 96% & rising", received["text"])
	assert.Equal(t, "weekly", received["window"])
	assert.Equal(t, float64(95), received["threshold"])
	assert.Equal(t, float64(96), received["percent"])
	assert.Equal(t, "high", received["level"])
	assert.Equal(t, "Weekly usage at 96%", received["title"])
}

func TestWebhookNotifier_Send_AuthFailure(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "")
	err := n.Send(context.Background(), alerts.Alert{
		Kind:  alerts.KindAuth,
		Level: alerts.AlertCritical,
		Title: "Claude usage credentials rejected",
		Text:  "<b>Claude usage credentials rejected</b>\n<code>status 401</code>",
	})
	require.NoError(t, err)
	assert.Equal(t, "quota.auth_failure", received["event"])
	assert.Equal(t, "critical", received["level"])
	assert.NotContains(t, received, "window")
	assert.NotContains(t, received, "threshold")
	assert.NotContains(t, received, "percent")
}

func TestWebhookNotifier_Send_ZeroPercentKept(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "")
	err := n.Send(context.Background(), alerts.Alert{
		Kind:      alerts.KindThreshold,
		Level:     alerts.AlertInfo,
		Window:    "5-hour",
		Threshold: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(0), received["percent"])
}

func TestWebhookNotifier_Send_WithHMAC(t *testing.T) {
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get("X-Signature-256")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "test-secret")
	err := n.Send(context.Background(), alerts.Alert{Level: alerts.AlertNotice})
	require.NoError(t, err)
	assert.True(t, len(signature) > 0)
	assert.Contains(t, signature, "sha256=")
}

func TestWebhookNotifier_Send_NoHMAC(t *testing.T) {
	var hasSignature bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasSignature = r.Header.Get("X-Signature-256") != ""
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "")
	err := n.Send(context.Background(), alerts.Alert{Level: alerts.AlertNotice})
	require.NoError(t, err)
	assert.False(t, hasSignature)
}

func TestWebhookNotifier_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "")
	err := n.Send(context.Background(), alerts.Alert{Level: alerts.AlertNotice})
	assert.Error(t, err)
}
