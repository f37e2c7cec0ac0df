package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAlertState_Empty(t *testing.T) {
	s := model.NewAlertState()
	assert.Empty(t, s.FiveHourAlerted)
	assert.NotNil(t, s.FiveHourAlerted)
	assert.Empty(t, s.WeeklyAlerted)
	assert.Nil(t, s.FiveHourResetAt)
	assert.Nil(t, s.LastCheck)
	assert.False(t, s.AuthErrorAlerted)
}

func TestAlertState_WindowAccessors(t *testing.T) {
	s := model.NewAlertState()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.SetAlerted(model.WindowWeekly, []int{50})
	s.SetResetAt(model.WindowFiveHour, &t0)

	assert.Equal(t, []int{50}, s.Alerted(model.WindowWeekly))
	assert.Empty(t, s.Alerted(model.WindowFiveHour))
	assert.True(t, s.HasAlerted(model.WindowWeekly, 50))
	assert.False(t, s.HasAlerted(model.WindowFiveHour, 50))
	require.NotNil(t, s.ResetAt(model.WindowFiveHour))
	assert.True(t, t0.Equal(*s.ResetAt(model.WindowFiveHour)))
	assert.Nil(t, s.ResetAt(model.WindowWeekly))
}

func TestAlertState_CloneDoesNotAlias(t *testing.T) {
	s := model.NewAlertState()
	s.FiveHourAlerted = []int{75}
	c := s.Clone()
	c.FiveHourAlerted[0] = 90
	assert.Equal(t, []int{75}, s.FiveHourAlerted)
}

func TestAlertState_Normalize(t *testing.T) {
	s := model.AlertState{FiveHourAlerted: []int{95, 75, 95}}
	n := s.Normalize()
	assert.Equal(t, []int{75, 95}, n.FiveHourAlerted)
	assert.Equal(t, []int{}, n.WeeklyAlerted)
}

func TestAlertState_JSONLayout(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := model.NewAlertState()
	s.WeeklyAlerted = []int{50, 75}
	s.WeeklyResetAt = &t0

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "2026-03-01T12:00:00Z", raw["weeklyResetAt"])
	assert.Nil(t, raw["fiveHourResetAt"])
	assert.Nil(t, raw["lastAuthError"])
	assert.Equal(t, false, raw["authErrorAlerted"])
	assert.Len(t, raw["weeklyAlerted"], 2)
}

func TestOutcome_IsAuthFailure(t *testing.T) {
	assert.True(t, model.OutcomeCredentialUnavailable.IsAuthFailure())
	assert.True(t, model.OutcomeAuthRejected.IsAuthFailure())
	assert.False(t, model.OutcomeFetchFailed.IsAuthFailure())
	assert.False(t, model.OutcomeOK.IsAuthFailure())
}

func TestUsageSnapshot_Accessors(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := model.UsageSnapshot{FiveHourPercent: 40, WeeklyPercent: 60, WeeklyResetAt: &t0}
	assert.Equal(t, 40, s.Percent(model.WindowFiveHour))
	assert.Equal(t, 60, s.Percent(model.WindowWeekly))
	assert.Nil(t, s.ResetAt(model.WindowFiveHour))
	assert.Equal(t, &t0, s.ResetAt(model.WindowWeekly))
	assert.Equal(t, "5-hour", model.WindowFiveHour.Label())
}
