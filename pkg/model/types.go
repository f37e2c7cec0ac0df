package model

import (
	"slices"
	"time"

	"github.com/samber/lo"
)

// Window identifies one of the two independently tracked quota windows.
type Window string

const (
	WindowFiveHour Window = "five_hour" // Rolling 5-hour window
	WindowWeekly   Window = "weekly"    // Rolling 7-day window
)

// Windows lists the tracked windows in evaluation order.
var Windows = []Window{WindowFiveHour, WindowWeekly}

// Label returns a human-readable window name.
func (w Window) Label() string {
	switch w {
	case WindowFiveHour:
		return "5-hour"
	case WindowWeekly:
		return "weekly"
	default:
		return string(w)
	}
}

// UsageSnapshot is the utilization observed by a single check.
type UsageSnapshot struct {
	FiveHourPercent int        `json:"five_hour_percent" yaml:"five_hour_percent"`
	WeeklyPercent   int        `json:"weekly_percent" yaml:"weekly_percent"`
	FiveHourResetAt *time.Time `json:"five_hour_reset_at" yaml:"five_hour_reset_at"`
	WeeklyResetAt   *time.Time `json:"weekly_reset_at" yaml:"weekly_reset_at"`
}

// Percent returns the rounded utilization for a window.
func (s UsageSnapshot) Percent(w Window) int {
	if w == WindowWeekly {
		return s.WeeklyPercent
	}
	return s.FiveHourPercent
}

// ResetAt returns the end of the current window instance, or nil when unknown.
func (s UsageSnapshot) ResetAt(w Window) *time.Time {
	if w == WindowWeekly {
		return s.WeeklyResetAt
	}
	return s.FiveHourResetAt
}

// AlertState is the durable dedup record. Field names mirror the persisted JSON layout.
type AlertState struct {
	FiveHourAlerted  []int      `json:"fiveHourAlerted" yaml:"five_hour_alerted"`
	WeeklyAlerted    []int      `json:"weeklyAlerted" yaml:"weekly_alerted"`
	FiveHourResetAt  *time.Time `json:"fiveHourResetAt" yaml:"five_hour_reset_at"`
	WeeklyResetAt    *time.Time `json:"weeklyResetAt" yaml:"weekly_reset_at"`
	LastCheck        *time.Time `json:"lastCheck" yaml:"last_check"`
	LastAuthError    *time.Time `json:"lastAuthError" yaml:"last_auth_error"`
	AuthErrorAlerted bool       `json:"authErrorAlerted" yaml:"auth_error_alerted"`
}

// NewAlertState returns the first-run state: empty sets and null timestamps.
func NewAlertState() AlertState {
	return AlertState{
		FiveHourAlerted: []int{},
		WeeklyAlerted:   []int{},
	}
}

// Alerted returns the thresholds already notified for a window.
func (s AlertState) Alerted(w Window) []int {
	if w == WindowWeekly {
		return s.WeeklyAlerted
	}
	return s.FiveHourAlerted
}

// SetAlerted replaces the dedup set of a window.
func (s *AlertState) SetAlerted(w Window, thresholds []int) {
	if w == WindowWeekly {
		s.WeeklyAlerted = thresholds
		return
	}
	s.FiveHourAlerted = thresholds
}

// ResetAt returns the watermark stored for a window.
func (s AlertState) ResetAt(w Window) *time.Time {
	if w == WindowWeekly {
		return s.WeeklyResetAt
	}
	return s.FiveHourResetAt
}

// SetResetAt stores the watermark for a window.
func (s *AlertState) SetResetAt(w Window, t *time.Time) {
	if w == WindowWeekly {
		s.WeeklyResetAt = t
		return
	}
	s.FiveHourResetAt = t
}

// HasAlerted reports whether threshold is in the window's dedup set.
func (s AlertState) HasAlerted(w Window, threshold int) bool {
	return lo.Contains(s.Alerted(w), threshold)
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s AlertState) Clone() AlertState {
	c := s
	c.FiveHourAlerted = slices.Clone(s.FiveHourAlerted)
	c.WeeklyAlerted = slices.Clone(s.WeeklyAlerted)
	c.FiveHourResetAt = cloneTime(s.FiveHourResetAt)
	c.WeeklyResetAt = cloneTime(s.WeeklyResetAt)
	c.LastCheck = cloneTime(s.LastCheck)
	c.LastAuthError = cloneTime(s.LastAuthError)
	return c
}

// Normalize deduplicates and sorts the alerted sets and replaces nil sets with empty ones.
func (s AlertState) Normalize() AlertState {
	c := s.Clone()
	c.FiveHourAlerted = normalizeSet(c.FiveHourAlerted)
	c.WeeklyAlerted = normalizeSet(c.WeeklyAlerted)
	return c
}

func normalizeSet(values []int) []int {
	if len(values) == 0 {
		return []int{}
	}
	out := lo.Uniq(values)
	slices.Sort(out)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Outcome classifies how a check ended.
type Outcome string

const (
	OutcomeOK                    Outcome = "ok"
	OutcomeCredentialUnavailable Outcome = "credential_unavailable" // No usable token after one refresh
	OutcomeAuthRejected          Outcome = "auth_rejected"          // Token rejected again after refresh-and-retry
	OutcomeFetchFailed           Outcome = "fetch_failed"           // Network, timeout, or non-auth HTTP failure
	OutcomeStateConflict         Outcome = "state_conflict"         // A concurrent check persisted first
)

// IsAuthFailure reports whether the outcome routes to the auth-failure alert path.
func (o Outcome) IsAuthFailure() bool {
	return o == OutcomeCredentialUnavailable || o == OutcomeAuthRejected
}

// CheckResult is the structured summary returned by every check.
type CheckResult struct {
	ID                string     `json:"id" yaml:"id"`
	CheckedAt         time.Time  `json:"checked_at" yaml:"checked_at"`
	Checked           bool       `json:"checked" yaml:"checked"`
	Outcome           Outcome    `json:"outcome" yaml:"outcome"`
	FiveHourPercent   int        `json:"five_hour_percent" yaml:"five_hour_percent"`
	WeeklyPercent     int        `json:"weekly_percent" yaml:"weekly_percent"`
	ThresholdsCrossed int        `json:"thresholds_crossed" yaml:"thresholds_crossed"`
	NotificationsSent int        `json:"notifications_sent" yaml:"notifications_sent"`
	Alerts            []string   `json:"alerts,omitempty" yaml:"alerts,omitempty"`
	Error             string     `json:"error,omitempty" yaml:"error,omitempty"`
	StoreError        string     `json:"store_error,omitempty" yaml:"store_error,omitempty"`
	State             AlertState `json:"state" yaml:"state"`
}

// CheckRecord is one row of check history.
type CheckRecord struct {
	ID                string    `json:"id" db:"id"`
	CheckedAt         time.Time `json:"checked_at" db:"checked_at"`
	Outcome           Outcome   `json:"outcome" db:"outcome"`
	FiveHourPercent   int       `json:"five_hour_percent" db:"five_hour_percent"`
	WeeklyPercent     int       `json:"weekly_percent" db:"weekly_percent"`
	ThresholdsCrossed int       `json:"thresholds_crossed" db:"thresholds_crossed"`
	NotificationsSent int       `json:"notifications_sent" db:"notifications_sent"`
	Error             string    `json:"error,omitempty" db:"error"`
}

// Record converts a result into its history row.
func (r CheckResult) Record() CheckRecord {
	return CheckRecord{
		ID:                r.ID,
		CheckedAt:         r.CheckedAt,
		Outcome:           r.Outcome,
		FiveHourPercent:   r.FiveHourPercent,
		WeeklyPercent:     r.WeeklyPercent,
		ThresholdsCrossed: r.ThresholdsCrossed,
		NotificationsSent: r.NotificationsSent,
		Error:             r.Error,
	}
}
