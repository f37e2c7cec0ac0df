package engine

import (
	"slices"
	"time"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
	"github.com/samber/lo"
)

// Default threshold sets, in percent.
var (
	DefaultFiveHourThresholds = []int{75, 90, 95, 100}
	DefaultWeeklyThresholds   = []int{50, 75, 90, 95, 100}
)

// Thresholds holds the configured threshold set of each window.
type Thresholds struct {
	FiveHour []int
	Weekly   []int
}

// DefaultThresholds returns the default threshold sets.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FiveHour: slices.Clone(DefaultFiveHourThresholds),
		Weekly:   slices.Clone(DefaultWeeklyThresholds),
	}
}

// For returns the thresholds of w in ascending order without duplicates.
func (t Thresholds) For(w model.Window) []int {
	values := t.FiveHour
	if w == model.WindowWeekly {
		values = t.Weekly
	}
	out := lo.Uniq(values)
	slices.Sort(out)
	return out
}

// Crossing is a threshold reached for the first time in the current window instance.
type Crossing struct {
	Window    model.Window
	Threshold int
	Percent   int
	ResetAt   *time.Time
}

// RolledOver reports whether a window moved to a new instance. Both
// watermarks must be known and differ; a first observation is not a rollover.
func RolledOver(stored, observed *time.Time) bool {
	return stored != nil && observed != nil && !stored.Equal(*observed)
}

// Evaluate runs rollover detection and threshold evaluation for every window.
// It returns the next state and the new crossings, five-hour window first and
// ascending by threshold within a window. The input state is not modified.
// Known reset times are adopted; a null observation leaves the stored one.
func Evaluate(state model.AlertState, snapshot model.UsageSnapshot, thresholds Thresholds) (model.AlertState, []Crossing) {
	next := state.Clone()
	var crossings []Crossing
	for _, w := range model.Windows {
		crossings = append(crossings, evaluateWindow(&next, w, snapshot, thresholds.For(w))...)
	}
	return next, crossings
}

func evaluateWindow(state *model.AlertState, w model.Window, snapshot model.UsageSnapshot, thresholds []int) []Crossing {
	observed := snapshot.ResetAt(w)
	if RolledOver(state.ResetAt(w), observed) {
		state.SetAlerted(w, []int{})
	}

	percent := snapshot.Percent(w)
	alerted := slices.Clone(state.Alerted(w))
	var crossings []Crossing
	for _, threshold := range thresholds {
		if percent < threshold || lo.Contains(alerted, threshold) {
			continue
		}
		alerted = append(alerted, threshold)
		crossings = append(crossings, Crossing{
			Window:    w,
			Threshold: threshold,
			Percent:   percent,
			ResetAt:   observed,
		})
	}

	if alerted == nil {
		alerted = []int{}
	}
	slices.Sort(alerted)
	state.SetAlerted(w, alerted)
	// A null reset time (idle window) keeps the last known watermark so the
	// next instance is still seen as a rollover.
	if observed != nil {
		state.SetResetAt(w, observed)
	}
	return crossings
}
