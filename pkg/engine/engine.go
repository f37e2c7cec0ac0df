// Package engine decides when a human should hear about quota usage. Each
// check loads the alert state, obtains usage with one bounded credential
// recovery step, evaluates both windows, persists the state and only then
// dispatches notifications.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/alerts"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/credentials"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/storage"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/usage"
)

// CredentialProvider supplies bearer tokens and renews them on demand.
type CredentialProvider interface {
	// Credential returns the stored credential, or nil when none is available.
	Credential(ctx context.Context) *credentials.Credential

	// ForceRefresh renews the credential once.
	ForceRefresh(ctx context.Context) error
}

// UsageFetcher reads current utilization.
type UsageFetcher interface {
	Fetch(ctx context.Context, token string) (*model.UsageSnapshot, error)
}

// Dispatcher delivers an alert and reports whether it was delivered.
type Dispatcher interface {
	Deliver(ctx context.Context, alert alerts.Alert) bool
}

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	Thresholds  Thresholds
	GracePeriod time.Duration
	History     storage.HistoryStore
	Now         func() time.Time
}

// Engine runs usage checks. RunCheck is safe for concurrent use; overlapping
// calls are serialized.
type Engine struct {
	creds      CredentialProvider
	fetcher    UsageFetcher
	store      storage.Store
	dispatcher Dispatcher
	history    storage.HistoryStore
	thresholds Thresholds
	grace      time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu sync.Mutex
}

// New creates an engine.
func New(creds CredentialProvider, fetcher UsageFetcher, store storage.Store, dispatcher Dispatcher, logger *slog.Logger, opts Options) *Engine {
	e := &Engine{
		creds:      creds,
		fetcher:    fetcher,
		store:      store,
		dispatcher: dispatcher,
		history:    opts.History,
		thresholds: opts.Thresholds,
		grace:      opts.GracePeriod,
		now:        opts.Now,
		logger:     logger,
	}
	if e.thresholds.FiveHour == nil && e.thresholds.Weekly == nil {
		e.thresholds = DefaultThresholds()
	}
	if e.grace <= 0 {
		e.grace = credentials.DefaultGracePeriod
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Thresholds returns the configured threshold sets.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// RunCheck performs one complete check. It never returns an error: every
// failure is described by the result's Outcome and Error fields.
func (e *Engine) RunCheck(ctx context.Context) model.CheckResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	result := model.CheckResult{
		ID:        uuid.NewString(),
		CheckedAt: now,
		Outcome:   model.OutcomeOK,
	}
	e.logger.Debug("check started", "id", result.ID, "store", e.store.Name())

	state, revision, loadErr := e.store.Load(ctx)
	if loadErr != nil {
		e.logger.Warn("load alert state, using defaults", "store", e.store.Name(), "error", loadErr)
	}
	state = state.Normalize()

	snapshot, outcome, err := e.obtainUsage(ctx)
	result.Outcome = outcome
	if err != nil {
		result.Error = err.Error()
	}

	var (
		crossings []Crossing
		pending   []alerts.Alert
	)
	switch {
	case outcome == model.OutcomeOK:
		result.Checked = true
		result.FiveHourPercent = snapshot.FiveHourPercent
		result.WeeklyPercent = snapshot.WeeklyPercent

		if state.AuthErrorAlerted {
			e.logger.Info("credentials recovered, auth alert re-armed")
		}
		state.AuthErrorAlerted = false
		state.LastAuthError = nil

		for _, w := range model.Windows {
			if RolledOver(state.ResetAt(w), snapshot.ResetAt(w)) {
				e.logger.Info("window rolled over",
					"window", w,
					"previous_reset", state.ResetAt(w),
					"reset", snapshot.ResetAt(w),
				)
			}
		}
		state, crossings = Evaluate(state, *snapshot, e.thresholds)
		for _, c := range crossings {
			e.logger.Warn("usage threshold crossed",
				"window", c.Window,
				"threshold", c.Threshold,
				"percent", c.Percent,
			)
			pending = append(pending, ThresholdAlert(c, now))
		}

	case outcome.IsAuthFailure():
		if state.AuthErrorAlerted {
			e.logger.Info("auth alert suppressed, outage already reported",
				"outcome", outcome,
				"since", state.LastAuthError,
			)
			break
		}
		pending = append(pending, AuthAlert(outcome, err))
		state.AuthErrorAlerted = true
		state.LastAuthError = &now

	default:
		e.logger.Warn("usage fetch failed", "error", err)
	}
	state.LastCheck = &now

	if errors.Is(loadErr, storage.ErrUnreadable) {
		// Revision unknown; a save could only clobber the stored state.
		e.logger.Error("alert state not saved, backend unreadable", "store", e.store.Name(), "error", loadErr)
		result.StoreError = loadErr.Error()
	} else if _, err := e.store.Save(ctx, state, revision); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return e.finishConflict(ctx, result, err)
		}
		e.logger.Error("save alert state", "store", e.store.Name(), "error", err)
		result.StoreError = err.Error()
	}

	result.State = state
	result.ThresholdsCrossed = len(crossings)
	for _, alert := range pending {
		result.Alerts = append(result.Alerts, alert.Title)
		if e.dispatcher.Deliver(ctx, alert) {
			result.NotificationsSent++
		}
	}

	e.record(ctx, result)
	e.logger.Info("check completed",
		"id", result.ID,
		"outcome", result.Outcome,
		"five_hour_pct", result.FiveHourPercent,
		"weekly_pct", result.WeeklyPercent,
		"crossed", result.ThresholdsCrossed,
		"sent", result.NotificationsSent,
	)
	return result
}

// finishConflict reports a check that lost the compare-and-swap race. The
// winning check owns the notifications, so nothing is dispatched.
func (e *Engine) finishConflict(ctx context.Context, result model.CheckResult, err error) model.CheckResult {
	e.logger.Warn("alert state changed concurrently, discarding check", "store", e.store.Name(), "error", err)

	result.Outcome = model.OutcomeStateConflict
	result.Error = err.Error()
	if winner, _, loadErr := e.store.Load(ctx); loadErr == nil {
		result.State = winner.Normalize()
	}

	e.record(ctx, result)
	return result
}

// obtainUsage resolves a credential and fetches usage, with at most one
// forced refresh before the fetch and one refresh-and-retry after an auth
// rejection.
func (e *Engine) obtainUsage(ctx context.Context) (*model.UsageSnapshot, model.Outcome, error) {
	cred, err := e.resolveCredential(ctx)
	if err != nil {
		if errors.Is(err, credentials.ErrRefreshTimeout) {
			return nil, model.OutcomeFetchFailed, err
		}
		return nil, model.OutcomeCredentialUnavailable, err
	}

	snapshot, err := e.fetcher.Fetch(ctx, cred.Token)
	if err == nil {
		return snapshot, model.OutcomeOK, nil
	}
	if !errors.Is(err, usage.ErrUnauthorized) {
		return nil, model.OutcomeFetchFailed, err
	}

	e.logger.Warn("usage source rejected credential, refreshing", "error", err)
	if refreshErr := e.creds.ForceRefresh(ctx); errors.Is(refreshErr, credentials.ErrRefreshTimeout) {
		return nil, model.OutcomeFetchFailed, refreshErr
	}
	cred = e.creds.Credential(ctx)
	if cred == nil || cred.Token == "" {
		return nil, model.OutcomeAuthRejected, fmt.Errorf("no credential after refresh: %w", err)
	}

	snapshot, retryErr := e.fetcher.Fetch(ctx, cred.Token)
	switch {
	case retryErr == nil:
		e.logger.Info("usage fetch succeeded after credential refresh")
		return snapshot, model.OutcomeOK, nil
	case errors.Is(retryErr, usage.ErrUnauthorized):
		return nil, model.OutcomeAuthRejected, retryErr
	default:
		return nil, model.OutcomeFetchFailed, retryErr
	}
}

// resolveCredential returns a usable credential, forcing at most one refresh.
func (e *Engine) resolveCredential(ctx context.Context) (*credentials.Credential, error) {
	cred := e.creds.Credential(ctx)
	if cred.Usable(e.now(), e.grace) {
		return cred, nil
	}

	e.logger.Info("credential missing or expiring, forcing refresh", "grace", e.grace)
	refreshErr := e.creds.ForceRefresh(ctx)

	cred = e.creds.Credential(ctx)
	if cred.Usable(e.now(), e.grace) {
		return cred, nil
	}
	if refreshErr != nil {
		return nil, fmt.Errorf("%w: %w", credentials.ErrNoCredential, refreshErr)
	}
	return nil, fmt.Errorf("%w: still missing or expiring after refresh", credentials.ErrNoCredential)
}

func (e *Engine) record(ctx context.Context, result model.CheckResult) {
	if e.history == nil {
		return
	}
	if err := e.history.RecordCheck(ctx, result.Record()); err != nil {
		e.logger.Error("record check history", "id", result.ID, "error", err)
	}
}
