package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Provider pairs a credential source with the refresher that renews it.
type Provider struct {
	source    Source
	refresher Refresher
	logger    *slog.Logger
}

// NewProvider creates a provider. refresher may be nil, in which case forced
// refreshes always fail with ErrRefreshFailed.
func NewProvider(source Source, refresher Refresher, logger *slog.Logger) *Provider {
	return &Provider{
		source:    source,
		refresher: refresher,
		logger:    logger,
	}
}

// Credential returns the stored credential, or nil when none can be read.
func (p *Provider) Credential(ctx context.Context) *Credential {
	cred, err := p.source.Credential(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoCredential) {
			p.logger.Warn("read credential", "source", p.source.Name(), "error", err)
		}
		return nil
	}
	return cred
}

// ForceRefresh asks the refresher to renew the credential once. It never
// retries; callers re-read the credential afterwards either way.
func (p *Provider) ForceRefresh(ctx context.Context) error {
	if p.refresher == nil {
		p.logger.Warn("credential refresh requested but no refresher configured", "source", p.source.Name())
		return fmt.Errorf("%w: no refresher configured", ErrRefreshFailed)
	}
	if err := p.refresher.Refresh(ctx); err != nil {
		p.logger.Error("force credential refresh", "source", p.source.Name(), "error", err)
		return err
	}
	return nil
}
