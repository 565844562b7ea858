package chain

import (
	"context"
	"log/slog"
	"time"

	"github.com/vango-dev/stakeview/pkg/era"
)

// EpochSource reports the current epoch number.
type EpochSource interface {
	EpochNo(ctx context.Context) (uint64, error)
}

// EraPoller feeds a Provider from an EpochSource.
type EraPoller struct {
	source   EpochSource
	provider *era.Provider
	interval time.Duration
	logger   *slog.Logger
}

// NewEraPoller creates a poller that asks source every interval.
func NewEraPoller(source EpochSource, provider *era.Provider, interval time.Duration, logger *slog.Logger) *EraPoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &EraPoller{
		source:   source,
		provider: provider,
		interval: interval,
		logger:   logger.With("component", "era-poller"),
	}
}

// Poll queries the source once and updates the provider.
func (p *EraPoller) Poll(ctx context.Context) error {
	n, err := p.source.EpochNo(ctx)
	if err != nil {
		return err
	}
	p.provider.Set(n)
	return nil
}

// Run polls immediately and then every interval until ctx is done. Failed
// polls are logged and retried on the next tick.
func (p *EraPoller) Run(ctx context.Context) error {
	if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
		p.logger.Warn("epoch poll failed", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("epoch poll failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
