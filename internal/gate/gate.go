// Package gate decides whether a set of wallets holds tokens of an NFT
// collection. Any one owning wallet grants access.
package gate

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/apperr"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/metrics"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
)

const (
	defaultQueryTimeout = 5 * time.Second
	defaultRetryBackoff = 250 * time.Millisecond
)

// Querier reports how many tokens of a collection an owner holds.
type Querier interface {
	BalanceOf(ctx context.Context, collection, owner common.Address) (*big.Int, error)
}

// Options tunes a Gate.
type Options struct {
	// QueryTimeout bounds each per-wallet query. Queries run concurrently,
	// so it also bounds the whole fan-out.
	QueryTimeout time.Duration
	// MinResponses is how many queries must complete before a negative
	// answer is trusted. It is capped at the number of wallets.
	MinResponses int
	// RetryBackoff is the pause before the single retry of an unavailable gate.
	RetryBackoff time.Duration
}

// Gate verifies collection ownership across several wallets.
type Gate struct {
	querier Querier
	opts    Options
	logger  zerolog.Logger
}

// New creates a Gate.
func New(querier Querier, opts Options, logger zerolog.Logger) *Gate {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	if opts.MinResponses <= 0 {
		opts.MinResponses = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	return &Gate{
		querier: querier,
		opts:    opts,
		logger:  logger.With().Str("component", "gate").Logger(),
	}
}

// Verify returns true iff at least one wallet owns a token of collection.
// It returns false only when enough queries completed and none reported
// ownership; when ownership could not be determined it fails with
// apperr.ErrGateUnavailable. Results are never cached.
func (g *Gate) Verify(ctx context.Context, wallets []string, collection string) (bool, error) {
	owners, coll, err := parseInput(wallets, collection)
	if err != nil {
		metrics.GateDecisions.WithLabelValues("invalid").Inc()
		return false, err
	}

	var owned bool
	attempt := 0
	op := func() error {
		attempt++
		var err error
		owned, err = g.fanOut(ctx, coll, owners)
		if err == nil || errors.Is(err, apperr.ErrGateUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(g.opts.RetryBackoff), 1), ctx)
	notify := func(err error, wait time.Duration) {
		g.logger.Warn().Err(err).
			Str("collection", coll.Hex()).
			Int("wallets", len(owners)).
			Dur("backoff", wait).
			Msg("ownership gate unavailable, retrying")
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if ctx.Err() != nil {
			metrics.GateDecisions.WithLabelValues("canceled").Inc()
			return false, ctx.Err()
		}
		metrics.GateDecisions.WithLabelValues("unavailable").Inc()
		return false, err
	}

	outcome := "denied"
	if owned {
		outcome = "granted"
	}
	metrics.GateDecisions.WithLabelValues(outcome).Inc()
	g.logger.Debug().
		Str("collection", coll.Hex()).
		Int("wallets", len(owners)).
		Int("attempts", attempt).
		Bool("owned", owned).
		Msg("ownership verified")
	return owned, nil
}

type vote struct {
	owner common.Address
	owned bool
	err   error
}

// fanOut queries every owner concurrently under one cancellation scope.
// The first positive vote wins immediately; the remaining queries are
// canceled and drain into the buffered channel.
func (g *Gate) fanOut(ctx context.Context, collection common.Address, owners []common.Address) (bool, error) {
	scope, cancel := context.WithTimeout(ctx, g.opts.QueryTimeout)
	defer cancel()

	votes := make(chan vote, len(owners))
	for _, owner := range owners {
		go func(owner common.Address) {
			qctx, qcancel := context.WithTimeout(scope, g.opts.QueryTimeout)
			defer qcancel()

			start := time.Now()
			bal, err := g.querier.BalanceOf(qctx, collection, owner)
			metrics.GateQueryDuration.Observe(time.Since(start).Seconds())
			votes <- vote{owner: owner, owned: err == nil && bal != nil && bal.Sign() > 0, err: err}
		}(owner)
	}

	responded := 0
	var lastErr error
	for range owners {
		var v vote
		select {
		case v = <-votes:
		case <-ctx.Done():
			return false, ctx.Err()
		}
		if v.err != nil {
			lastErr = v.err
			g.logger.Debug().Err(v.err).Str("wallet", v.owner.Hex()).Msg("ownership query failed")
			continue
		}
		responded++
		if v.owned {
			return true, nil
		}
	}

	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if responded < min(g.opts.MinResponses, len(owners)) {
		return false, apperr.Wrap(apperr.KindGateUnavailable, "could not verify collection ownership", lastErr)
	}
	return false, nil
}

// parseInput validates and deduplicates the gate input before any network access.
func parseInput(wallets []string, collection string) ([]common.Address, common.Address, error) {
	coll, err := models.ParseAddress(collection)
	if err != nil {
		return nil, common.Address{}, apperr.Validation("invalid collection address %q", collection)
	}
	if len(wallets) == 0 {
		return nil, common.Address{}, apperr.Validation("at least one wallet is required")
	}

	seen := make(map[common.Address]bool, len(wallets))
	owners := make([]common.Address, 0, len(wallets))
	for _, w := range wallets {
		addr, err := models.ParseAddress(w)
		if err != nil {
			return nil, common.Address{}, apperr.Validation("invalid wallet address %q", w)
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true
		owners = append(owners, addr)
	}
	return owners, coll, nil
}
