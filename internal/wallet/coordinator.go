// Package wallet makes sure a profile's embedded wallet is the active
// signer before any gas-sponsored write.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/apperr"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/metrics"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
)

const defaultSwitchTimeout = 10 * time.Second

// ErrProfileNotFound is returned by registries for unknown wallets or profiles.
var ErrProfileNotFound = errors.New("profile not found")

// Registry looks up wallet bindings owned by the profile store.
type Registry interface {
	WalletBindings(ctx context.Context, profileID uuid.UUID) ([]models.WalletBinding, error)
	ProfileForWallet(ctx context.Context, address string) (uuid.UUID, error)
}

// Activator reads and changes the active signer of a profile's session.
type Activator interface {
	ActiveSigner(ctx context.Context, profileID uuid.UUID) (string, error)
	Activate(ctx context.Context, profileID uuid.UUID, address string) error
}

// State is the coordination state of one ensure call.
type State string

const (
	StateIdle      State = "idle"
	StateSwitching State = "switching"
	StateReady     State = "ready"
	StateFailed    State = "failed"
)

// ActiveWallet is the outcome of EnsureSponsorWallet.
type ActiveWallet struct {
	ProfileID uuid.UUID
	Address   string
	State     State
	Switched  bool // a switch was performed to reach Ready
}

// Ready reports whether the wallet may sign sponsored writes.
func (a *ActiveWallet) Ready() bool {
	return a != nil && a.State == StateReady
}

// Coordinator selects the sponsor-eligible signer for a profile.
type Coordinator struct {
	registry      Registry
	activator     Activator
	switchTimeout time.Duration
	group         singleflight.Group
	logger        zerolog.Logger
}

// NewCoordinator creates a Coordinator. A non-positive switchTimeout uses the default.
func NewCoordinator(registry Registry, activator Activator, switchTimeout time.Duration, logger zerolog.Logger) *Coordinator {
	if switchTimeout <= 0 {
		switchTimeout = defaultSwitchTimeout
	}
	return &Coordinator{
		registry:      registry,
		activator:     activator,
		switchTimeout: switchTimeout,
		logger:        logger.With().Str("component", "wallet").Logger(),
	}
}

// EnsureSponsorWallet makes the profile's embedded wallet the active signer.
// Concurrent calls for the same profile share one in-flight resolution. The
// shared work is not tied to any single caller's cancellation; each caller
// stops waiting when its own context ends.
func (c *Coordinator) EnsureSponsorWallet(ctx context.Context, profileID uuid.UUID) (*ActiveWallet, error) {
	ch := c.group.DoChan(profileID.String(), func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.switchTimeout)
		defer cancel()
		return c.ensure(sctx, profileID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		active := *res.Val.(*ActiveWallet)
		return &active, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) ensure(ctx context.Context, profileID uuid.UUID) (*ActiveWallet, error) {
	log := c.logger.With().Str("profile_id", profileID.String()).Logger()

	bindings, err := c.registry.WalletBindings(ctx, profileID)
	if err != nil {
		metrics.WalletSwitches.WithLabelValues("failed").Inc()
		return nil, apperr.Wrap(apperr.KindWalletSwitchFailed, "could not load wallet bindings", err)
	}
	embedded, ok := models.EmbeddedWallet(bindings)
	if !ok {
		metrics.WalletSwitches.WithLabelValues("no_sponsor").Inc()
		return nil, apperr.New(apperr.KindNoSponsorWallet, "profile has no embedded wallet eligible for sponsored writes")
	}

	current, err := c.activator.ActiveSigner(ctx, profileID)
	if err != nil {
		// Unknown session state is handled like a different signer.
		log.Debug().Err(err).Msg("active signer lookup failed")
	}
	if err == nil && models.SameAddress(current, embedded.WalletAddress) {
		metrics.WalletSwitches.WithLabelValues("ready").Inc()
		return &ActiveWallet{ProfileID: profileID, Address: embedded.WalletAddress, State: StateReady}, nil
	}

	log.Info().
		Str("state", string(StateSwitching)).
		Str("from", current).
		Str("to", embedded.WalletAddress).
		Msg("switching to sponsor wallet")

	if err := c.activator.Activate(ctx, profileID, embedded.WalletAddress); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("switch timed out after %s: %w", c.switchTimeout, err)
		}
		metrics.WalletSwitches.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Str("state", string(StateFailed)).Msg("wallet switch failed")
		return nil, apperr.Wrap(apperr.KindWalletSwitchFailed, "could not activate the sponsor wallet", err)
	}

	metrics.WalletSwitches.WithLabelValues("switched").Inc()
	log.Info().Str("state", string(StateReady)).Msg("sponsor wallet active")
	return &ActiveWallet{ProfileID: profileID, Address: embedded.WalletAddress, State: StateReady, Switched: true}, nil
}
