package wallet

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
)

// MemoryActivator keeps active signers in process memory.
type MemoryActivator struct {
	mu      sync.RWMutex
	signers map[uuid.UUID]string
}

// NewMemoryActivator creates an empty MemoryActivator.
func NewMemoryActivator() *MemoryActivator {
	return &MemoryActivator{signers: make(map[uuid.UUID]string)}
}

// ActiveSigner returns the active signer, or "" when none is set.
func (a *MemoryActivator) ActiveSigner(ctx context.Context, profileID uuid.UUID) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.signers[profileID], nil
}

// Activate sets the active signer.
func (a *MemoryActivator) Activate(ctx context.Context, profileID uuid.UUID, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signers[profileID] = address
	return nil
}

// MemoryRegistry is an in-process wallet registry.
type MemoryRegistry struct {
	mu       sync.RWMutex
	bindings map[uuid.UUID][]models.WalletBinding
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{bindings: make(map[uuid.UUID][]models.WalletBinding)}
}

// Bind adds a binding.
func (r *MemoryRegistry) Bind(b models.WalletBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[b.ProfileID] = append(r.bindings[b.ProfileID], b)
}

// WalletBindings returns a copy of the profile's bindings.
func (r *MemoryRegistry) WalletBindings(ctx context.Context, profileID uuid.UUID) ([]models.WalletBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.WalletBinding(nil), r.bindings[profileID]...), nil
}

// ProfileForWallet finds the profile a wallet is bound to.
func (r *MemoryRegistry) ProfileForWallet(ctx context.Context, address string) (uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, bs := range r.bindings {
		for _, b := range bs {
			if models.SameAddress(b.WalletAddress, address) {
				return id, nil
			}
		}
	}
	return uuid.Nil, ErrProfileNotFound
}
