package store

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
)

// DataStore is the relational side of the service: wallet bindings owned by
// the profile store, the group directory and the token holdings mirror.
// Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Wallet registry
	WalletBindings(ctx context.Context, profileID uuid.UUID) ([]models.WalletBinding, error)
	ProfileForWallet(ctx context.Context, address string) (uuid.UUID, error)
	BindWallet(ctx context.Context, b models.WalletBinding) error

	// Group directory
	CollectionForGroup(ctx context.Context, groupID string) (string, error)
	CreateGroup(ctx context.Context, groupID, collection string) error

	// Token holdings mirror, used when no RPC endpoint is configured
	BalanceOf(ctx context.Context, collection, owner common.Address) (*big.Int, error)
	SetHolding(ctx context.Context, collection, owner string, balance int64) error
}
