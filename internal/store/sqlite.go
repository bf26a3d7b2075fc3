package store

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/relay"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/wallet"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chatrelay.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chatrelay.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS wallet_bindings (
		profile_id TEXT NOT NULL,
		wallet_address TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('embedded', 'external')),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (profile_id, wallet_address)
	);

	CREATE TABLE IF NOT EXISTS chat_groups (
		group_id TEXT PRIMARY KEY,
		collection_address TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS token_holdings (
		collection_address TEXT NOT NULL,
		owner_address TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection_address, owner_address)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_wallet_bindings_address ON wallet_bindings(lower(wallet_address));
	CREATE UNIQUE INDEX IF NOT EXISTS idx_wallet_bindings_one_embedded ON wallet_bindings(profile_id) WHERE kind = 'embedded';
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WalletBindings returns every wallet bound to a profile.
func (s *SQLiteStore) WalletBindings(ctx context.Context, profileID uuid.UUID) ([]models.WalletBinding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_address, kind FROM wallet_bindings
		WHERE profile_id = ? ORDER BY created_at
	`, profileID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []models.WalletBinding
	for rows.Next() {
		b := models.WalletBinding{ProfileID: profileID}
		var kind string
		if err := rows.Scan(&b.WalletAddress, &kind); err != nil {
			return nil, err
		}
		b.Kind = models.WalletKind(kind)
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// ProfileForWallet finds the profile a wallet is bound to.
func (s *SQLiteStore) ProfileForWallet(ctx context.Context, address string) (uuid.UUID, error) {
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT profile_id FROM wallet_bindings WHERE lower(wallet_address) = ?
	`, models.NormalizeAddress(address)).Scan(&idStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, wallet.ErrProfileNotFound
		}
		return uuid.Nil, err
	}
	return uuid.Parse(idStr)
}

// BindWallet inserts or updates a binding.
func (s *SQLiteStore) BindWallet(ctx context.Context, b models.WalletBinding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet_bindings (profile_id, wallet_address, kind) VALUES (?, ?, ?)
		ON CONFLICT (profile_id, wallet_address) DO UPDATE SET kind = excluded.kind
	`, b.ProfileID.String(), b.WalletAddress, string(b.Kind))
	return err
}

// CollectionForGroup resolves a group id to its collection.
func (s *SQLiteStore) CollectionForGroup(ctx context.Context, groupID string) (string, error) {
	var collection string
	err := s.db.QueryRowContext(ctx, `
		SELECT collection_address FROM chat_groups WHERE group_id = ?
	`, groupID).Scan(&collection)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return relay.DefaultGroups{}.CollectionForGroup(ctx, groupID)
		}
		return "", err
	}
	return models.NormalizeAddress(collection), nil
}

// CreateGroup registers a named group for a collection.
func (s *SQLiteStore) CreateGroup(ctx context.Context, groupID, collection string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO chat_groups (group_id, collection_address) VALUES (?, ?)
	`, groupID, models.NormalizeAddress(collection))
	return err
}

// BalanceOf reads the mirrored token balance of owner.
func (s *SQLiteStore) BalanceOf(ctx context.Context, collection, owner common.Address) (*big.Int, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT balance FROM token_holdings
		WHERE collection_address = ? AND owner_address = ?
	`, models.NormalizeAddress(collection.Hex()), models.NormalizeAddress(owner.Hex())).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return big.NewInt(balance), nil
}

// SetHolding records the balance of owner for a collection.
func (s *SQLiteStore) SetHolding(ctx context.Context, collection, owner string, balance int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_holdings (collection_address, owner_address, balance) VALUES (?, ?, ?)
		ON CONFLICT (collection_address, owner_address)
		DO UPDATE SET balance = excluded.balance, updated_at = CURRENT_TIMESTAMP
	`, models.NormalizeAddress(collection), models.NormalizeAddress(owner), balance)
	return err
}
