package store

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/relay"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/wallet"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WalletBindings returns every wallet bound to a profile.
func (s *PostgresStore) WalletBindings(ctx context.Context, profileID uuid.UUID) ([]models.WalletBinding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT profile_id, wallet_address, kind
		FROM wallet_bindings WHERE profile_id = $1
		ORDER BY created_at
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []models.WalletBinding
	for rows.Next() {
		var b models.WalletBinding
		if err := rows.Scan(&b.ProfileID, &b.WalletAddress, &b.Kind); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// ProfileForWallet finds the profile a wallet is bound to.
func (s *PostgresStore) ProfileForWallet(ctx context.Context, address string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT profile_id FROM wallet_bindings WHERE lower(wallet_address) = $1
	`, models.NormalizeAddress(address)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, wallet.ErrProfileNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

// BindWallet inserts or updates a binding.
func (s *PostgresStore) BindWallet(ctx context.Context, b models.WalletBinding) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wallet_bindings (profile_id, wallet_address, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id, wallet_address) DO UPDATE SET kind = EXCLUDED.kind
	`, b.ProfileID, b.WalletAddress, string(b.Kind))
	return err
}

// CollectionForGroup resolves a group id to its collection. Default groups
// are named after their collection and need no row.
func (s *PostgresStore) CollectionForGroup(ctx context.Context, groupID string) (string, error) {
	var collection string
	err := s.pool.QueryRow(ctx, `
		SELECT collection_address FROM chat_groups WHERE group_id = $1
	`, groupID).Scan(&collection)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return relay.DefaultGroups{}.CollectionForGroup(ctx, groupID)
		}
		return "", err
	}
	return models.NormalizeAddress(collection), nil
}

// CreateGroup registers a named group for a collection.
func (s *PostgresStore) CreateGroup(ctx context.Context, groupID, collection string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_groups (group_id, collection_address) VALUES ($1, $2)
		ON CONFLICT (group_id) DO NOTHING
	`, groupID, models.NormalizeAddress(collection))
	return err
}

// BalanceOf reads the mirrored token balance of owner.
func (s *PostgresStore) BalanceOf(ctx context.Context, collection, owner common.Address) (*big.Int, error) {
	var balance int64
	err := s.pool.QueryRow(ctx, `
		SELECT balance FROM token_holdings
		WHERE collection_address = $1 AND owner_address = $2
	`, models.NormalizeAddress(collection.Hex()), models.NormalizeAddress(owner.Hex())).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return big.NewInt(balance), nil
}

// SetHolding records the balance of owner for a collection.
func (s *PostgresStore) SetHolding(ctx context.Context, collection, owner string, balance int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO token_holdings (collection_address, owner_address, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection_address, owner_address)
		DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()
	`, models.NormalizeAddress(collection), models.NormalizeAddress(owner), balance)
	return err
}

const messageColumns = `id, group_id, ref, collection_address, sender, content, kind, ts, is_bot`

func scanMessage(row pgx.Row) (models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.GroupID, &m.Ref, &m.CollectionAddress, &m.Sender, &m.Content, &m.Kind, &m.Timestamp, &m.IsBot)
	return m, err
}

// Append stores a draft with the group's next id. The counter row is locked
// by the upsert, which serializes appends to the same group across processes.
func (s *PostgresStore) Append(ctx context.Context, d relay.Draft) (models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback(ctx)

	existing, err := scanMessage(tx.QueryRow(ctx, `
		SELECT `+messageColumns+` FROM chat_messages WHERE group_id = $1 AND ref = $2
	`, d.GroupID, d.Ref))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Message{}, err
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_group_seq (group_id, last_id) VALUES ($1, 1)
		ON CONFLICT (group_id) DO UPDATE SET last_id = chat_group_seq.last_id + 1
		RETURNING last_id
	`, d.GroupID).Scan(&id)
	if err != nil {
		return models.Message{}, err
	}

	msg := d.Message(id)
	_, err = tx.Exec(ctx, `
		INSERT INTO chat_messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, msg.ID, msg.GroupID, msg.Ref, msg.CollectionAddress, msg.Sender, msg.Content, string(msg.Kind), msg.Timestamp, msg.IsBot)
	if err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ReadSince returns the group's messages with id > afterID in ascending order.
func (s *PostgresStore) ReadSince(ctx context.Context, groupID string, afterID int64) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM chat_messages
		WHERE group_id = $1 AND id > $2
		ORDER BY id
	`, groupID, afterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
