package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/relay"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/wallet"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteWalletRegistry(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	profile := uuid.New()

	bindings := []models.WalletBinding{
		{ProfileID: profile, WalletAddress: "0xE1E1E1E1e1e1e1E1E1e1E1e1E1e1e1e1E1E1e1E1", Kind: models.WalletEmbedded},
		{ProfileID: profile, WalletAddress: "0x2222222222222222222222222222222222222222", Kind: models.WalletExternal},
	}
	for _, b := range bindings {
		if err := s.BindWallet(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.WalletBindings(ctx, profile)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(got))
	}
	if _, ok := models.EmbeddedWallet(got); !ok {
		t.Fatal("expected an embedded wallet")
	}

	id, err := s.ProfileForWallet(ctx, "0xe1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1")
	if err != nil {
		t.Fatal(err)
	}
	if id != profile {
		t.Fatalf("expected %s, got %s", profile, id)
	}

	_, err = s.ProfileForWallet(ctx, "0x9999999999999999999999999999999999999999")
	if !errors.Is(err, wallet.ErrProfileNotFound) {
		t.Fatalf("expected profile not found, got %v", err)
	}

	// A second embedded wallet for the same profile is rejected.
	err = s.BindWallet(ctx, models.WalletBinding{ProfileID: profile, WalletAddress: "0x3333333333333333333333333333333333333333", Kind: models.WalletEmbedded})
	if err == nil {
		t.Fatal("expected unique embedded wallet constraint")
	}
}

func TestSQLiteGroupDirectory(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	collection := "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"

	if err := s.CreateGroup(ctx, "alpha", collection); err != nil {
		t.Fatal(err)
	}
	got, err := s.CollectionForGroup(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if got != models.NormalizeAddress(collection) {
		t.Fatalf("unexpected collection %q", got)
	}

	// Default groups resolve without a row.
	got, err = s.CollectionForGroup(ctx, collection)
	if err != nil || got != models.NormalizeAddress(collection) {
		t.Fatalf("expected default group resolution, got %q %v", got, err)
	}

	_, err = s.CollectionForGroup(ctx, "nope")
	if !errors.Is(err, relay.ErrUnknownGroup) {
		t.Fatalf("expected unknown group, got %v", err)
	}
}

func TestSQLiteHoldings(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	collection := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")

	bal, err := s.BalanceOf(ctx, collection, owner)
	if err != nil {
		t.Fatal(err)
	}
	if bal.Sign() != 0 {
		t.Fatalf("expected zero balance, got %s", bal)
	}

	if err := s.SetHolding(ctx, collection.Hex(), owner.Hex(), 3); err != nil {
		t.Fatal(err)
	}
	bal, err = s.BalanceOf(ctx, collection, owner)
	if err != nil {
		t.Fatal(err)
	}
	if bal.Int64() != 3 {
		t.Fatalf("expected 3, got %s", bal)
	}
}
