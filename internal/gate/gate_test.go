package gate

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/apperr"
)

const (
	collectionA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	wallet1     = "0x1111111111111111111111111111111111111111"
	wallet2     = "0x2222222222222222222222222222222222222222"
	wallet3     = "0x3333333333333333333333333333333333333333"
)

type fakeQuerier struct {
	mu       sync.Mutex
	balances map[common.Address]int64
	failing  map[common.Address]bool
	blocking map[common.Address]bool
	calls    map[common.Address]int
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		balances: make(map[common.Address]int64),
		failing:  make(map[common.Address]bool),
		blocking: make(map[common.Address]bool),
		calls:    make(map[common.Address]int),
	}
}

func (f *fakeQuerier) BalanceOf(ctx context.Context, collection, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	f.calls[owner]++
	bal, fail, block := f.balances[owner], f.failing[owner], f.blocking[owner]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail {
		return nil, errors.New("rpc: connection refused")
	}
	return big.NewInt(bal), nil
}

func (f *fakeQuerier) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func newTestGate(q Querier, opts Options) *Gate {
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	return New(q, opts, zerolog.Nop())
}

func TestVerifyAnyWalletGrantsAccess(t *testing.T) {
	q := newFakeQuerier()
	q.balances[common.HexToAddress(wallet2)] = 1
	g := newTestGate(q, Options{})

	owned, err := g.Verify(context.Background(), []string{wallet1, wallet2}, collectionA)
	if err != nil {
		t.Fatal(err)
	}
	if !owned {
		t.Fatal("expected access when one wallet owns a token")
	}

	owned, err = g.Verify(context.Background(), []string{wallet1, wallet3}, collectionA)
	if err != nil {
		t.Fatal(err)
	}
	if owned {
		t.Fatal("expected no access when no wallet owns a token")
	}
}

func TestVerifyAllQueriesFail(t *testing.T) {
	q := newFakeQuerier()
	q.failing[common.HexToAddress(wallet1)] = true
	q.failing[common.HexToAddress(wallet2)] = true
	g := newTestGate(q, Options{})

	owned, err := g.Verify(context.Background(), []string{wallet1, wallet2}, collectionA)
	if !errors.Is(err, apperr.ErrGateUnavailable) {
		t.Fatalf("expected gate unavailable, got owned=%v err=%v", owned, err)
	}
	// One internal retry.
	if got := q.totalCalls(); got != 4 {
		t.Fatalf("expected 4 queries (2 wallets x 2 attempts), got %d", got)
	}
}

func TestVerifyPartialFailureIsNegative(t *testing.T) {
	q := newFakeQuerier()
	q.failing[common.HexToAddress(wallet1)] = true
	g := newTestGate(q, Options{})

	owned, err := g.Verify(context.Background(), []string{wallet1, wallet2}, collectionA)
	if err != nil {
		t.Fatal(err)
	}
	if owned {
		t.Fatal("expected false")
	}
}

func TestVerifyQuorum(t *testing.T) {
	q := newFakeQuerier()
	q.failing[common.HexToAddress(wallet1)] = true
	g := newTestGate(q, Options{MinResponses: 2})

	_, err := g.Verify(context.Background(), []string{wallet1, wallet2}, collectionA)
	if !errors.Is(err, apperr.ErrGateUnavailable) {
		t.Fatalf("expected gate unavailable below quorum, got %v", err)
	}

	// Quorum is capped at the wallet count.
	owned, err := g.Verify(context.Background(), []string{wallet2}, collectionA)
	if err != nil || owned {
		t.Fatalf("expected clean negative, got owned=%v err=%v", owned, err)
	}
}

func TestVerifyValidation(t *testing.T) {
	tests := []struct {
		name       string
		wallets    []string
		collection string
	}{
		{"no wallets", nil, collectionA},
		{"bad wallet", []string{wallet1, "0x123"}, collectionA},
		{"bad collection", []string{wallet1}, "collection"},
		{"missing prefix garbage", []string{"zz11111111111111111111111111111111111111"}, collectionA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeQuerier()
			g := newTestGate(q, Options{})
			_, err := g.Verify(context.Background(), tt.wallets, tt.collection)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if q.totalCalls() != 0 {
				t.Fatal("validation must happen before any query")
			}
		})
	}
}

func TestVerifyDeduplicatesWallets(t *testing.T) {
	q := newFakeQuerier()
	g := newTestGate(q, Options{})

	upper := "0x" + "ABCDEF0123456789ABCDEF0123456789ABCDEF01"
	lower := "0x" + "abcdef0123456789abcdef0123456789abcdef01"
	if _, err := g.Verify(context.Background(), []string{upper, lower, upper}, collectionA); err != nil {
		t.Fatal(err)
	}
	if got := q.totalCalls(); got != 1 {
		t.Fatalf("expected 1 query after dedup, got %d", got)
	}
}

func TestVerifyShortCircuitsOnFirstOwner(t *testing.T) {
	q := newFakeQuerier()
	q.balances[common.HexToAddress(wallet1)] = 3
	q.blocking[common.HexToAddress(wallet2)] = true
	g := newTestGate(q, Options{QueryTimeout: 5 * time.Second})

	start := time.Now()
	owned, err := g.Verify(context.Background(), []string{wallet1, wallet2}, collectionA)
	if err != nil {
		t.Fatal(err)
	}
	if !owned {
		t.Fatal("expected access")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected early exit, took %s", elapsed)
	}
}

func TestVerifyPerWalletTimeout(t *testing.T) {
	q := newFakeQuerier()
	q.blocking[common.HexToAddress(wallet1)] = true
	g := newTestGate(q, Options{QueryTimeout: 20 * time.Millisecond})

	owned, err := g.Verify(context.Background(), []string{wallet1, wallet2}, collectionA)
	if err != nil {
		t.Fatal(err)
	}
	if owned {
		t.Fatal("timed out wallet must count as a negative vote")
	}
}

func TestVerifyCallerCancellation(t *testing.T) {
	q := newFakeQuerier()
	q.blocking[common.HexToAddress(wallet1)] = true
	g := newTestGate(q, Options{QueryTimeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	owned, err := g.Verify(ctx, []string{wallet1}, collectionA)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got owned=%v err=%v", owned, err)
	}
}
