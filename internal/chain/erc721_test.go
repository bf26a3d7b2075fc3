package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// fakeContract answers ABI calls for a single collection.
type fakeContract struct {
	address  common.Address
	balances map[common.Address]int64
	name     string
	symbol   string
	supply   *big.Int // nil: totalSupply reverts
}

func (f *fakeContract) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if call.To == nil || *call.To != f.address {
		return nil, nil
	}
	method, err := parsedABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "balanceOf":
		args, err := method.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		owner := args[0].(common.Address)
		return method.Outputs.Pack(big.NewInt(f.balances[owner]))
	case "name":
		return method.Outputs.Pack(f.name)
	case "symbol":
		return method.Outputs.Pack(f.symbol)
	case "totalSupply":
		if f.supply == nil {
			return nil, errors.New("execution reverted")
		}
		return method.Outputs.Pack(f.supply)
	}
	return nil, errors.New("unknown method")
}

var (
	collection = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	holder     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	stranger   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestBalanceOf(t *testing.T) {
	c := NewERC721Client(&fakeContract{address: collection, balances: map[common.Address]int64{holder: 2}})

	bal, err := c.BalanceOf(context.Background(), collection, holder)
	if err != nil {
		t.Fatal(err)
	}
	if bal.Int64() != 2 {
		t.Fatalf("expected 2, got %s", bal)
	}

	bal, err = c.BalanceOf(context.Background(), collection, stranger)
	if err != nil {
		t.Fatal(err)
	}
	if bal.Sign() != 0 {
		t.Fatalf("expected 0, got %s", bal)
	}
}

func TestBalanceOfNonContract(t *testing.T) {
	c := NewERC721Client(&fakeContract{address: collection})
	other := common.HexToAddress("0x4444444444444444444444444444444444444444")
	if _, err := c.BalanceOf(context.Background(), other, holder); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestPreview(t *testing.T) {
	c := NewERC721Client(&fakeContract{address: collection, name: "Apes", symbol: "APE", supply: big.NewInt(10000)})
	p, err := c.Preview(context.Background(), collection)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Apes" || p.Symbol != "APE" || p.TotalSupply != "10000" {
		t.Fatalf("unexpected preview %+v", p)
	}

	// Non-enumerable collections have no total supply.
	c = NewERC721Client(&fakeContract{address: collection, name: "Apes", symbol: "APE"})
	p, err = c.Preview(context.Background(), collection)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalSupply != "" {
		t.Fatalf("expected empty total supply, got %q", p.TotalSupply)
	}
}
