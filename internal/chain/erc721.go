// Package chain reads NFT collection state over JSON-RPC.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// erc721ABI covers the read-only calls we need: balanceOf from ERC-721,
// name and symbol from the metadata extension, and totalSupply from the
// enumerable extension.
const erc721ABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

var parsedABI = mustParseABI(erc721ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// CollectionPreview summarizes a collection for display.
type CollectionPreview struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply string `json:"total_supply,omitempty"` // decimal; empty when not enumerable
}

// ERC721Client queries ERC-721 contracts.
type ERC721Client struct {
	caller ethereum.ContractCaller
	closer func()
}

// NewERC721Client wraps any contract caller.
func NewERC721Client(caller ethereum.ContractCaller) *ERC721Client {
	return &ERC721Client{caller: caller, closer: func() {}}
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ERC721Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	if _, err := client.ChainID(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("rpc chain id: %w", err)
	}
	return &ERC721Client{caller: client, closer: client.Close}, nil
}

// Close releases the RPC connection.
func (c *ERC721Client) Close() {
	c.closer()
}

// BalanceOf returns how many tokens of collection owner holds.
func (c *ERC721Client) BalanceOf(ctx context.Context, collection, owner common.Address) (*big.Int, error) {
	var bal *big.Int
	if err := c.call(ctx, collection, "balanceOf", &bal, owner); err != nil {
		return nil, err
	}
	return bal, nil
}

// Preview reads the collection's name, symbol and, when available, total supply.
func (c *ERC721Client) Preview(ctx context.Context, collection common.Address) (CollectionPreview, error) {
	p := CollectionPreview{Address: collection.Hex()}
	if err := c.call(ctx, collection, "name", &p.Name); err != nil {
		return CollectionPreview{}, err
	}
	if err := c.call(ctx, collection, "symbol", &p.Symbol); err != nil {
		return CollectionPreview{}, err
	}

	var supply *big.Int
	if err := c.call(ctx, collection, "totalSupply", &supply); err == nil && supply != nil {
		p.TotalSupply = supply.String()
	}
	return p, nil
}

func (c *ERC721Client) call(ctx context.Context, contract common.Address, method string, out interface{}, args ...interface{}) error {
	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	if len(raw) == 0 {
		return errors.New("call " + method + ": empty response (not a contract?)")
	}
	values, err := parsedABI.Unpack(method, raw)
	if err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return fmt.Errorf("unpack %s: expected 1 value, got %d", method, len(values))
	}

	switch dst := out.(type) {
	case **big.Int:
		v, ok := values[0].(*big.Int)
		if !ok {
			return fmt.Errorf("unpack %s: unexpected type %T", method, values[0])
		}
		*dst = v
	case *string:
		v, ok := values[0].(string)
		if !ok {
			return fmt.Errorf("unpack %s: unexpected type %T", method, values[0])
		}
		*dst = v
	default:
		return fmt.Errorf("unsupported output %T", out)
	}
	return nil
}
