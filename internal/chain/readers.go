package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"

	"rocket-mimo/internal/allocation"
	"rocket-mimo/internal/token"
)

var (
	funcBalanceOf   = w3.MustNewFunc("balanceOf(address)", "uint256")
	funcTotalSupply = w3.MustNewFunc("totalSupply()", "uint256")
	funcUserPoints  = w3.MustNewFunc("userPoints(address)", "uint256")
)

// Caller executes read-only contract calls. *Client implements it.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// callUint256 encodes fn with args, calls to and decodes a single uint256.
func callUint256(ctx context.Context, c Caller, to common.Address, fn *w3.Func, args ...any) (*big.Int, error) {
	input, err := fn.EncodeArgs(args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", fn.Signature, err)
	}
	output, err := c.Call(ctx, to, input)
	if err != nil {
		return nil, err
	}
	out := new(big.Int)
	if err := fn.DecodeReturns(output, out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fn.Signature, err)
	}
	return out, nil
}

// NFTCollection reads an on-chain ERC-721 collection.
type NFTCollection struct {
	caller  Caller
	address common.Address
}

var _ token.BalanceReader = (*NFTCollection)(nil)

// NewNFTCollection binds the collection at address.
func NewNFTCollection(c Caller, address common.Address) *NFTCollection {
	return &NFTCollection{caller: c, address: address}
}

// Address returns the collection address.
func (n *NFTCollection) Address() common.Address { return n.address }

// BalanceOf returns the number of tokens held by owner.
func (n *NFTCollection) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return callUint256(ctx, n.caller, n.address, funcBalanceOf, owner)
}

// PointsLedger reads an on-chain MasterChefPoint contract.
type PointsLedger struct {
	caller  Caller
	address common.Address
}

var _ allocation.PointsSource = (*PointsLedger)(nil)

// NewPointsLedger binds the points ledger at address.
func NewPointsLedger(c Caller, address common.Address) *PointsLedger {
	return &PointsLedger{caller: c, address: address}
}

// Address returns the ledger address.
func (p *PointsLedger) Address() common.Address { return p.address }

// UserPoints returns the points of user.
func (p *PointsLedger) UserPoints(ctx context.Context, user common.Address) (*big.Int, error) {
	return callUint256(ctx, p.caller, p.address, funcUserPoints, user)
}

// ERC20 reads an on-chain ERC-20 token.
type ERC20 struct {
	caller  Caller
	address common.Address
}

var _ token.BalanceReader = (*ERC20)(nil)

// NewERC20 binds the token at address.
func NewERC20(c Caller, address common.Address) *ERC20 {
	return &ERC20{caller: c, address: address}
}

// Address returns the token address.
func (e *ERC20) Address() common.Address { return e.address }

// BalanceOf returns the balance of owner.
func (e *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return callUint256(ctx, e.caller, e.address, funcBalanceOf, owner)
}

// TotalSupply returns the token supply.
func (e *ERC20) TotalSupply(ctx context.Context) (*big.Int, error) {
	return callUint256(ctx, e.caller, e.address, funcTotalSupply)
}
