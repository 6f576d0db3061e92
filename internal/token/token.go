// Package token defines the fungible and non-fungible token interfaces the
// launch system consumes, plus in-memory ledgers implementing them.
package token

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the sender balance.
	ErrInsufficientBalance = errors.New("token: transfer amount exceeds balance")

	// ErrInsufficientAllowance is returned when transferFrom exceeds the allowance.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")

	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("token: invalid amount")

	// ErrUnknownToken is returned by a Registry that has no ledger for an address.
	ErrUnknownToken = errors.New("token: unknown token")

	// ErrAlreadyMinted is returned when minting an existing token id.
	ErrAlreadyMinted = errors.New("token: token id already minted")
)

// BalanceReader is the read half of ERC-20 and ERC-721: balanceOf.
type BalanceReader interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
}

// ERC20 is the standard fungible-token surface. The caller of a mutating
// call is passed explicitly, the way msg.sender is implicit on chain.
type ERC20 interface {
	BalanceReader
	Address() common.Address
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error
	Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
}

// Registry resolves an ERC-20 ledger by token address.
type Registry interface {
	ERC20(addr common.Address) (ERC20, error)
}
