package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UserBalance is the latest deposit balance of a user in a launch event.
// Corresponds to user_balances table in PostgreSQL.
type UserBalance struct {
	LaunchEvent common.Address
	User        common.Address
	Balance     *big.Int
	Claimed     bool
	UpdatedAt   int64 // Unix timestamp in milliseconds
}
