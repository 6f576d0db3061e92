package idhash

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ComputeLaunchEventAddress derives the address of the launch event the
// factory creates for token, CREATE2-style:
// keccak256(0xff|factory|keccak256(token)|keccak256(prototype))[12:].
// The same (factory, prototype, token) always yields the same address.
func ComputeLaunchEventAddress(factory, prototype, token common.Address) common.Address {
	salt := crypto.Keccak256Hash(token.Bytes())
	initHash := crypto.Keccak256(prototype.Bytes())
	return crypto.CreateAddress2(factory, salt, initHash)
}
