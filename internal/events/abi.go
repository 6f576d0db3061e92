package events

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"rocket-mimo/internal/domain"
)

// ErrNoLog is returned for event types without an on-chain log form.
var ErrNoLog = errors.New("event has no log encoding")

const launchEventABIJSON = `[
	{"anonymous":false,"type":"event","name":"UserParticipated","inputs":[
		{"indexed":true,"name":"user","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"UserWithdrawn","inputs":[
		{"indexed":true,"name":"user","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"penalty","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"TokensClaimed","inputs":[
		{"indexed":true,"name":"user","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"IssuerClaimed","inputs":[
		{"indexed":true,"name":"issuer","type":"address"},
		{"indexed":false,"name":"tokens","type":"uint256"}]}
]`

var launchEventABI = mustParseABI(launchEventABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse launch event abi: %v", err))
	}
	return parsed
}

// EncodeLog renders ev as the log the launch event contract would emit.
// The first topic is the event signature hash, the second the indexed user.
func EncodeLog(ev domain.LedgerEvent) (*types.Log, error) {
	var (
		name string
		args []interface{}
	)
	switch ev.Type {
	case domain.EventUserDeposited:
		name, args = "UserParticipated", []interface{}{nonNil(ev.Amount)}
	case domain.EventUserWithdrawn:
		name, args = "UserWithdrawn", []interface{}{nonNil(ev.Amount), nonNil(ev.Penalty)}
	case domain.EventUserClaimed:
		name, args = "TokensClaimed", []interface{}{nonNil(ev.Amount)}
	case domain.EventIssuerClaimed:
		name, args = "IssuerClaimed", []interface{}{nonNil(ev.Amount)}
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoLog, ev.Type)
	}

	event := launchEventABI.Events[name]
	data, err := event.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}

	return &types.Log{
		Address: ev.LaunchEvent,
		Topics:  []common.Hash{event.ID, common.BytesToHash(ev.User.Bytes())},
		Data:    data,
		Index:   uint(ev.Sequence),
	}, nil
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
