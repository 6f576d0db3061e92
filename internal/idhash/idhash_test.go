package idhash

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
)

func TestComputeLaunchEventAddress_Deterministic(t *testing.T) {
	factory := common.HexToAddress("0x1000000000000000000000000000000000000001")
	prototype := common.HexToAddress("0x2000000000000000000000000000000000000002")
	tokenA := common.HexToAddress("0x3000000000000000000000000000000000000003")
	tokenB := common.HexToAddress("0x4000000000000000000000000000000000000004")

	a1 := ComputeLaunchEventAddress(factory, prototype, tokenA)
	a2 := ComputeLaunchEventAddress(factory, prototype, tokenA)
	b := ComputeLaunchEventAddress(factory, prototype, tokenB)

	if a1 != a2 {
		t.Errorf("expected same address for same inputs, got %s and %s", a1.Hex(), a2.Hex())
	}
	if a1 == b {
		t.Error("expected different addresses for different tokens")
	}
	if a1 == (common.Address{}) {
		t.Error("expected non-zero address")
	}

	otherFactory := common.HexToAddress("0x5000000000000000000000000000000000000005")
	if ComputeLaunchEventAddress(otherFactory, prototype, tokenA) == a1 {
		t.Error("expected factory to change the derived address")
	}
}

func TestComputeEventID(t *testing.T) {
	ev := common.HexToAddress("0x1000000000000000000000000000000000000001")

	tests := []struct {
		name string
		seq  uint64
		typ  domain.EventType
	}{
		{name: "created", seq: 1, typ: domain.EventLaunchEventCreated},
		{name: "deposit", seq: 2, typ: domain.EventUserDeposited},
		{name: "withdraw", seq: 3, typ: domain.EventUserWithdrawn},
	}

	seen := make(map[string]bool)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := ComputeEventID(ev, tt.seq, tt.typ)
			if len(id) != 64 {
				t.Errorf("expected 64 hex chars, got %d", len(id))
			}
			if id != ComputeEventID(ev, tt.seq, tt.typ) {
				t.Error("expected deterministic id")
			}
			if seen[id] {
				t.Errorf("duplicate id %s", id)
			}
			seen[id] = true
		})
	}
}
