package memory

import (
	"math/big"

	"rocket-mimo/internal/domain"
)

func copyRecord(r *domain.LaunchEventRecord) *domain.LaunchEventRecord {
	out := *r
	out.Params = r.Params.Clone()
	return &out
}

func copyBalance(b *domain.UserBalance) *domain.UserBalance {
	out := *b
	out.Balance = domain.Copy(b.Balance)
	return &out
}

func copyEvent(e *domain.LedgerEvent) *domain.LedgerEvent {
	out := *e
	out.Amount = copyOptional(e.Amount)
	out.Penalty = copyOptional(e.Penalty)
	return &out
}

// copyOptional preserves nil, unlike domain.Copy.
func copyOptional(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
