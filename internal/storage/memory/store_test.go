package memory

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/storage"
)

var (
	eventA = common.HexToAddress("0xe7e0000000000000000000000000000000000001")
	eventB = common.HexToAddress("0xe7e0000000000000000000000000000000000002")
	tokenA = common.HexToAddress("0xa0c0000000000000000000000000000000000001")
	tokenB = common.HexToAddress("0xa0c0000000000000000000000000000000000002")
	alice  = common.HexToAddress("0xa11ce00000000000000000000000000000000003")
	bob    = common.HexToAddress("0xb0b0000000000000000000000000000000000004")
)

func newRecord(addr, token common.Address, createdAt int64) *domain.LaunchEventRecord {
	return &domain.LaunchEventRecord{
		Address: addr,
		Token:   token,
		Params: domain.LaunchParams{
			Token:        token,
			AuctionStart: time.UnixMilli(createdAt + 60_000),
			TokenAmount:  domain.MustParseEther("105"),
		},
		Schedule:  domain.DefaultSchedule(),
		CreatedAt: createdAt,
	}
}

func TestLaunchEventStore_InsertAndGet(t *testing.T) {
	store := NewLaunchEventStore()
	ctx := context.Background()

	r := newRecord(eventA, tokenA, 1704067200000)
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByToken(ctx, tokenA)
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if got.Address != eventA {
		t.Errorf("Address mismatch: got %s, want %s", got.Address.Hex(), eventA.Hex())
	}

	got, err = store.GetByAddress(ctx, eventA)
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if got.Params.TokenAmount.Cmp(r.Params.TokenAmount) != 0 {
		t.Errorf("TokenAmount mismatch: got %s", got.Params.TokenAmount)
	}

	// mutating the returned copy must not affect the store
	got.Params.TokenAmount.SetInt64(1)
	again, _ := store.GetByAddress(ctx, eventA)
	if again.Params.TokenAmount.Cmp(r.Params.TokenAmount) != 0 {
		t.Error("store returned a shared big.Int")
	}
}

func TestLaunchEventStore_DuplicateKey(t *testing.T) {
	store := NewLaunchEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newRecord(eventA, tokenA, 1)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// same address
	if err := store.Insert(ctx, newRecord(eventA, tokenB, 2)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for address, got %v", err)
	}
	// same token
	if err := store.Insert(ctx, newRecord(eventB, tokenA, 2)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for token, got %v", err)
	}
}

func TestLaunchEventStore_NotFound(t *testing.T) {
	store := NewLaunchEventStore()
	ctx := context.Background()

	if _, err := store.GetByToken(ctx, tokenA); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetByAddress(ctx, eventA); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLaunchEventStore_ListPaginated(t *testing.T) {
	store := NewLaunchEventStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		addr := common.BigToAddress(big.NewInt(int64(100 + i)))
		token := common.BigToAddress(big.NewInt(int64(200 + i)))
		if err := store.Insert(ctx, newRecord(addr, token, int64(5-i))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := store.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 records, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].CreatedAt > all[i].CreatedAt {
			t.Errorf("records not sorted by created_at at %d", i)
		}
	}

	page, err := store.List(ctx, 1, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 2 || page[0].CreatedAt != 2 || page[1].CreatedAt != 3 {
		t.Errorf("unexpected page: %d records", len(page))
	}

	empty, err := store.List(ctx, 10, 2)
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty page, got %d records, err %v", len(empty), err)
	}

	if _, err := store.List(ctx, -1, 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBalanceStore_Upsert(t *testing.T) {
	store := NewBalanceStore()
	ctx := context.Background()

	b := &domain.UserBalance{LaunchEvent: eventA, User: alice, Balance: domain.MustParseEther("1"), UpdatedAt: 1}
	if err := store.Upsert(ctx, b); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	b2 := &domain.UserBalance{LaunchEvent: eventA, User: alice, Balance: domain.MustParseEther("0.4"), UpdatedAt: 2}
	if err := store.Upsert(ctx, b2); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, eventA, alice)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Balance.Cmp(domain.MustParseEther("0.4")) != 0 || got.UpdatedAt != 2 {
		t.Errorf("expected latest balance, got %s at %d", got.Balance, got.UpdatedAt)
	}

	if _, err := store.Get(ctx, eventA, bob); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	bad := &domain.UserBalance{LaunchEvent: eventA, User: bob, Balance: big.NewInt(-1)}
	if err := store.Upsert(ctx, bad); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBalanceStore_ListByLaunchEvent(t *testing.T) {
	store := NewBalanceStore()
	ctx := context.Background()

	for _, u := range []common.Address{bob, alice} {
		_ = store.Upsert(ctx, &domain.UserBalance{LaunchEvent: eventA, User: u, Balance: big.NewInt(1)})
	}
	_ = store.Upsert(ctx, &domain.UserBalance{LaunchEvent: eventB, User: alice, Balance: big.NewInt(1)})

	got, err := store.ListByLaunchEvent(ctx, eventA)
	if err != nil {
		t.Fatalf("ListByLaunchEvent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 balances, got %d", len(got))
	}
	if got[0].User != alice || got[1].User != bob {
		t.Error("balances not sorted by user")
	}
}

func newEvent(launchEvent, user common.Address, seq uint64) *domain.LedgerEvent {
	return &domain.LedgerEvent{
		EventID:     fmt.Sprintf("%s-%d", launchEvent.Hex(), seq),
		Type:        domain.EventUserDeposited,
		LaunchEvent: launchEvent,
		Token:       tokenA,
		Sequence:    seq,
		User:        user,
		Amount:      big.NewInt(int64(seq)),
		Phase:       domain.PhaseActive,
		Timestamp:   int64(seq) * 1000,
	}
}

func TestEventLogStore_InsertAndQuery(t *testing.T) {
	store := NewEventLogStore()
	ctx := context.Background()

	for _, seq := range []uint64{3, 1, 2} {
		user := alice
		if seq == 2 {
			user = bob
		}
		if err := store.Insert(ctx, newEvent(eventA, user, seq)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := store.GetByLaunchEvent(ctx, eventA)
	if err != nil {
		t.Fatalf("GetByLaunchEvent failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	for i, e := range all {
		if e.Sequence != uint64(i+1) {
			t.Errorf("event %d: sequence %d", i, e.Sequence)
		}
	}
	if all[0].Penalty != nil {
		t.Error("nil penalty must stay nil")
	}

	mine, err := store.GetByUser(ctx, eventA, alice)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 events for alice, got %d", len(mine))
	}

	if err := store.Insert(ctx, newEvent(eventA, alice, 1)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestEventLogStore_InsertBulkAtomic(t *testing.T) {
	store := NewEventLogStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newEvent(eventA, alice, 2)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	batch := []*domain.LedgerEvent{newEvent(eventA, alice, 1), newEvent(eventA, alice, 2)}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByLaunchEvent(ctx, eventA)
	if len(got) != 1 {
		t.Errorf("failed batch must not insert anything, got %d events", len(got))
	}

	dup := []*domain.LedgerEvent{newEvent(eventB, alice, 1), newEvent(eventB, alice, 1)}
	if err := store.InsertBulk(ctx, dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
}

func TestEventLogStore_ConcurrentInsert(t *testing.T) {
	store := NewEventLogStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			_ = store.Insert(ctx, newEvent(eventA, alice, seq))
		}(uint64(i))
	}
	wg.Wait()

	got, _ := store.GetByLaunchEvent(ctx, eventA)
	if len(got) != 50 {
		t.Errorf("expected 50 events, got %d", len(got))
	}
}
