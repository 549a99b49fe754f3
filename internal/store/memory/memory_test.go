package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tokolaris/backend/internal/domain"
	"tokolaris/backend/internal/store"
)

func seedCustomerID(t *testing.T, s *Store, code string) string {
	t.Helper()
	customer, err := s.GetCustomerByCode(context.Background(), code)
	if err != nil {
		t.Fatalf("seeded customer %s missing: %v", code, err)
	}
	return customer.ID
}

func TestNextSequenceConcurrentUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	const workers = 100
	results := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := s.NextSequence(ctx, "ORD-20260115")
			if err != nil {
				t.Errorf("next sequence: %v", err)
				return
			}
			results <- seq
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, workers)
	for seq := range results {
		if seen[seq] {
			t.Fatalf("duplicate sequence value %d issued under concurrency", seq)
		}
		seen[seq] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d unique values, got %d", workers, len(seen))
	}
}

func TestApplyPointsAdjustmentEarn(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	id := seedCustomerID(t, s, "C00008")

	before, err := s.GetCustomerByID(ctx, id)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}

	entry, customer, err := s.ApplyPointsAdjustment(ctx, domain.PointsLedgerEntry{
		CustomerID:  id,
		Type:        domain.PointsEarn,
		Points:      50,
		Description: "test earn",
	})
	if err != nil {
		t.Fatalf("apply earn: %v", err)
	}

	if customer.AvailablePoints != before.AvailablePoints+50 {
		t.Fatalf("available = %d, want %d", customer.AvailablePoints, before.AvailablePoints+50)
	}
	if customer.TotalPoints != before.TotalPoints+50 {
		t.Fatalf("total = %d, want %d", customer.TotalPoints, before.TotalPoints+50)
	}
	if entry.BalanceAfter != customer.AvailablePoints {
		t.Fatalf("entry balance_after = %d, want %d", entry.BalanceAfter, customer.AvailablePoints)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Fatalf("entry not fully populated: %+v", entry)
	}

	ledger, err := s.ListPointsLedger(ctx, id, 10)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(ledger) != 1 || ledger[0].ID != entry.ID {
		t.Fatalf("expected one ledger entry %s, got %+v", entry.ID, ledger)
	}
}

func TestApplyPointsAdjustmentRedeemDoesNotTouchTotal(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	id := seedCustomerID(t, s, "C00001")

	before, _ := s.GetCustomerByID(ctx, id)

	_, customer, err := s.ApplyPointsAdjustment(ctx, domain.PointsLedgerEntry{
		CustomerID: id,
		Type:       domain.PointsRedeem,
		Points:     -100,
	})
	if err != nil {
		t.Fatalf("apply redeem: %v", err)
	}
	if customer.AvailablePoints != before.AvailablePoints-100 {
		t.Fatalf("available = %d, want %d", customer.AvailablePoints, before.AvailablePoints-100)
	}
	if customer.TotalPoints != before.TotalPoints {
		t.Fatalf("redeem must not change lifetime total: %d != %d", customer.TotalPoints, before.TotalPoints)
	}
}

func TestApplyPointsAdjustmentInsufficientLeavesStateUntouched(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	id := seedCustomerID(t, s, "C00005")

	before, _ := s.GetCustomerByID(ctx, id)

	_, _, err := s.ApplyPointsAdjustment(ctx, domain.PointsLedgerEntry{
		CustomerID: id,
		Type:       domain.PointsRedeem,
		Points:     -(before.AvailablePoints + 1),
	})
	if !errors.Is(err, store.ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}

	after, _ := s.GetCustomerByID(ctx, id)
	if after.AvailablePoints != before.AvailablePoints || after.TotalPoints != before.TotalPoints {
		t.Fatalf("failed redeem mutated balances: before=%+v after=%+v", before, after)
	}
	ledger, err := s.ListPointsLedger(ctx, id, 10)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(ledger) != 0 {
		t.Fatalf("failed redeem left a ledger entry: %+v", ledger)
	}
}

func TestApplyPointsAdjustmentValidation(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	id := seedCustomerID(t, s, "C00001")

	if _, _, err := s.ApplyPointsAdjustment(ctx, domain.PointsLedgerEntry{
		CustomerID: "missing", Type: domain.PointsEarn, Points: 5,
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, _, err := s.ApplyPointsAdjustment(ctx, domain.PointsLedgerEntry{
		CustomerID: id, Type: "BONUS", Points: 5,
	}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown type, got %v", err)
	}

	if _, _, err := s.ApplyPointsAdjustment(ctx, domain.PointsLedgerEntry{
		CustomerID: id, Type: domain.PointsEarn, Points: 0,
	}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero points, got %v", err)
	}
}

func TestUpdateCustomerPreservesCodeAndBalances(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	id := seedCustomerID(t, s, "C00002")

	before, _ := s.GetCustomerByID(ctx, id)

	updated, err := s.UpdateCustomer(ctx, domain.Customer{
		ID:              id,
		Code:            "HACKED",
		Name:            "Sari W.",
		Phone:           "0812-9999-0002",
		MemberTier:      "platinum",
		TotalPoints:     999999,
		AvailablePoints: 999999,
	})
	if err != nil {
		t.Fatalf("update customer: %v", err)
	}

	if updated.Code != before.Code {
		t.Fatalf("code must be immutable: got %s", updated.Code)
	}
	if updated.TotalPoints != before.TotalPoints || updated.AvailablePoints != before.AvailablePoints {
		t.Fatalf("profile update must not move point balances: %+v", updated)
	}
	if updated.Name != "Sari W." || updated.MemberTier != "platinum" {
		t.Fatalf("profile fields not applied: %+v", updated)
	}
}

func TestGetCustomerPurchaseFacts(t *testing.T) {
	s := NewSeeded()
	facts, err := s.GetCustomerPurchaseFacts(context.Background())
	if err != nil {
		t.Fatalf("purchase facts: %v", err)
	}
	if len(facts) != 8 {
		t.Fatalf("expected 8 facts, got %d", len(facts))
	}

	var neverPurchased *domain.CustomerFact
	for i := range facts {
		if facts[i].CustomerName == "Fitri Handayani" {
			neverPurchased = &facts[i]
		}
	}
	if neverPurchased == nil {
		t.Fatalf("seeded customer without history missing from facts")
	}
	if neverPurchased.LastPurchaseDate != nil || neverPurchased.PurchaseCount != 0 {
		t.Fatalf("expected empty history, got %+v", neverPurchased)
	}
	if !neverPurchased.TotalAmount.IsZero() {
		t.Fatalf("expected zero amount, got %s", neverPurchased.TotalAmount)
	}
}

func TestShiftLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	shift := domain.Shift{
		ID:         "shift-1",
		ShiftNo:    "SHIFT-20260115-001",
		StoreID:    "toko-utama",
		TerminalID: "kasir-1",
		Status:     domain.ShiftStatusOpen,
		OpenedAt:   time.Now().UTC(),
	}
	if _, err := s.CreateShift(ctx, shift); err != nil {
		t.Fatalf("create shift: %v", err)
	}

	second := shift
	second.ID = "shift-2"
	second.ShiftNo = "SHIFT-20260115-002"
	if _, err := s.CreateShift(ctx, second); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for second open shift, got %v", err)
	}

	closed, err := s.CloseActiveShift(ctx, "toko-utama", "kasir-1", 750000, time.Now().UTC())
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if closed.Status != domain.ShiftStatusClosed || closed.ClosedAt == nil {
		t.Fatalf("shift not closed: %+v", closed)
	}

	if _, err := s.GetActiveShift(ctx, "toko-utama", "kasir-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no active shift after close, got %v", err)
	}
}

func TestListOrdersFiltersAndSorts(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := s.CreateOrder(ctx, domain.Order{
			ID:         fmt.Sprintf("o-%d", i),
			OrderNo:    fmt.Sprintf("ORD-20260115-%03d", i+1),
			StoreID:    "toko-utama",
			TotalCents: 10000,
			Status:     domain.OrderStatusPaid,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
	}
	if _, err := s.CreateOrder(ctx, domain.Order{
		ID: "o-other", OrderNo: "ORD-20260115-900", StoreID: "cabang-2",
		TotalCents: 5000, Status: domain.OrderStatusPaid, CreatedAt: base,
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	orders, err := s.ListOrders(ctx, "toko-utama", 10)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders for store, got %d", len(orders))
	}
	if orders[0].OrderNo != "ORD-20260115-003" {
		t.Fatalf("expected newest first, got %s", orders[0].OrderNo)
	}
}

func TestListAuditLogsNewestFirstAtLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := s.CreateAuditLog(ctx, domain.AuditLog{
			StoreID:   "toko-utama",
			Action:    fmt.Sprintf("action_%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("create audit log: %v", err)
		}
	}

	logs, err := s.ListAuditLogs(ctx, "toko-utama", base.Add(-time.Hour), base.Add(time.Hour), 2)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected limit of 2 entries, got %d", len(logs))
	}
	if logs[0].Action != "action_2" || logs[1].Action != "action_1" {
		t.Fatalf("expected newest entries first, got %s then %s", logs[0].Action, logs[1].Action)
	}
}
