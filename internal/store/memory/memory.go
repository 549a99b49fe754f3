package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tokolaris/backend/internal/domain"
	"tokolaris/backend/internal/store"
	"tokolaris/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	customersByID    map[string]domain.Customer
	customersByCode  map[string]string
	ledgerByCustomer map[string][]domain.PointsLedgerEntry
	counters         map[string]int64
	ordersByID       map[string]domain.Order
	refundsByID      map[string]domain.Refund
	shiftsByID       map[string]domain.Shift
	activeShiftByKey map[string]string
	suppliersByID    map[string]domain.Supplier
	purchaseOrders   map[string]domain.PurchaseOrder
	auditLogs        []domain.AuditLog
}

func New() *Store {
	return &Store{
		customersByID:    make(map[string]domain.Customer),
		customersByCode:  make(map[string]string),
		ledgerByCustomer: make(map[string][]domain.PointsLedgerEntry),
		counters:         make(map[string]int64),
		ordersByID:       make(map[string]domain.Order),
		refundsByID:      make(map[string]domain.Refund),
		shiftsByID:       make(map[string]domain.Shift),
		activeShiftByKey: make(map[string]string),
		suppliersByID:    make(map[string]domain.Supplier),
		purchaseOrders:   make(map[string]domain.PurchaseOrder),
		auditLogs:        make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded builds an in-memory store with a demo customer population whose
// purchase histories spread across the recency/frequency/monetary space, so
// the RFM endpoints return something meaningful out of the box.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	seedCustomers := []struct {
		name    string
		phone   string
		tier    string
		total   int64
		avail   int64
		history []seedOrder
	}{
		{"Budi Santoso", "0812-1111-0001", "gold", 1200, 800, []seedOrder{{2, 185000}, {9, 240000}, {16, 155000}, {30, 310000}}},
		{"Sari Wulandari", "0812-1111-0002", "gold", 950, 950, []seedOrder{{21, 275000}, {34, 190000}, {49, 225000}}},
		{"Rina Marlina", "0812-1111-0003", "silver", 120, 120, []seedOrder{{5, 48000}}},
		{"Agus Prasetyo", "0812-1111-0004", "silver", 600, 300, []seedOrder{{76, 210000}, {92, 260000}, {120, 180000}}},
		{"Tono Haryanto", "0812-1111-0005", "basic", 30, 30, []seedOrder{{300, 36000}}},
		{"Dewi Lestari", "0812-1111-0006", "basic", 60, 0, []seedOrder{{118, 42000}, {160, 51000}}},
		{"Eka Saputra", "0812-1111-0007", "silver", 240, 240, []seedOrder{{14, 98000}, {40, 87000}}},
		{"Fitri Handayani", "0812-1111-0008", "basic", 0, 0, nil},
	}

	for _, seed := range seedCustomers {
		s.counters["C"]++
		customer := domain.Customer{
			ID:              uuid.NewString(),
			Code:            fmt.Sprintf("C%05d", s.counters["C"]),
			Name:            seed.name,
			Phone:           seed.phone,
			MemberTier:      seed.tier,
			TotalPoints:     seed.total,
			AvailablePoints: seed.avail,
			CreatedAt:       now.AddDate(0, -6, 0),
			UpdatedAt:       now.AddDate(0, -6, 0),
		}
		s.customersByID[customer.ID] = customer
		s.customersByCode[customer.Code] = customer.ID

		for _, h := range seed.history {
			createdAt := now.AddDate(0, 0, -h.daysAgo)
			scope := "ORD-" + createdAt.Format("20060102")
			s.counters[scope]++
			order := domain.Order{
				ID:         uuid.NewString(),
				OrderNo:    fmt.Sprintf("%s-%03d", scope, s.counters[scope]),
				StoreID:    "toko-utama",
				CustomerID: customer.ID,
				TotalCents: h.totalCents,
				Status:     domain.OrderStatusPaid,
				CreatedAt:  createdAt,
			}
			s.ordersByID[order.ID] = order
		}
	}

	s.counters["S"]++
	supplier := domain.Supplier{
		ID:        uuid.NewString(),
		Code:      fmt.Sprintf("S%05d", s.counters["S"]),
		Name:      "PT Sumber Rejeki",
		Phone:     "021-555-0101",
		CreatedAt: now.AddDate(0, -6, 0),
	}
	s.suppliersByID[supplier.ID] = supplier

	return s
}

type seedOrder struct {
	daysAgo    int
	totalCents int64
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" || customer.Code == "" || customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.customersByID[customer.ID]; exists {
		return nil, store.ErrConflict
	}
	if _, exists := s.customersByCode[customer.Code]; exists {
		return nil, store.ErrConflict
	}

	s.customersByID[customer.ID] = customer
	s.customersByCode[customer.Code] = customer.ID
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := customer
	return &copied, nil
}

func (s *Store) GetCustomerByCode(_ context.Context, code string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.customersByCode[code]
	if !exists {
		return nil, store.ErrNotFound
	}
	customer := s.customersByID[id]
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, customer := range s.customersByID {
		customers = append(customers, customer)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Code, b.Code)
	})
	return customers, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.customersByID[customer.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}

	// Points balances only move through the ledger.
	customer.Code = existing.Code
	customer.TotalPoints = existing.TotalPoints
	customer.AvailablePoints = existing.AvailablePoints
	customer.CreatedAt = existing.CreatedAt
	customer.UpdatedAt = time.Now().UTC()

	s.customersByID[customer.ID] = customer
	updated := customer
	return &updated, nil
}

func (s *Store) GetCustomerPurchaseFacts(_ context.Context) ([]domain.CustomerFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type aggregate struct {
		last  *time.Time
		count int
		cents int64
	}
	byCustomer := make(map[string]*aggregate, len(s.customersByID))

	for _, order := range s.ordersByID {
		if order.CustomerID == "" || !isQualifyingStatus(order.Status) {
			continue
		}
		agg := byCustomer[order.CustomerID]
		if agg == nil {
			agg = &aggregate{}
			byCustomer[order.CustomerID] = agg
		}
		agg.count++
		agg.cents += order.TotalCents
		createdAt := order.CreatedAt
		if agg.last == nil || createdAt.After(*agg.last) {
			agg.last = &createdAt
		}
	}

	facts := make([]domain.CustomerFact, 0, len(s.customersByID))
	for _, customer := range s.customersByID {
		fact := domain.CustomerFact{
			CustomerID:   customer.ID,
			CustomerName: customer.Name,
			TotalAmount:  decimal.Zero,
		}
		if agg, ok := byCustomer[customer.ID]; ok {
			fact.LastPurchaseDate = agg.last
			fact.PurchaseCount = agg.count
			fact.TotalAmount = decimal.New(agg.cents, -2)
		}
		facts = append(facts, fact)
	}

	slices.SortFunc(facts, func(a, b domain.CustomerFact) int {
		return cmpString(a.CustomerID, b.CustomerID)
	})
	return facts, nil
}

func (s *Store) ApplyPointsAdjustment(_ context.Context, entry domain.PointsLedgerEntry) (*domain.PointsLedgerEntry, *domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customersByID[entry.CustomerID]
	if !exists {
		return nil, nil, store.ErrNotFound
	}
	if !isLedgerType(entry.Type) || entry.Points == 0 {
		return nil, nil, store.ErrInvalidInput
	}

	newBalance := customer.AvailablePoints + entry.Points
	if newBalance < 0 {
		return nil, nil, store.ErrInsufficientPoints
	}

	customer.AvailablePoints = newBalance
	if entry.Type == domain.PointsEarn {
		customer.TotalPoints += entry.Points
	}
	customer.UpdatedAt = time.Now().UTC()

	if entry.ID == "" {
		entry.ID = xid.New("pt")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.BalanceAfter = newBalance

	s.customersByID[customer.ID] = customer
	s.ledgerByCustomer[customer.ID] = append(s.ledgerByCustomer[customer.ID], entry)

	applied := entry
	updated := customer
	return &applied, &updated, nil
}

func (s *Store) ListPointsLedger(_ context.Context, customerID string, limit int) ([]domain.PointsLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.customersByID[customerID]; !exists {
		return nil, store.ErrNotFound
	}

	entries := s.ledgerByCustomer[customerID]
	result := make([]domain.PointsLedgerEntry, len(entries))
	copy(result, entries)
	slices.SortFunc(result, func(a, b domain.PointsLedgerEntry) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) NextSequence(_ context.Context, scopeKey string) (int64, error) {
	if strings.TrimSpace(scopeKey) == "" {
		return 0, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[scopeKey]++
	return s.counters[scopeKey], nil
}

func (s *Store) ResetSequence(_ context.Context, scopeKey string) error {
	if strings.TrimSpace(scopeKey) == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counters, scopeKey)
	return nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" || order.OrderNo == "" || order.TotalCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if order.CustomerID != "" {
		if _, exists := s.customersByID[order.CustomerID]; !exists {
			return nil, store.ErrNotFound
		}
	}
	if _, exists := s.ordersByID[order.ID]; exists {
		return nil, store.ErrConflict
	}

	s.ordersByID[order.ID] = order
	created := order
	return &created, nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := order
	return &copied, nil
}

func (s *Store) ListOrders(_ context.Context, storeID string, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.ordersByID))
	for _, order := range s.ordersByID {
		if storeID != "" && order.StoreID != storeID {
			continue
		}
		orders = append(orders, order)
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.OrderNo, a.OrderNo)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, status string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	order.Status = status
	s.ordersByID[id] = order
	updated := order
	return &updated, nil
}

func (s *Store) CreateRefund(_ context.Context, refund domain.Refund) (*domain.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if refund.ID == "" || refund.RefundNo == "" || refund.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.ordersByID[refund.OrderID]; !exists {
		return nil, store.ErrNotFound
	}

	s.refundsByID[refund.ID] = refund
	created := refund
	return &created, nil
}

func (s *Store) SetRefundPointsReversed(_ context.Context, id string, points int64) (*domain.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refund, exists := s.refundsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	refund.PointsReversed = points
	s.refundsByID[id] = refund
	updated := refund
	return &updated, nil
}

func (s *Store) CreateShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if shift.ID == "" || shift.ShiftNo == "" || shift.StoreID == "" || shift.TerminalID == "" {
		return nil, store.ErrInvalidInput
	}
	key := shiftKey(shift.StoreID, shift.TerminalID)
	if _, exists := s.activeShiftByKey[key]; exists {
		return nil, store.ErrConflict
	}

	s.shiftsByID[shift.ID] = shift
	s.activeShiftByKey[key] = shift.ID
	created := shift
	return &created, nil
}

func (s *Store) CloseActiveShift(_ context.Context, storeID string, terminalID string, closingCashCents int64, closedAt time.Time) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := shiftKey(storeID, terminalID)
	shiftID, exists := s.activeShiftByKey[key]
	if !exists {
		return nil, store.ErrNotFound
	}

	shift := s.shiftsByID[shiftID]
	shift.Status = domain.ShiftStatusClosed
	shift.ClosingCashCents = closingCashCents
	shift.ClosedAt = &closedAt
	s.shiftsByID[shiftID] = shift
	delete(s.activeShiftByKey, key)

	closed := shift
	return &closed, nil
}

func (s *Store) GetActiveShift(_ context.Context, storeID string, terminalID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shiftID, exists := s.activeShiftByKey[shiftKey(storeID, terminalID)]
	if !exists {
		return nil, store.ErrNotFound
	}
	shift := s.shiftsByID[shiftID]
	return &shift, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == "" || supplier.Code == "" || supplier.Name == "" {
		return nil, store.ErrInvalidInput
	}
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, supplier := range s.suppliersByID {
		suppliers = append(suppliers, supplier)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmpString(a.Code, b.Code)
	})
	return suppliers, nil
}

func (s *Store) CreatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if po.ID == "" || po.PONo == "" || po.TotalCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.suppliersByID[po.SupplierID]; !exists {
		return nil, store.ErrNotFound
	}
	s.purchaseOrders[po.ID] = po
	created := po
	return &created, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, 32)
	for _, entry := range s.auditLogs {
		if storeID != "" && entry.StoreID != storeID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	// Newest first, matching the SQL store's created_at DESC.
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func isQualifyingStatus(status string) bool {
	return status == domain.OrderStatusPaid || status == domain.OrderStatusCompleted
}

func isLedgerType(entryType string) bool {
	switch entryType {
	case domain.PointsEarn, domain.PointsRedeem, domain.PointsAdjust:
		return true
	}
	return false
}

func shiftKey(storeID string, terminalID string) string {
	return storeID + "|" + terminalID
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
