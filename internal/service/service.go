package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tokolaris/backend/internal/domain"
	"tokolaris/backend/internal/numbering"
	"tokolaris/backend/internal/rfm"
	"tokolaris/backend/internal/store"
	"tokolaris/backend/internal/xid"
)

// pointsEarnDivisorCents controls loyalty accrual: one point per full
// Rp100.00 of a settled order.
const pointsEarnDivisorCents = 10000

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo           store.Repository
	analyzer       *rfm.Engine
	numbers        *numbering.Generator
	logger         *zap.Logger
	managerPINHash []byte
	defaultStoreID string
}

func New(repo store.Repository, analyzer *rfm.Engine, numbers *numbering.Generator, logger *zap.Logger, managerPINHash []byte, defaultStoreID string) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultStoreID == "" {
		defaultStoreID = "toko-utama"
	}

	return &Service{
		repo:           repo,
		analyzer:       analyzer,
		numbers:        numbers,
		logger:         logger,
		managerPINHash: managerPINHash,
		defaultStoreID: defaultStoreID,
	}
}

func (s *Service) RegisterCustomer(ctx context.Context, req domain.CustomerRegisterRequest) (domain.CustomerResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.MemberTier = strings.ToLower(strings.TrimSpace(req.MemberTier))

	if req.Name == "" {
		return domain.CustomerResponse{}, store.ErrInvalidInput
	}
	if req.MemberTier == "" {
		req.MemberTier = "regular"
	}

	code, err := s.numbers.Next(ctx, numbering.CustomerCode)
	if err != nil {
		return domain.CustomerResponse{}, err
	}

	customer := domain.Customer{
		ID:         uuid.NewString(),
		Code:       code,
		Name:       req.Name,
		Phone:      req.Phone,
		MemberTier: req.MemberTier,
		CreatedAt:  time.Now().UTC(),
	}
	saved, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.CustomerResponse{}, err
	}

	s.logAudit(ctx, s.defaultStoreID, "customer_register", "customer", saved.ID, fmt.Sprintf("code=%s,name=%s", saved.Code, saved.Name))

	return domain.CustomerResponse{Customer: *saved}, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.CustomerResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.CustomerResponse{}, store.ErrInvalidInput
	}

	customer, err := s.repo.GetCustomerByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		// Cashiers look up customers by the printed member code too.
		customer, err = s.repo.GetCustomerByCode(ctx, strings.ToUpper(id))
	}
	if err != nil {
		return domain.CustomerResponse{}, err
	}

	return domain.CustomerResponse{Customer: *customer}, nil
}

func (s *Service) ListCustomers(ctx context.Context) (domain.CustomerListResponse, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return domain.CustomerListResponse{}, err
	}
	return domain.CustomerListResponse{Customers: customers}, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.CustomerResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.CustomerResponse{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.CustomerResponse{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.CustomerResponse{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.MemberTier != nil {
		tier := strings.ToLower(strings.TrimSpace(*req.MemberTier))
		if tier == "" {
			return domain.CustomerResponse{}, store.ErrInvalidInput
		}
		updated.MemberTier = tier
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.CustomerResponse{}, err
	}

	s.logAudit(ctx, s.defaultStoreID, "customer_update", "customer", saved.ID, encodeFieldChanges(DiffFields(*existing, *saved)))

	return domain.CustomerResponse{Customer: *saved}, nil
}

// AdjustPoints runs one loyalty ledger transaction. Business failures
// (unknown customer, insufficient balance, bad input) are reported in the
// result rather than as errors; only the caller's wiring can fail hard.
func (s *Service) AdjustPoints(ctx context.Context, req domain.PointsAdjustRequest) domain.PointsAdjustResult {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.Type = strings.ToUpper(strings.TrimSpace(req.Type))

	points, ok := normalizePointsDelta(req.Type, req.Points)
	if req.CustomerID == "" || !ok {
		return domain.PointsAdjustResult{
			Code:    domain.AdjustCodeInvalid,
			Message: "permintaan poin tidak valid",
		}
	}

	entry := domain.PointsLedgerEntry{
		ID:          xid.New("pt"),
		CustomerID:  req.CustomerID,
		Type:        req.Type,
		Points:      points,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   time.Now().UTC(),
	}

	applied, customer, err := s.repo.ApplyPointsAdjustment(ctx, entry)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.PointsAdjustResult{
				Code:    domain.AdjustCodeNotFound,
				Message: "pelanggan tidak ditemukan",
			}
		case errors.Is(err, store.ErrInsufficientPoints):
			return domain.PointsAdjustResult{
				Code:    domain.AdjustCodeInsufficientBalance,
				Message: "poin tidak mencukupi",
			}
		case errors.Is(err, store.ErrInvalidInput):
			return domain.PointsAdjustResult{
				Code:    domain.AdjustCodeInvalid,
				Message: "permintaan poin tidak valid",
			}
		default:
			s.logger.Warn("points adjustment failed",
				zap.String("customer_id", req.CustomerID),
				zap.String("type", req.Type),
				zap.Error(err))
			return domain.PointsAdjustResult{
				Code:    domain.AdjustCodeFailed,
				Message: "operasi gagal, silakan coba lagi",
			}
		}
	}

	s.logAudit(ctx, s.defaultStoreID, "points_adjust", "customer", customer.ID,
		fmt.Sprintf("type=%s,points=%d,balance_after=%d", applied.Type, applied.Points, applied.BalanceAfter))

	return domain.PointsAdjustResult{
		Success:         true,
		Code:            domain.AdjustCodeOK,
		Message:         "poin berhasil diperbarui",
		Entry:           applied,
		TotalPoints:     customer.TotalPoints,
		AvailablePoints: customer.AvailablePoints,
	}
}

// normalizePointsDelta fixes the sign per entry type: EARN is always a
// credit, REDEEM always a debit, ADJUST keeps the caller's sign.
func normalizePointsDelta(entryType string, points int64) (int64, bool) {
	if points == 0 {
		return 0, false
	}
	magnitude := points
	if magnitude < 0 {
		magnitude = -magnitude
	}

	switch entryType {
	case domain.PointsEarn:
		return magnitude, true
	case domain.PointsRedeem:
		return -magnitude, true
	case domain.PointsAdjust:
		return points, true
	default:
		return 0, false
	}
}

func (s *Service) ListPointsLedger(ctx context.Context, customerID string, limit int) (domain.PointsLedgerListResponse, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.PointsLedgerListResponse{}, store.ErrInvalidInput
	}
	if limit < 1 {
		limit = 50
	}

	entries, err := s.repo.ListPointsLedger(ctx, customerID, limit)
	if err != nil {
		return domain.PointsLedgerListResponse{}, err
	}
	return domain.PointsLedgerListResponse{Entries: entries}, nil
}

func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.OrderResponse, error) {
	if req.StoreID == "" {
		req.StoreID = s.defaultStoreID
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if req.Status == "" {
		req.Status = domain.OrderStatusPending
	}

	if req.TotalCents < 1 || !isOrderStatus(req.Status) {
		return domain.OrderResponse{}, store.ErrInvalidInput
	}

	orderNo, err := s.numbers.Next(ctx, numbering.Order)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	order := domain.Order{
		ID:         uuid.NewString(),
		OrderNo:    orderNo,
		StoreID:    req.StoreID,
		CustomerID: req.CustomerID,
		TotalCents: req.TotalCents,
		Status:     req.Status,
		CreatedAt:  time.Now().UTC(),
	}

	if order.CustomerID != "" && isSettledStatus(order.Status) {
		order.PointsEarned = order.TotalCents / pointsEarnDivisorCents
	}

	saved, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	if saved.PointsEarned > 0 {
		result := s.AdjustPoints(ctx, domain.PointsAdjustRequest{
			CustomerID:  saved.CustomerID,
			Type:        domain.PointsEarn,
			Points:      saved.PointsEarned,
			Description: "pembelian " + saved.OrderNo,
		})
		if !result.Success {
			s.logger.Warn("order created but points accrual failed",
				zap.String("order_no", saved.OrderNo),
				zap.String("customer_id", saved.CustomerID),
				zap.String("code", result.Code))
		}
	}

	s.logAudit(ctx, saved.StoreID, "order_create", "order", saved.ID,
		fmt.Sprintf("order_no=%s,total=%d,status=%s,points=%d", saved.OrderNo, saved.TotalCents, saved.Status, saved.PointsEarned))

	return domain.OrderResponse{Order: *saved}, nil
}

func (s *Service) ListOrders(ctx context.Context, storeID string, limit int) (domain.OrderListResponse, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	if limit < 1 {
		limit = 100
	}

	orders, err := s.repo.ListOrders(ctx, storeID, limit)
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	return domain.OrderListResponse{Orders: orders}, nil
}

func (s *Service) CreateRefund(ctx context.Context, req domain.RefundRequest) (domain.RefundResponse, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.OrderID == "" || req.Reason == "" || req.AmountCents < 1 {
		return domain.RefundResponse{}, store.ErrInvalidInput
	}

	order, err := s.repo.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return domain.RefundResponse{}, err
	}
	if order.Status == domain.OrderStatusRefunded || req.AmountCents > order.TotalCents {
		return domain.RefundResponse{}, store.ErrInvalidInput
	}

	refundNo, err := s.numbers.Next(ctx, numbering.Refund)
	if err != nil {
		return domain.RefundResponse{}, err
	}

	refund := domain.Refund{
		ID:          uuid.NewString(),
		RefundNo:    refundNo,
		OrderID:     order.ID,
		Reason:      req.Reason,
		AmountCents: req.AmountCents,
		Status:      "completed",
		CreatedAt:   time.Now().UTC(),
	}
	saved, err := s.repo.CreateRefund(ctx, refund)
	if err != nil {
		return domain.RefundResponse{}, err
	}

	// Claw back the points the order earned, only once the refund record
	// exists. Best effort: if the customer already spent them the refund
	// stands with points_reversed left at zero.
	if order.PointsEarned > 0 && order.CustomerID != "" {
		result := s.AdjustPoints(ctx, domain.PointsAdjustRequest{
			CustomerID:  order.CustomerID,
			Type:        domain.PointsAdjust,
			Points:      -order.PointsEarned,
			Description: "pembatalan " + order.OrderNo,
		})
		if result.Success {
			updated, err := s.repo.SetRefundPointsReversed(ctx, saved.ID, order.PointsEarned)
			if err != nil {
				s.logger.Warn("refund points reversed but record update failed",
					zap.String("refund_no", saved.RefundNo), zap.Error(err))
				saved.PointsReversed = order.PointsEarned
			} else {
				saved = updated
			}
		} else {
			s.logger.Warn("refund points reversal skipped",
				zap.String("order_no", order.OrderNo),
				zap.String("customer_id", order.CustomerID),
				zap.String("code", result.Code))
		}
	}

	if _, err := s.repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusRefunded); err != nil {
		s.logger.Warn("refund recorded but order status update failed",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	s.logAudit(ctx, order.StoreID, "refund_create", "refund", saved.ID,
		fmt.Sprintf("refund_no=%s,order_no=%s,amount=%d,points_reversed=%d", saved.RefundNo, order.OrderNo, saved.AmountCents, saved.PointsReversed))

	return domain.RefundResponse{Refund: *saved}, nil
}

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.ShiftResponse, error) {
	if req.StoreID == "" {
		req.StoreID = s.defaultStoreID
	}
	if req.TerminalID == "" || req.CashierName == "" {
		return domain.ShiftResponse{}, store.ErrInvalidInput
	}

	shiftNo, err := s.numbers.Next(ctx, numbering.Shift)
	if err != nil {
		return domain.ShiftResponse{}, err
	}

	shift := domain.Shift{
		ID:                xid.New("shift"),
		ShiftNo:           shiftNo,
		StoreID:           req.StoreID,
		TerminalID:        req.TerminalID,
		CashierName:       req.CashierName,
		OpeningFloatCents: req.OpeningFloatCents,
		Status:            domain.ShiftStatusOpen,
		OpenedAt:          time.Now().UTC(),
	}
	saved, err := s.repo.CreateShift(ctx, shift)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.ShiftResponse{}, fmt.Errorf("shift already open: %w", err)
		}
		return domain.ShiftResponse{}, err
	}

	s.logAudit(ctx, req.StoreID, "shift_open", "shift", saved.ID, req.CashierName)

	return domain.ShiftResponse{Shift: *saved}, nil
}

func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.ShiftResponse, error) {
	if req.StoreID == "" {
		req.StoreID = s.defaultStoreID
	}
	if req.TerminalID == "" {
		return domain.ShiftResponse{}, store.ErrInvalidInput
	}

	closed, err := s.repo.CloseActiveShift(ctx, req.StoreID, req.TerminalID, req.ClosingCashCents, time.Now().UTC())
	if err != nil {
		return domain.ShiftResponse{}, err
	}
	s.logAudit(ctx, req.StoreID, "shift_close", "shift", closed.ID, fmt.Sprintf("closing_cash=%d", req.ClosingCashCents))

	return domain.ShiftResponse{Shift: *closed}, nil
}

func (s *Service) GetActiveShift(ctx context.Context, storeID string, terminalID string) (domain.ShiftResponse, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	if terminalID == "" {
		return domain.ShiftResponse{}, store.ErrInvalidInput
	}

	shift, err := s.repo.GetActiveShift(ctx, storeID, terminalID)
	if err != nil {
		return domain.ShiftResponse{}, err
	}

	return domain.ShiftResponse{Shift: *shift}, nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" {
		return domain.Supplier{}, store.ErrInvalidInput
	}

	code, err := s.numbers.Next(ctx, numbering.SupplierCode)
	if err != nil {
		return domain.Supplier{}, err
	}

	supplier := domain.Supplier{
		ID:        uuid.NewString(),
		Code:      code,
		Name:      req.Name,
		Phone:     req.Phone,
		CreatedAt: time.Now().UTC(),
	}
	saved, err := s.repo.CreateSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logAudit(ctx, s.defaultStoreID, "supplier_create", "supplier", saved.ID, fmt.Sprintf("code=%s,name=%s", saved.Code, saved.Name))

	return *saved, nil
}

func (s *Service) ListSuppliers(ctx context.Context) (domain.SupplierListResponse, error) {
	suppliers, err := s.repo.ListSuppliers(ctx)
	if err != nil {
		return domain.SupplierListResponse{}, err
	}
	return domain.SupplierListResponse{Suppliers: suppliers}, nil
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrderResponse, error) {
	if req.StoreID == "" {
		req.StoreID = s.defaultStoreID
	}
	req.SupplierID = strings.TrimSpace(req.SupplierID)
	if req.SupplierID == "" || req.TotalCents < 1 {
		return domain.PurchaseOrderResponse{}, store.ErrInvalidInput
	}

	poNo, err := s.numbers.Next(ctx, numbering.PurchaseOrder)
	if err != nil {
		return domain.PurchaseOrderResponse{}, err
	}

	po := domain.PurchaseOrder{
		ID:         uuid.NewString(),
		PONo:       poNo,
		StoreID:    req.StoreID,
		SupplierID: req.SupplierID,
		Status:     domain.POStatusDraft,
		TotalCents: req.TotalCents,
		CreatedAt:  time.Now().UTC(),
	}
	saved, err := s.repo.CreatePurchaseOrder(ctx, po)
	if err != nil {
		return domain.PurchaseOrderResponse{}, err
	}

	s.logAudit(ctx, req.StoreID, "purchase_order_create", "purchase_order", saved.ID, fmt.Sprintf("po_no=%s,total=%d", saved.PONo, saved.TotalCents))

	return domain.PurchaseOrderResponse{PurchaseOrder: *saved}, nil
}

func (s *Service) AnalyzeCustomers(ctx context.Context, storeID string) (domain.RFMAnalysis, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	facts, err := s.repo.GetCustomerPurchaseFacts(ctx)
	if err != nil {
		return domain.RFMAnalysis{}, err
	}

	return s.analyzer.Analyze(ctx, storeID, facts), nil
}

func (s *Service) SegmentDescriptors() map[string]rfm.Descriptor {
	return rfm.Descriptors()
}

// ResetSequence clears a numbering counter. Destructive, so it is gated
// behind the manager PIN configured at startup.
func (s *Service) ResetSequence(ctx context.Context, req domain.SequenceResetRequest) (domain.SequenceResetResponse, error) {
	rule, ok := numbering.RuleForScope(req.Scope)
	if !ok {
		return domain.SequenceResetResponse{}, store.ErrInvalidInput
	}

	if len(s.managerPINHash) == 0 {
		return domain.SequenceResetResponse{}, fmt.Errorf("sequence reset disabled: no manager PIN configured")
	}
	if err := bcrypt.CompareHashAndPassword(s.managerPINHash, []byte(req.ManagerPIN)); err != nil {
		return domain.SequenceResetResponse{}, fmt.Errorf("manager PIN mismatch")
	}

	if err := s.numbers.Reset(ctx, rule); err != nil {
		return domain.SequenceResetResponse{}, err
	}

	resetAt := time.Now().UTC()
	s.logAudit(ctx, s.defaultStoreID, "sequence_reset", "sequence", rule.Prefix, fmt.Sprintf("scope=%s", req.Scope))

	return domain.SequenceResetResponse{
		Scope:   strings.ToLower(strings.TrimSpace(req.Scope)),
		ResetAt: resetAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, date string, limit int) ([]domain.AuditLog, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	if limit < 1 {
		limit = 100
	}

	day := time.Now().UTC()
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, storeID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		StoreID:       storeID,
		ActorUsername: actor.Username,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("audit log write failed",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

func isOrderStatus(status string) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusPaid, domain.OrderStatusCompleted:
		return true
	default:
		return false
	}
}

func isSettledStatus(status string) bool {
	return status == domain.OrderStatusPaid || status == domain.OrderStatusCompleted
}
