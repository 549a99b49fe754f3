package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID              string    `json:"id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	MemberTier      string    `json:"member_tier"`
	TotalPoints     int64     `json:"total_points"`
	AvailablePoints int64     `json:"available_points"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CustomerRegisterRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	MemberTier string `json:"member_tier"`
}

type CustomerUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	MemberTier *string `json:"member_tier,omitempty"`
}

type CustomerResponse struct {
	Customer Customer `json:"customer"`
}

type CustomerListResponse struct {
	Customers []Customer `json:"customers"`
}

// CustomerFact is the per-customer purchase aggregate handed to the RFM
// engine. LastPurchaseDate is nil for customers that never completed a
// qualifying order.
type CustomerFact struct {
	CustomerID       string          `json:"customer_id"`
	CustomerName     string          `json:"customer_name"`
	LastPurchaseDate *time.Time      `json:"last_purchase_date,omitempty"`
	PurchaseCount    int             `json:"purchase_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
}

type RFMScore struct {
	CustomerFact
	RecencyScore   int    `json:"recency_score"`
	FrequencyScore int    `json:"frequency_score"`
	MonetaryScore  int    `json:"monetary_score"`
	Segment        string `json:"segment"`
}

type RFMAnalysis struct {
	StoreID            string          `json:"store_id"`
	Scores             []RFMScore      `json:"scores"`
	ActiveCustomers    int             `json:"active_customers"`
	VIPCount           int             `json:"vip_count"`
	AverageTotalAmount decimal.Decimal `json:"average_total_amount"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

type PointsLedgerEntry struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	Type         string    `json:"type"`
	Points       int64     `json:"points"`
	BalanceAfter int64     `json:"balance_after"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

type PointsAdjustRequest struct {
	CustomerID  string `json:"customer_id"`
	Type        string `json:"type"`
	Points      int64  `json:"points"`
	Description string `json:"description"`
}

// PointsAdjustResult is the structured outcome of a ledger transaction.
// Business failures (unknown customer, insufficient balance) come back as
// Success=false with a user-facing message rather than an error.
type PointsAdjustResult struct {
	Success         bool               `json:"success"`
	Code            string             `json:"code"`
	Message         string             `json:"message"`
	Entry           *PointsLedgerEntry `json:"entry,omitempty"`
	TotalPoints     int64              `json:"total_points"`
	AvailablePoints int64              `json:"available_points"`
}

type PointsLedgerListResponse struct {
	Entries []PointsLedgerEntry `json:"entries"`
}

type Order struct {
	ID           string    `json:"id"`
	OrderNo      string    `json:"order_no"`
	StoreID      string    `json:"store_id"`
	CustomerID   string    `json:"customer_id,omitempty"`
	TotalCents   int64     `json:"total_cents"`
	Status       string    `json:"status"`
	PointsEarned int64     `json:"points_earned"`
	CreatedAt    time.Time `json:"created_at"`
}

type OrderCreateRequest struct {
	StoreID    string `json:"store_id"`
	CustomerID string `json:"customer_id,omitempty"`
	TotalCents int64  `json:"total_cents"`
	Status     string `json:"status"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

type Shift struct {
	ID                string     `json:"id"`
	ShiftNo           string     `json:"shift_no"`
	StoreID           string     `json:"store_id"`
	TerminalID        string     `json:"terminal_id"`
	CashierName       string     `json:"cashier_name"`
	OpeningFloatCents int64      `json:"opening_float_cents"`
	ClosingCashCents  int64      `json:"closing_cash_cents,omitempty"`
	Status            string     `json:"status"`
	OpenedAt          time.Time  `json:"opened_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
}

type ShiftOpenRequest struct {
	StoreID           string `json:"store_id"`
	TerminalID        string `json:"terminal_id"`
	CashierName       string `json:"cashier_name"`
	OpeningFloatCents int64  `json:"opening_float_cents"`
}

type ShiftCloseRequest struct {
	StoreID          string `json:"store_id"`
	TerminalID       string `json:"terminal_id"`
	ClosingCashCents int64  `json:"closing_cash_cents"`
}

type ShiftResponse struct {
	Shift Shift `json:"shift"`
}

type Refund struct {
	ID             string    `json:"id"`
	RefundNo       string    `json:"refund_no"`
	OrderID        string    `json:"order_id"`
	Reason         string    `json:"reason"`
	AmountCents    int64     `json:"amount_cents"`
	PointsReversed int64     `json:"points_reversed"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type RefundRequest struct {
	OrderID     string `json:"order_id"`
	Reason      string `json:"reason"`
	AmountCents int64  `json:"amount_cents"`
}

type RefundResponse struct {
	Refund Refund `json:"refund"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type SupplierListResponse struct {
	Suppliers []Supplier `json:"suppliers"`
}

type PurchaseOrder struct {
	ID         string    `json:"id"`
	PONo       string    `json:"po_no"`
	StoreID    string    `json:"store_id"`
	SupplierID string    `json:"supplier_id"`
	Status     string    `json:"status"`
	TotalCents int64     `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

type PurchaseOrderCreateRequest struct {
	StoreID    string `json:"store_id"`
	SupplierID string `json:"supplier_id"`
	TotalCents int64  `json:"total_cents"`
}

type PurchaseOrderResponse struct {
	PurchaseOrder PurchaseOrder `json:"purchase_order"`
}

type SequenceResetRequest struct {
	Scope      string `json:"scope"`
	ManagerPIN string `json:"manager_pin"`
}

type SequenceResetResponse struct {
	Scope   string `json:"scope"`
	ResetAt string `json:"reset_at"`
}

type Actor struct {
	Username string
	Role     string
}

type AuditLog struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	ActorUsername string    `json:"actor_username"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

// FieldChange records one before/after pair from a shallow structural diff.
// Nested values are compared by full-value replacement.
type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

const (
	PointsEarn   = "EARN"
	PointsRedeem = "REDEEM"
	PointsAdjust = "ADJUST"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCompleted = "completed"
	OrderStatusRefunded  = "refunded"
)

const (
	ShiftStatusOpen   = "open"
	ShiftStatusClosed = "closed"
)

const (
	POStatusDraft    = "draft"
	POStatusReceived = "received"
)

const (
	AdjustCodeOK                  = "ok"
	AdjustCodeInvalid             = "invalid"
	AdjustCodeNotFound            = "not_found"
	AdjustCodeInsufficientBalance = "insufficient_balance"
	AdjustCodeFailed              = "operation_failed"
)
