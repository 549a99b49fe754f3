package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"tokolaris/backend/internal/domain"
	"tokolaris/backend/internal/store"
	"tokolaris/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Code == "" || customer.Name == "" {
		return nil, store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, code, name, phone, member_tier, total_points, available_points, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
	`, customer.ID, customer.Code, customer.Name, customer.Phone, customer.MemberTier,
		customer.TotalPoints, customer.AvailablePoints, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := customer
	created.UpdatedAt = customer.CreatedAt
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	return s.getCustomer(ctx, "id", id)
}

func (s *Store) GetCustomerByCode(ctx context.Context, code string) (*domain.Customer, error) {
	return s.getCustomer(ctx, "code", code)
}

func (s *Store) getCustomer(ctx context.Context, column string, value string) (*domain.Customer, error) {
	query := `
		SELECT id, code, name, phone, member_tier, total_points, available_points, created_at, updated_at
		FROM customers
		WHERE ` + column + ` = $1
	`
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&customer.ID, &customer.Code, &customer.Name, &customer.Phone, &customer.MemberTier,
		&customer.TotalPoints, &customer.AvailablePoints, &customer.CreatedAt, &customer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, phone, member_tier, total_points, available_points, created_at, updated_at
		FROM customers
		ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 128)
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(
			&customer.ID, &customer.Code, &customer.Name, &customer.Phone, &customer.MemberTier,
			&customer.TotalPoints, &customer.AvailablePoints, &customer.CreatedAt, &customer.UpdatedAt,
		); err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return customers, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidInput
	}

	// Points balances only move through the ledger; code is immutable.
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, member_tier = $4, updated_at = now()
		WHERE id = $1
	`, customer.ID, customer.Name, customer.Phone, customer.MemberTier)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetCustomerByID(ctx, customer.ID)
}

func (s *Store) GetCustomerPurchaseFacts(ctx context.Context) ([]domain.CustomerFact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, MAX(o.created_at), COUNT(o.id), COALESCE(SUM(o.total_cents), 0)
		FROM customers c
		LEFT JOIN orders o ON o.customer_id = c.id AND o.status IN ('paid', 'completed')
		GROUP BY c.id, c.name
		ORDER BY c.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	facts := make([]domain.CustomerFact, 0, 128)
	for rows.Next() {
		var fact domain.CustomerFact
		var lastPurchase sql.NullTime
		var totalCents int64
		if err := rows.Scan(&fact.CustomerID, &fact.CustomerName, &lastPurchase, &fact.PurchaseCount, &totalCents); err != nil {
			return nil, err
		}
		if lastPurchase.Valid {
			at := lastPurchase.Time.UTC()
			fact.LastPurchaseDate = &at
		}
		fact.TotalAmount = decimal.New(totalCents, -2)
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return facts, nil
}

// ApplyPointsAdjustment locks the customer row, applies the signed delta
// to the available balance and appends the ledger entry, all in one
// serializable transaction so the balance mutation and the audit entry
// commit or roll back together.
func (s *Store) ApplyPointsAdjustment(ctx context.Context, entry domain.PointsLedgerEntry) (*domain.PointsLedgerEntry, *domain.Customer, error) {
	if !isLedgerType(entry.Type) || entry.Points == 0 {
		return nil, nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("pt")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var customer domain.Customer
	err = tx.QueryRowContext(ctx, `
		SELECT id, code, name, phone, member_tier, total_points, available_points, created_at, updated_at
		FROM customers
		WHERE id = $1
		FOR UPDATE
	`, entry.CustomerID).Scan(
		&customer.ID, &customer.Code, &customer.Name, &customer.Phone, &customer.MemberTier,
		&customer.TotalPoints, &customer.AvailablePoints, &customer.CreatedAt, &customer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, store.ErrNotFound
		}
		return nil, nil, err
	}

	newBalance := customer.AvailablePoints + entry.Points
	if newBalance < 0 {
		return nil, nil, store.ErrInsufficientPoints
	}

	newTotal := customer.TotalPoints
	if entry.Type == domain.PointsEarn {
		newTotal += entry.Points
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE customers
		SET total_points = $2, available_points = $3, updated_at = now()
		WHERE id = $1
	`, customer.ID, newTotal, newBalance)
	if err != nil {
		return nil, nil, err
	}

	entry.BalanceAfter = newBalance
	_, err = tx.ExecContext(ctx, `
		INSERT INTO points_ledger (id, customer_id, type, points, balance_after, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.CustomerID, entry.Type, entry.Points, entry.BalanceAfter, entry.Description, entry.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	customer.TotalPoints = newTotal
	customer.AvailablePoints = newBalance
	applied := entry
	return &applied, &customer, nil
}

func (s *Store) ListPointsLedger(ctx context.Context, customerID string, limit int) ([]domain.PointsLedgerEntry, error) {
	if limit < 1 {
		limit = 50
	}

	if _, err := s.GetCustomerByID(ctx, customerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, type, points, balance_after, description, created_at
		FROM points_ledger
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.PointsLedgerEntry, 0, limit)
	for rows.Next() {
		var entry domain.PointsLedgerEntry
		if err := rows.Scan(&entry.ID, &entry.CustomerID, &entry.Type, &entry.Points, &entry.BalanceAfter, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// NextSequence relies on a single upsert so the increment-and-fetch is
// atomic at the database: concurrent callers serialize on the counter row
// and can never observe the same value.
func (s *Store) NextSequence(ctx context.Context, scopeKey string) (int64, error) {
	if scopeKey == "" {
		return 0, store.ErrInvalidInput
	}

	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequence_counters (scope_key, last_value, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (scope_key)
		DO UPDATE SET last_value = sequence_counters.last_value + 1, updated_at = now()
		RETURNING last_value
	`, scopeKey).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (s *Store) ResetSequence(ctx context.Context, scopeKey string) error {
	if scopeKey == "" {
		return store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM sequence_counters WHERE scope_key = $1`, scopeKey)
	return err
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" || order.OrderNo == "" || order.TotalCents < 1 {
		return nil, store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, order_no, store_id, customer_id, total_cents, status, points_earned, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, order.ID, order.OrderNo, order.StoreID, nullIfEmpty(order.CustomerID), order.TotalCents, order.Status, order.PointsEarned, order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	var customerID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_no, store_id, customer_id, total_cents, status, points_earned, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.OrderNo, &order.StoreID, &customerID, &order.TotalCents, &order.Status, &order.PointsEarned, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	order.CustomerID = customerID.String
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, storeID string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_no, store_id, customer_id, total_cents, status, points_earned, created_at
		FROM orders
		WHERE ($1 = '' OR store_id = $1)
		ORDER BY created_at DESC, order_no DESC
		LIMIT $2
	`, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		var order domain.Order
		var customerID sql.NullString
		if err := rows.Scan(&order.ID, &order.OrderNo, &order.StoreID, &customerID, &order.TotalCents, &order.Status, &order.PointsEarned, &order.CreatedAt); err != nil {
			return nil, err
		}
		order.CustomerID = customerID.String
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status string) (*domain.Order, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2
		WHERE id = $1
	`, id, status)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetOrderByID(ctx, id)
}

func (s *Store) CreateRefund(ctx context.Context, refund domain.Refund) (*domain.Refund, error) {
	if refund.ID == "" || refund.RefundNo == "" || refund.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refunds (id, refund_no, order_id, reason, amount_cents, points_reversed, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, refund.ID, refund.RefundNo, refund.OrderID, refund.Reason, refund.AmountCents, refund.PointsReversed, refund.Status, refund.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := refund
	return &created, nil
}

func (s *Store) SetRefundPointsReversed(ctx context.Context, id string, points int64) (*domain.Refund, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE refunds
		SET points_reversed = $2
		WHERE id = $1
		RETURNING id, refund_no, order_id, reason, amount_cents, points_reversed, status, created_at
	`, id, points)

	var refund domain.Refund
	err := row.Scan(&refund.ID, &refund.RefundNo, &refund.OrderID, &refund.Reason,
		&refund.AmountCents, &refund.PointsReversed, &refund.Status, &refund.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (s *Store) CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	if shift.ID == "" || shift.ShiftNo == "" || shift.StoreID == "" || shift.TerminalID == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT id
		FROM shifts
		WHERE store_id = $1 AND terminal_id = $2 AND status = 'open'
		FOR UPDATE
	`, shift.StoreID, shift.TerminalID).Scan(&existing)
	if err == nil {
		return nil, store.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shifts (id, shift_no, store_id, terminal_id, cashier_name, opening_float_cents, status, opened_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, shift.ID, shift.ShiftNo, shift.StoreID, shift.TerminalID, shift.CashierName, shift.OpeningFloatCents, shift.Status, shift.OpenedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := shift
	return &created, nil
}

func (s *Store) CloseActiveShift(ctx context.Context, storeID string, terminalID string, closingCashCents int64, closedAt time.Time) (*domain.Shift, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var shift domain.Shift
	err = tx.QueryRowContext(ctx, `
		SELECT id, shift_no, store_id, terminal_id, cashier_name, opening_float_cents, status, opened_at
		FROM shifts
		WHERE store_id = $1 AND terminal_id = $2 AND status = 'open'
		FOR UPDATE
	`, storeID, terminalID).Scan(
		&shift.ID, &shift.ShiftNo, &shift.StoreID, &shift.TerminalID, &shift.CashierName,
		&shift.OpeningFloatCents, &shift.Status, &shift.OpenedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE shifts
		SET status = 'closed', closing_cash_cents = $2, closed_at = $3
		WHERE id = $1
	`, shift.ID, closingCashCents, closedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	shift.Status = domain.ShiftStatusClosed
	shift.ClosingCashCents = closingCashCents
	shift.ClosedAt = &closedAt
	return &shift, nil
}

func (s *Store) GetActiveShift(ctx context.Context, storeID string, terminalID string) (*domain.Shift, error) {
	var shift domain.Shift
	var closedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, shift_no, store_id, terminal_id, cashier_name, opening_float_cents, closing_cash_cents, status, opened_at, closed_at
		FROM shifts
		WHERE store_id = $1 AND terminal_id = $2 AND status = 'open'
	`, storeID, terminalID).Scan(
		&shift.ID, &shift.ShiftNo, &shift.StoreID, &shift.TerminalID, &shift.CashierName,
		&shift.OpeningFloatCents, &shift.ClosingCashCents, &shift.Status, &shift.OpenedAt, &closedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if closedAt.Valid {
		at := closedAt.Time
		shift.ClosedAt = &at
	}
	return &shift, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" || supplier.Code == "" || supplier.Name == "" {
		return nil, store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, code, name, phone, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, supplier.ID, supplier.Code, supplier.Name, supplier.Phone, supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, phone, created_at
		FROM suppliers
		ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var supplier domain.Supplier
		if err := rows.Scan(&supplier.ID, &supplier.Code, &supplier.Name, &supplier.Phone, &supplier.CreatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return suppliers, nil
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	if po.ID == "" || po.PONo == "" || po.TotalCents < 1 {
		return nil, store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, po_no, store_id, supplier_id, status, total_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, po.ID, po.PONo, po.StoreID, po.SupplierID, po.Status, po.TotalCents, po.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := po
	return &created, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, store_id, actor_username, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.StoreID, entry.ActorUsername, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, actor_username, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR store_id = $1) AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, storeID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.ActorUsername, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

func isLedgerType(entryType string) bool {
	switch entryType {
	case domain.PointsEarn, domain.PointsRedeem, domain.PointsAdjust:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
