package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// InsertOrder appends a placed order to the journal.
func (d *Database) InsertOrder(ctx context.Context, o OrderRow) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO orders (
			order_id, symbol, side, order_type, amount, price,
			leverage, margin_mode, stop_loss, take_profit, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`,
		o.OrderID, o.Symbol, o.Side, o.OrderType, o.Amount, o.Price,
		o.Leverage, o.MarginMode, o.StopLoss, o.TakeProfit, o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// UpdateOrderStatus sets the status of a journalled order.
func (d *Database) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	res, err := d.DB.ExecContext(ctx, `UPDATE orders SET status = ? WHERE order_id = ?`, status, orderID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOrders returns the most recent journalled orders.
func (d *Database) ListOrders(ctx context.Context, limit int) ([]OrderRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT order_id, symbol, side, order_type, amount, price,
		       leverage, COALESCE(margin_mode, ''), stop_loss, take_profit, status, created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []OrderRow
	for rows.Next() {
		var o OrderRow
		if err := rows.Scan(&o.OrderID, &o.Symbol, &o.Side, &o.OrderType, &o.Amount, &o.Price,
			&o.Leverage, &o.MarginMode, &o.StopLoss, &o.TakeProfit, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// InsertClose records a position close in the journal.
func (d *Database) InsertClose(ctx context.Context, c CloseRow) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO closes (id, symbol, side, qty, reason, order_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`, c.ID, c.Symbol, c.Side, c.Qty, c.Reason, c.OrderID, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert close: %w", err)
	}
	return nil
}

// ListCloses returns the most recent close records.
func (d *Database) ListCloses(ctx context.Context, limit int) ([]CloseRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, side, qty, COALESCE(reason, ''), COALESCE(order_id, ''), created_at
		FROM closes
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query closes: %w", err)
	}
	defer rows.Close()

	var closes []CloseRow
	for rows.Next() {
		var c CloseRow
		if err := rows.Scan(&c.ID, &c.Symbol, &c.Side, &c.Qty, &c.Reason, &c.OrderID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan close: %w", err)
		}
		closes = append(closes, c)
	}
	return closes, rows.Err()
}

// CreateUser inserts a new user row.
func (d *Database) CreateUser(ctx context.Context, u User) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP), COALESCE(?, CURRENT_TIMESTAMP))
	`, u.ID, strings.ToLower(u.Email), u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	return err
}

// GetUserByEmail returns a user by email or nil if not found.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, strings.ToLower(email))
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
