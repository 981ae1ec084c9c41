package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"restobill/internal/domain"
	"restobill/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	order_id INTEGER PRIMARY KEY AUTOINCREMENT,
	service_mode TEXT NOT NULL,
	discount_percent REAL NOT NULL DEFAULT 0,
	total_amount REAL NOT NULL,
	timestamp TEXT NOT NULL UNIQUE,
	payment_mode TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS bill (
	order_id INTEGER REFERENCES transactions(order_id),
	food_id TEXT NOT NULL,
	food_name TEXT NOT NULL,
	qty INTEGER NOT NULL,
	unit_price_gst REAL NOT NULL,
	total_price_gst REAL NOT NULL,
	discount_percent REAL NOT NULL DEFAULT 0,
	service_mode TEXT NOT NULL,
	timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bill_timestamp ON bill (timestamp);
CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	password TEXT NOT NULL,
	role TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);
`

type Store struct {
	db  *sql.DB
	loc *time.Location
}

// New opens (creating if needed) the SQLite database at path and applies the schema.
// Timestamps read back are interpreted in loc.
func New(ctx context.Context, path string, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.Local
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, loc: loc}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordTransaction(ctx context.Context, tx domain.Transaction, records []domain.BillRecord) (int64, error) {
	if err := store.Validate(tx, records); err != nil {
		return 0, err
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = sqlTx.Rollback() }()

	ts := store.FormatTimestamp(tx.Timestamp)
	res, err := sqlTx.ExecContext(ctx, `
		INSERT INTO transactions (service_mode, discount_percent, total_amount, timestamp, payment_mode)
		VALUES (?, ?, ?, ?, ?)
	`, string(tx.ServiceMode), tx.DiscountPercent, tx.TotalAmount, ts, string(tx.PaymentMode))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateTimestamp
		}
		return 0, err
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO bill (order_id, food_id, food_name, qty, unit_price_gst,
				total_price_gst, discount_percent, service_mode, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, orderID, rec.ItemID, rec.Name, rec.Quantity, rec.UnitPriceGST,
			rec.TotalPriceGST, rec.DiscountPercent, string(rec.ServiceMode), ts)
		if err != nil {
			return 0, err
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, err
	}
	return orderID, nil
}

func (s *Store) FindBillRecords(ctx context.Context, ts time.Time) ([]domain.BillRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, food_id, food_name, qty, unit_price_gst, total_price_gst,
			discount_percent, service_mode, timestamp
		FROM bill
		WHERE timestamp = ?
		ORDER BY rowid
	`, store.FormatTimestamp(ts))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.BillRecord, 0, 8)
	for rows.Next() {
		var rec domain.BillRecord
		var orderID sql.NullInt64
		var mode, rawTS string
		if err := rows.Scan(&orderID, &rec.ItemID, &rec.Name, &rec.Quantity, &rec.UnitPriceGST,
			&rec.TotalPriceGST, &rec.DiscountPercent, &mode, &rawTS); err != nil {
			return nil, err
		}
		rec.OrderID = orderID.Int64
		rec.ServiceMode = domain.ServiceMode(mode)
		if rec.Timestamp, err = time.ParseInLocation(domain.TimestampLayout, rawTS, s.loc); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) FindTransactionByTimestamp(ctx context.Context, ts time.Time) (*domain.Transaction, error) {
	var tx domain.Transaction
	var mode, payment, rawTS string
	err := s.db.QueryRowContext(ctx, `
		SELECT order_id, service_mode, discount_percent, total_amount, timestamp, payment_mode
		FROM transactions
		WHERE timestamp = ?
		LIMIT 1
	`, store.FormatTimestamp(ts)).Scan(&tx.OrderID, &mode, &tx.DiscountPercent, &tx.TotalAmount, &rawTS, &payment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	tx.ServiceMode = domain.ServiceMode(mode)
	tx.PaymentMode = domain.PaymentMode(payment)
	if tx.Timestamp, err = time.ParseInLocation(domain.TimestampLayout, rawTS, s.loc); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) LatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	var raw sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM transactions`).Scan(&raw); err != nil {
		return time.Time{}, false, err
	}
	if !raw.Valid {
		return time.Time{}, false, nil
	}
	ts, err := time.ParseInLocation(domain.TimestampLayout, raw.String, s.loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return ts, true, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidTransaction
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, username, user.Password, user.Role, user.Active, user.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username already exists")
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		var createdAt string
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &createdAt); err != nil {
			return nil, err
		}
		user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = ? WHERE username = ?`,
		password, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	// Without extended result codes only the message tells a unique violation apart.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
