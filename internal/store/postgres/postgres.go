package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"restobill/internal/domain"
	"restobill/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	order_id BIGSERIAL PRIMARY KEY,
	service_mode TEXT NOT NULL,
	discount_percent NUMERIC(5,2) NOT NULL DEFAULT 0,
	total_amount NUMERIC(12,2) NOT NULL,
	timestamp TEXT NOT NULL UNIQUE,
	payment_mode TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS bill (
	id BIGSERIAL PRIMARY KEY,
	order_id BIGINT REFERENCES transactions(order_id),
	food_id TEXT NOT NULL,
	food_name TEXT NOT NULL,
	qty INTEGER NOT NULL CHECK (qty > 0),
	unit_price_gst NUMERIC(12,2) NOT NULL,
	total_price_gst NUMERIC(12,2) NOT NULL,
	discount_percent NUMERIC(5,2) NOT NULL DEFAULT 0,
	service_mode TEXT NOT NULL,
	timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bill_timestamp ON bill (timestamp);
CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	password TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(ctx context.Context, databaseURL string, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.Local
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
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

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer func() { _ = pgTx.Rollback() }()

	ts := store.FormatTimestamp(tx.Timestamp)
	var orderID int64
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO transactions (service_mode, discount_percent, total_amount, timestamp, payment_mode)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING order_id
	`, string(tx.ServiceMode), tx.DiscountPercent, tx.TotalAmount, ts, string(tx.PaymentMode)).Scan(&orderID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateTimestamp
		}
		return 0, err
	}

	for _, rec := range records {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO bill (order_id, food_id, food_name, qty, unit_price_gst,
				total_price_gst, discount_percent, service_mode, timestamp)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, orderID, rec.ItemID, rec.Name, rec.Quantity, rec.UnitPriceGST,
			rec.TotalPriceGST, rec.DiscountPercent, string(rec.ServiceMode), ts)
		if err != nil {
			return 0, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return 0, err
	}
	return orderID, nil
}

func (s *Store) FindBillRecords(ctx context.Context, ts time.Time) ([]domain.BillRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, food_id, food_name, qty, unit_price_gst, total_price_gst,
			discount_percent, service_mode, timestamp
		FROM bill
		WHERE timestamp = $1
		ORDER BY id
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
		WHERE timestamp = $1
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
		VALUES ($1,$2,$3,$4,$5)
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
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
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), password)
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
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
