package store

import (
	"context"
	"errors"
	"time"

	"restobill/internal/domain"
)

var (
	ErrNotFound           = domain.ErrNotFound
	ErrDuplicateTimestamp = errors.New("duplicate order timestamp")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// Repository persists transactions and their bill rows. Implementations write
// both tables atomically: either the transaction and every bill row are stored,
// or nothing is.
type Repository interface {
	RecordTransaction(ctx context.Context, tx domain.Transaction, records []domain.BillRecord) (int64, error)
	FindBillRecords(ctx context.Context, ts time.Time) ([]domain.BillRecord, error)
	FindTransactionByTimestamp(ctx context.Context, ts time.Time) (*domain.Transaction, error)
	LatestTimestamp(ctx context.Context) (time.Time, bool, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// Validate checks the invariants shared by every implementation before a write.
func Validate(tx domain.Transaction, records []domain.BillRecord) error {
	if len(records) == 0 || tx.Timestamp.IsZero() {
		return ErrInvalidTransaction
	}
	for _, rec := range records {
		if rec.ItemID == "" || rec.Quantity < 1 {
			return ErrInvalidTransaction
		}
	}
	return nil
}

// FormatTimestamp is the text key stored in both tables.
func FormatTimestamp(ts time.Time) string {
	return ts.Format(domain.TimestampLayout)
}
