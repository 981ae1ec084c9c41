package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"restobill/internal/domain"
	"restobill/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	nextOrderID     int64
	transactions    []domain.Transaction
	txByTimestamp   map[string]int
	billRows        []domain.BillRecord
	usersByUsername map[string]domain.UserAccount

	// FailNextRecord makes the next RecordTransaction fail before any write.
	FailNextRecord error
}

func New() *Store {
	return &Store{
		nextOrderID:     1,
		txByTimestamp:   make(map[string]int),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with an admin and a cashier account. Passwords come
// from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD, with dev defaults.
func NewSeeded() (*Store, error) {
	s := New()
	now := time.Now().UTC()
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", envOr("SEED_ADMIN_PASSWORD", "admin123"), "admin"},
		{"cashier", envOr("SEED_CASHIER_PASSWORD", "cashier123"), "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", u.username, err)
		}
		s.usersByUsername[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return s, nil
}

func (s *Store) RecordTransaction(_ context.Context, tx domain.Transaction, records []domain.BillRecord) (int64, error) {
	if err := store.Validate(tx, records); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailNextRecord != nil {
		err := s.FailNextRecord
		s.FailNextRecord = nil
		return 0, err
	}

	key := store.FormatTimestamp(tx.Timestamp)
	if _, exists := s.txByTimestamp[key]; exists {
		return 0, store.ErrDuplicateTimestamp
	}

	tx.OrderID = s.nextOrderID
	s.nextOrderID++
	s.txByTimestamp[key] = len(s.transactions)
	s.transactions = append(s.transactions, tx)
	for _, rec := range records {
		rec.OrderID = tx.OrderID
		s.billRows = append(s.billRows, rec)
	}
	return tx.OrderID, nil
}

// InsertBillRowsOnly stores bill rows without a transaction row, the shape left
// behind by the older two-database layout.
func (s *Store) InsertBillRowsOnly(records []domain.BillRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.billRows = append(s.billRows, records...)
}

func (s *Store) FindBillRecords(_ context.Context, ts time.Time) ([]domain.BillRecord, error) {
	key := store.FormatTimestamp(ts)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.BillRecord, 0, 4)
	for _, rec := range s.billRows {
		if store.FormatTimestamp(rec.Timestamp) == key {
			rows = append(rows, rec)
		}
	}
	return rows, nil
}

func (s *Store) FindTransactionByTimestamp(_ context.Context, ts time.Time) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.txByTimestamp[store.FormatTimestamp(ts)]
	if !ok {
		return nil, store.ErrNotFound
	}
	tx := s.transactions[i]
	return &tx, nil
}

func (s *Store) LatestTimestamp(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	found := false
	for _, tx := range s.transactions {
		if !found || tx.Timestamp.After(latest) {
			latest = tx.Timestamp
			found = true
		}
	}
	return latest, found, nil
}

// Counts reports stored transaction and bill row counts.
func (s *Store) Counts() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transactions), len(s.billRows)
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("username already exists")
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func envOr(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
