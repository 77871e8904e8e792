package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"paper-broker-go/internal/models"
)

var (
	// ErrStorage wraps any database failure. Callers can always distinguish
	// "no rows" from "the write failed".
	ErrStorage = errors.New("ledger: storage failure")
	// ErrNoAccount means no account row exists for the user.
	ErrNoAccount = errors.New("ledger: account not found")
	// ErrNoHolding means the user has no position in the symbol.
	ErrNoHolding = errors.New("ledger: holding not found")
	// ErrAccountExists is returned by CreateAccount for a duplicate user.
	ErrAccountExists = errors.New("ledger: account already exists")
)

// Store is durable storage for the Account/Holding/TransactionRecord triple.
//
// All mutations go through AtomicUpdate, which serializes updates per user and
// applies them all-or-nothing. The read operations are snapshot-consistent and
// take no lock.
type Store interface {
	CreateAccount(ctx context.Context, userID string, openingCash decimal.Decimal) (*models.Account, error)
	AtomicUpdate(ctx context.Context, userID string, fn func(tx *gorm.DB) error) error
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	GetHolding(ctx context.Context, userID, symbol string) (*models.Holding, error)
	ListHoldings(ctx context.Context, userID string) ([]models.Holding, error)
	ListHistory(ctx context.Context, userID string) ([]models.TransactionRecord, error)
}

// GormStore implements Store on a gorm database.
type GormStore struct {
	db *gorm.DB

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

var _ Store = (*GormStore)(nil)

// NewStore creates a Store backed by the given database.
func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:        db,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing mutations for one user. Locks are
// never removed; the map grows with the number of distinct users seen.
func (s *GormStore) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// AtomicUpdate runs fn inside a database transaction while holding the user's
// lock. Two concurrent calls for the same user never interleave: the second
// blocks until the first has committed or rolled back. Any error from fn, or
// from the commit, rolls the whole unit back and leaves no visible partial
// state. fn's error is returned unchanged so domain errors pass through.
func (s *GormStore) AtomicUpdate(ctx context.Context, userID string, fn func(tx *gorm.DB) error) error {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	return s.db.WithContext(ctx).Transaction(fn)
}

// CreateAccount opens an account with the given starting cash. Registration
// itself (identity, credentials) lives outside the engine; this is the hook it
// calls once a user exists.
func (s *GormStore) CreateAccount(ctx context.Context, userID string, openingCash decimal.Decimal) (*models.Account, error) {
	var existing models.Account
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("%w: user %q", ErrAccountExists, userID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: check account %q: %v", ErrStorage, userID, err)
	}

	acct := models.Account{UserID: userID, CashBalance: openingCash}
	if err := s.db.WithContext(ctx).Create(&acct).Error; err != nil {
		return nil, fmt.Errorf("%w: create account %q: %v", ErrStorage, userID, err)
	}
	return &acct, nil
}

// GetAccount returns the user's account row.
func (s *GormStore) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	var acct models.Account
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %q", ErrNoAccount, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get account %q: %v", ErrStorage, userID, err)
	}
	return &acct, nil
}

// GetHolding returns the user's position in one symbol.
func (s *GormStore) GetHolding(ctx context.Context, userID, symbol string) (*models.Holding, error) {
	var h models.Holding
	err := s.db.WithContext(ctx).Where("user_id = ? AND symbol = ?", userID, symbol).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %q symbol %q", ErrNoHolding, userID, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get holding %q/%q: %v", ErrStorage, userID, symbol, err)
	}
	return &h, nil
}

// ListHoldings returns all of the user's positions, ordered by symbol.
func (s *GormStore) ListHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	var holdings []models.Holding
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("symbol asc").Find(&holdings).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list holdings %q: %v", ErrStorage, userID, err)
	}
	return holdings, nil
}

// ListHistory returns the user's transaction records, most recent first.
func (s *GormStore) ListHistory(ctx context.Context, userID string) ([]models.TransactionRecord, error) {
	var records []models.TransactionRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id desc").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list history %q: %v", ErrStorage, userID, err)
	}
	return records, nil
}
