package finance

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrEntryNotFound = errors.New("ledger entry not found")

// Entry is an append-only accounting record of income/expense for a period.
type Entry struct {
	ID          string          `json:"id"`
	Month       int             `json:"month"` // 1 - 12
	Year        int             `json:"year"`
	Income      decimal.Decimal `json:"income"`
	Expense     decimal.Decimal `json:"expense"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"` // UTC
}

// NewEntry returns an income-only Entry for the current period.
func NewEntry(income decimal.Decimal, description string, now time.Time) Entry {
	now = now.UTC()
	return Entry{
		Month:       int(now.Month()),
		Year:        now.Year(),
		Income:      income,
		Expense:     decimal.Zero,
		Description: description,
		CreatedAt:   now,
	}
}

type QueryFilter struct {
	Month int `query:"month"`
	Year  int `query:"year"`
}

type (
	Repository interface {
		// CreateEntry appends a ledger entry. A non-nil tx makes the append
		// part of the caller's transaction.
		CreateEntry(ctx context.Context, tx *sql.Tx, entry Entry) (Entry, error)
		FilterEntries(ctx context.Context, filter QueryFilter) ([]Entry, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Append(ctx context.Context, entry Entry) (Entry, error) {
	return svc.repo.CreateEntry(ctx, nil, entry)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Entry, error) {
	return svc.repo.FilterEntries(ctx, *filter)
}
