package inmem

import (
	"context"
	"database/sql"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/finance"
)

type financeRepository struct {
	db *DB
}

var _ finance.Repository = (*financeRepository)(nil)

func NewFinanceRepository(db *DB) *financeRepository {
	return &financeRepository{db: db}
}

func (repo *financeRepository) CreateEntry(_ context.Context, _ *sql.Tx, entry finance.Entry) (finance.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	entry.ID = uuid.New().String()
	repo.db.entries = append(repo.db.entries, entry)
	return entry, nil
}

func (repo *financeRepository) FilterEntries(_ context.Context, filter finance.QueryFilter) ([]finance.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]finance.Entry, 0)
	for _, entry := range repo.db.entries {
		if filter.Month != 0 && entry.Month != filter.Month {
			continue
		}
		if filter.Year != 0 && entry.Year != filter.Year {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}
