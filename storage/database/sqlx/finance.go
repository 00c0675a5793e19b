package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/finance"
)

type financeRepository struct {
	db *sqlx.DB
}

var _ finance.Repository = (*financeRepository)(nil)

func NewFinanceRepository(db *sqlx.DB) *financeRepository {
	return &financeRepository{db: db}
}

func (repo financeRepository) CreateEntry(ctx context.Context, tx *sql.Tx, entry finance.Entry) (finance.Entry, error) {
	entry.ID = uuid.New().String()

	query := `
		INSERT INTO finance_entries (id, month, year, income, expense, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	args := []interface{}{
		entry.ID, entry.Month, entry.Year, entry.Income, entry.Expense, entry.Description, entry.CreatedAt.UTC(),
	}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = repo.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return finance.Entry{}, errors.Wrap(err, "inserting ledger entry")
	}
	return entry, nil
}

func (repo financeRepository) FilterEntries(ctx context.Context, filter finance.QueryFilter) ([]finance.Entry, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Month != 0 {
		conds = append(conds, fmt.Sprintf("month = %s", arg(filter.Month)))
	}
	if filter.Year != 0 {
		conds = append(conds, fmt.Sprintf("year = %s", arg(filter.Year)))
	}

	query := `SELECT id, month, year, income, expense, description, created_at FROM finance_entries`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := repo.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying ledger entries")
	}
	defer func() { _ = rows.Close() }()

	entries := make([]finance.Entry, 0)
	for rows.Next() {
		var entry finance.Entry
		if err = rows.Scan(&entry.ID, &entry.Month, &entry.Year, &entry.Income, &entry.Expense, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning ledger entry")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
