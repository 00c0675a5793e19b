package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/payment"
)

type paymentRepository struct {
	db     *DB
	ledger finance.Repository
}

var _ payment.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(db *DB, ledger finance.Repository) *paymentRepository {
	return &paymentRepository{db: db, ledger: ledger}
}

func (repo *paymentRepository) CreatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p.ID = uuid.New().String()
	repo.db.payments[p.ID] = p
	return p, nil
}

func (repo *paymentRepository) GetPaymentByID(_ context.Context, id string) (payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.payments[id]; ok {
		return p, nil
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) FilterPayments(_ context.Context, filter payment.QueryFilter, page core.Pagination, ordering ...core.DBOrdering) ([]payment.Payment, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	now := time.Now().UTC()
	matches := make([]payment.Payment, 0)
	for _, p := range repo.db.payments {
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		if filter.ParentID != "" && !repo.ownedByParent(p.StudentID, filter.ParentID) {
			continue
		}
		if filter.Status != "" && p.EffectiveStatus(now) != filter.Status {
			continue
		}
		matches = append(matches, p)
	}

	asc := len(ordering) > 0 && ordering[0].Ascending
	field := ""
	if len(ordering) > 0 {
		field = ordering[0].Field
	}
	sort.Slice(matches, func(i, j int) bool {
		var before bool
		if field == "due_date" {
			before = matches[i].DueDate.Before(matches[j].DueDate)
		} else {
			before = matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		if asc {
			return before
		}
		return !before
	})

	total := len(matches)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Limit
	if page.Limit <= 0 || end > total {
		end = total
	}
	return matches[start:end], total, nil
}

func (repo *paymentRepository) ownedByParent(studentID, parentID string) bool {
	st, ok := repo.db.students[studentID]
	return ok && st.ParentID.Valid && st.ParentID.String == parentID
}

func (repo *paymentRepository) UpdatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.payments[p.ID]
	if !ok {
		return payment.Payment{}, payment.ErrNotFound
	}
	p.GatewayOrderID = orig.GatewayOrderID
	p.CreatedAt = orig.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	repo.db.payments[p.ID] = p
	return p, nil
}

func (repo *paymentRepository) SetGatewayOrder(_ context.Context, id, orderID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.payments[id]
	if !ok {
		return payment.ErrNotFound
	}
	p.GatewayOrderID.SetValid(orderID)
	p.UpdatedAt = time.Now().UTC()
	repo.db.payments[id] = p
	return nil
}

func (repo *paymentRepository) SettlePayment(ctx context.Context, id string, method payment.Method, entry finance.Entry, now time.Time) (payment.Payment, bool, error) {
	repo.db.mutex.Lock()
	p, ok := repo.db.payments[id]
	if !ok {
		repo.db.mutex.Unlock()
		return payment.Payment{}, false, payment.ErrNotFound
	}
	transitioned := p.Status == payment.StatusPending
	if transitioned {
		p.Status = payment.StatusPaid
		p.Method = method
		p.UpdatedAt = now.UTC()
		repo.db.payments[id] = p
	}
	repo.db.mutex.Unlock()

	if transitioned {
		if _, err := repo.ledger.CreateEntry(ctx, nil, entry); err != nil {
			return payment.Payment{}, false, err
		}
	}
	return p, transitioned, nil
}

func (repo *paymentRepository) DeletePaymentsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.payments, id)
	}
	return nil
}

func (repo *paymentRepository) SummarizePayments(_ context.Context, studentID string, now time.Time) (payment.Summary, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sum := payment.Summary{
		Total:   decimal.Zero,
		Paid:    decimal.Zero,
		Pending: decimal.Zero,
		Overdue: decimal.Zero,
	}
	for _, p := range repo.db.payments {
		if p.StudentID != studentID {
			continue
		}
		sum.Total = sum.Total.Add(p.Amount)
		switch p.Status {
		case payment.StatusPaid:
			sum.Paid = sum.Paid.Add(p.Amount)
		case payment.StatusPending:
			sum.Pending = sum.Pending.Add(p.Amount)
			if p.EffectiveStatus(now) == payment.StatusOverdue {
				sum.Overdue = sum.Overdue.Add(p.Amount)
			}
		}
	}
	return sum, nil
}
