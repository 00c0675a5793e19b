package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/payment"
)

type paymentRepository struct {
	db     *sqlx.DB
	ledger finance.Repository
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

// NewPaymentRepository needs the ledger repository so a settlement can append
// its ledger entry inside the same transaction.
func NewPaymentRepository(db *sqlx.DB, ledger finance.Repository) *paymentRepository {
	return &paymentRepository{db: db, ledger: ledger}
}

type dbPayment struct {
	ID             string          `db:"id"`
	StudentID      string          `db:"student_id"`
	Amount         decimal.Decimal `db:"amount"`
	Type           string          `db:"payment_type"`
	Method         string          `db:"payment_method"`
	DueDate        time.Time       `db:"due_date"`
	Description    null.String     `db:"description"`
	Status         string          `db:"status"`
	GatewayOrderID null.String     `db:"gateway_order_id"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (dbPayment) from(p payment.Payment) dbPayment {
	return dbPayment{
		ID:             p.ID,
		StudentID:      p.StudentID,
		Amount:         p.Amount,
		Type:           string(p.Type),
		Method:         string(p.Method),
		DueDate:        p.DueDate.UTC(),
		Description:    p.Description,
		Status:         string(p.Status),
		GatewayOrderID: p.GatewayOrderID,
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
}

func (row dbPayment) payment() payment.Payment {
	return payment.Payment{
		ID:             row.ID,
		StudentID:      row.StudentID,
		Amount:         row.Amount,
		Type:           payment.Type(row.Type),
		Method:         payment.Method(row.Method),
		DueDate:        row.DueDate,
		Description:    row.Description,
		Status:         payment.Status(row.Status),
		GatewayOrderID: row.GatewayOrderID,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to payment.ErrNotFound
func (repo paymentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return payment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo paymentRepository) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	p.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO payments (id, student_id, amount, payment_type, payment_method, due_date, description, status, created_at, updated_at)
		VALUES (:id, :student_id, :amount, :payment_type, :payment_method, :due_date, :description, :status, :created_at, :updated_at)`,
		dbPayment{}.from(p))
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo paymentRepository) GetPaymentByID(ctx context.Context, id string) (payment.Payment, error) {
	var row dbPayment
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM payments WHERE id = $1`, id); err != nil {
		return payment.Payment{}, repo.trapNoRowsErr(err, "getting payment")
	}
	return row.payment(), nil
}

// statusCond renders the WHERE fragment for a derived status filter:
// OVERDUE selects PENDING rows whose due date has elapsed.
func statusCond(status payment.Status, arg func(interface{}) string) string {
	now := time.Now().UTC()
	switch status {
	case payment.StatusOverdue:
		return fmt.Sprintf("(status = 'PENDING' AND due_date < %s)", arg(now))
	case payment.StatusPending:
		return fmt.Sprintf("(status = 'PENDING' AND due_date >= %s)", arg(now))
	default:
		return fmt.Sprintf("status = %s", arg(string(status)))
	}
}

func (repo paymentRepository) FilterPayments(ctx context.Context, filter payment.QueryFilter, page core.Pagination, ordering ...core.DBOrdering) ([]payment.Payment, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StudentID != "" {
		conds = append(conds, fmt.Sprintf("student_id = %s", arg(filter.StudentID)))
	}
	if filter.ParentID != "" {
		conds = append(conds, fmt.Sprintf(
			"student_id IN (SELECT id FROM students WHERE parent_id = %s)", arg(filter.ParentID)))
	}
	if filter.Status != "" {
		conds = append(conds, statusCond(filter.Status, arg))
	}

	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, " AND ")
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM payments`+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting payments")
	}

	query := `SELECT * FROM payments` + where + orderBy(ordering, "created_at DESC")
	query += fmt.Sprintf(" LIMIT %s OFFSET %s", arg(page.Limit), arg(page.Offset()))

	var rows []dbPayment
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "filtering payments")
	}
	payments := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.payment())
	}
	return payments, total, nil
}

func (repo paymentRepository) UpdatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE payments
		SET amount = :amount, payment_type = :payment_type, payment_method = :payment_method,
		    due_date = :due_date, description = :description, status = :status, updated_at = :updated_at
		WHERE id = :id`,
		dbPayment{}.from(p))
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "updating payment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return payment.Payment{}, payment.ErrNotFound
	}
	return p, nil
}

func (repo paymentRepository) SetGatewayOrder(ctx context.Context, id, orderID string) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE payments SET gateway_order_id = $1, updated_at = $2 WHERE id = $3`,
		orderID, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "recording gateway order")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return payment.ErrNotFound
	}
	return nil
}

// SettlePayment flips a PENDING payment to PAID and appends the ledger entry
// in one transaction. The guarded UPDATE makes replays a no-op: a payment
// already PAID affects no rows and the ledger is left untouched.
func (repo paymentRepository) SettlePayment(ctx context.Context, id string, method payment.Method, entry finance.Entry, now time.Time) (payment.Payment, bool, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return payment.Payment{}, false, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = 'PAID', payment_method = $1, updated_at = $2
		WHERE id = $3 AND status = 'PENDING'`,
		string(method), now.UTC(), id)
	if err != nil {
		return payment.Payment{}, false, errors.Wrap(err, "marking payment paid")
	}
	transitioned, err := res.RowsAffected()
	if err != nil {
		return payment.Payment{}, false, errors.Wrap(err, "marking payment paid")
	}

	if transitioned > 0 {
		if _, err = repo.ledger.CreateEntry(ctx, tx.Tx, entry); err != nil {
			return payment.Payment{}, false, errors.Wrap(err, "appending ledger entry")
		}
	}

	var row dbPayment
	if err = tx.GetContext(ctx, &row, `SELECT * FROM payments WHERE id = $1`, id); err != nil {
		return payment.Payment{}, false, repo.trapNoRowsErr(err, "getting payment")
	}

	if err = tx.Commit(); err != nil {
		return payment.Payment{}, false, errors.Wrap(err, "committing transaction")
	}
	return row.payment(), transitioned > 0, nil
}

func (repo paymentRepository) DeletePaymentsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting payments")
	}
	return nil
}

func (repo paymentRepository) SummarizePayments(ctx context.Context, studentID string, now time.Time) (payment.Summary, error) {
	var row struct {
		Total   decimal.Decimal `db:"total"`
		Paid    decimal.Decimal `db:"paid"`
		Pending decimal.Decimal `db:"pending"`
		Overdue decimal.Decimal `db:"overdue"`
	}
	err := repo.db.GetContext(ctx, &row, `
		SELECT
			COALESCE(SUM(amount), 0)                                                          AS total,
			COALESCE(SUM(amount) FILTER (WHERE status = 'PAID'), 0)                           AS paid,
			COALESCE(SUM(amount) FILTER (WHERE status = 'PENDING'), 0)                        AS pending,
			COALESCE(SUM(amount) FILTER (WHERE status = 'PENDING' AND due_date < $2), 0)      AS overdue
		FROM payments
		WHERE student_id = $1`,
		studentID, now.UTC())
	if err != nil {
		return payment.Summary{}, errors.Wrap(err, "summarizing payments")
	}
	return payment.Summary{
		Total:   row.Total,
		Paid:    row.Paid,
		Pending: row.Pending,
		Overdue: row.Overdue,
	}, nil
}
