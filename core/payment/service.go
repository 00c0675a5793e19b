package payment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("payment not found")
	ErrForbidden        = errors.New("permission denied")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrNotPending       = errors.New("payment is not pending")
	ErrOrderMismatch    = errors.New("order does not belong to this payment")
)

type (
	Repository interface {
		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		GetPaymentByID(ctx context.Context, id string) (Payment, error)
		// FilterPayments applies AND operation on available QueryFilter fields
		// and returns the page slice plus the total match count.
		// A Status filter matches the derived status: OVERDUE selects PENDING
		// rows whose due date has elapsed.
		FilterPayments(ctx context.Context, filter QueryFilter, page core.Pagination, ordering ...core.DBOrdering) ([]Payment, int, error)
		UpdatePayment(ctx context.Context, p Payment) (Payment, error)
		// SetGatewayOrder records the gateway order id created for a payment.
		SetGatewayOrder(ctx context.Context, id, orderID string) error
		// SettlePayment transitions a PENDING payment to PAID and appends the
		// ledger entry in a single transaction. It reports whether the row
		// actually transitioned; a replayed settlement touches neither table.
		SettlePayment(ctx context.Context, id string, method Method, entry finance.Entry, now time.Time) (Payment, bool, error)
		DeletePaymentsByID(ctx context.Context, ids ...string) error
		// SummarizePayments returns per-student sum aggregates; absent sums are 0.
		SummarizePayments(ctx context.Context, studentID string, now time.Time) (Summary, error)
	}

	Service struct {
		repo     Repository
		students school.StudentRepository
		users    user.Repository
		gateway  OrderGateway
		mailSvc  core.EmailService
		conf     *core.Config
		logger   core.Logger
	}
)

func NewService(
	repo Repository,
	students school.StudentRepository,
	users user.Repository,
	gateway OrderGateway,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		students: students,
		users:    users,
		gateway:  gateway,
		mailSvc:  mailSvc,
		conf:     conf,
		logger:   logger,
	}
}

// CanPayFor reports whether the caller may act on payments owned by the
// given student: admins always; a student for their own record; a parent for
// their children. Teachers and unrecognized callers are denied.
func CanPayFor(caller user.User, st school.Student) bool {
	switch {
	case caller.IsAdmin():
		return true
	case caller.IsStudent():
		return st.UserID.Valid && st.UserID.String == caller.ID
	case caller.IsParent():
		return st.ParentID.Valid && st.ParentID.String == caller.ID
	}
	return false
}

func (svc *Service) Create(ctx context.Context, np NewPayment) (Payment, error) {
	if _, err := svc.students.GetStudentByID(ctx, np.StudentID); err != nil {
		return Payment{}, err
	}
	now := time.Now().UTC()
	method := np.Method
	if method == "" {
		method = MethodOnline
	}
	p := Payment{
		StudentID: np.StudentID,
		Amount:    np.Amount,
		Type:      np.Type,
		Method:    method,
		DueDate:   np.DueDate.UTC(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if np.Description != "" {
		p.Description.SetValid(np.Description)
	}
	return svc.repo.CreatePayment(ctx, p)
}

// Get returns the payment when the caller is allowed to see it.
func (svc *Service) Get(ctx context.Context, caller user.User, id string) (Payment, error) {
	p, err := svc.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	st, err := svc.students.GetStudentByID(ctx, p.StudentID)
	if err != nil {
		return Payment{}, err
	}
	if !CanPayFor(caller, st) {
		return Payment{}, ErrForbidden
	}
	return p, nil
}

func (svc *Service) Update(ctx context.Context, id string, up UpdatePayment) (Payment, error) {
	p, err := svc.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if !up.Amount.IsZero() {
		p.Amount = up.Amount
	}
	if up.Type != "" {
		p.Type = up.Type
	}
	if up.Method != "" {
		p.Method = up.Method
	}
	if !up.DueDate.IsZero() {
		p.DueDate = up.DueDate.UTC()
	}
	if up.Description != "" {
		p.Description.SetValid(up.Description)
	}
	if up.Status != "" {
		p.Status = up.Status
	}
	p.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdatePayment(ctx, p)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeletePaymentsByID(ctx, ids...)
}

// Query lists payments visible to the caller, paginated.
// Per-student listings are ordered by due date ascending; global and
// parent-filtered listings by creation time descending.
func (svc *Service) Query(ctx context.Context, caller user.User, filter QueryFilter, page core.Pagination) (core.Paginated, error) {
	switch {
	case caller.IsAdmin():
		// filter as provided
	case caller.IsStudent():
		st, err := svc.students.GetStudentByUserID(ctx, caller.ID)
		if err != nil {
			if errors.Cause(err) == school.ErrStudentNotFound {
				return core.Paginated{}, ErrForbidden
			}
			return core.Paginated{}, err
		}
		if filter.StudentID != "" && filter.StudentID != st.ID {
			return core.Paginated{}, ErrForbidden
		}
		filter.StudentID = st.ID
		filter.ParentID = ""
	case caller.IsParent():
		if filter.StudentID != "" {
			st, err := svc.students.GetStudentByID(ctx, filter.StudentID)
			if err != nil {
				return core.Paginated{}, err
			}
			if !CanPayFor(caller, st) {
				return core.Paginated{}, ErrForbidden
			}
		} else {
			filter.ParentID = caller.ID
		}
	default:
		return core.Paginated{}, ErrForbidden
	}

	ordering := core.DBOrdering{Field: "created_at", Ascending: false}
	if filter.StudentID != "" {
		ordering = core.DBOrdering{Field: "due_date", Ascending: true}
	}

	page.Clean()
	payments, total, err := svc.repo.FilterPayments(ctx, filter, page, ordering)
	if err != nil {
		return core.Paginated{}, err
	}
	return core.NewPaginated(RenderAll(payments, time.Now().UTC()), total, page), nil
}

// Summarize returns the sum aggregates for a student's payments.
func (svc *Service) Summarize(ctx context.Context, caller user.User, studentID string) (Summary, error) {
	st, err := svc.students.GetStudentByID(ctx, studentID)
	if err != nil {
		return Summary{}, err
	}
	if !CanPayFor(caller, st) {
		return Summary{}, ErrForbidden
	}
	return svc.repo.SummarizePayments(ctx, studentID, time.Now().UTC())
}

// CreateOrder creates a gateway order for a pending payment.
// A payment that already holds a gateway order gets the stored order back
// instead of a second gateway order.
func (svc *Service) CreateOrder(ctx context.Context, caller user.User, paymentID string) (Order, error) {
	if svc.gateway == nil || svc.conf.Gateway.KeyID == "" || svc.conf.Gateway.KeySecret == "" {
		return Order{}, ErrGatewayUnavailable
	}

	p, err := svc.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return Order{}, err
	}
	st, err := svc.students.GetStudentByID(ctx, p.StudentID)
	if err != nil {
		return Order{}, err
	}
	if !CanPayFor(caller, st) {
		return Order{}, ErrForbidden
	}
	if p.Status == StatusPaid {
		return Order{}, core.NewValidationError(ErrNotPending)
	}

	if p.GatewayOrderID.Valid {
		return Order{
			ID:       p.GatewayOrderID.String,
			Amount:   p.AmountMinorUnits(),
			Currency: svc.conf.Gateway.Currency,
			KeyID:    svc.conf.Gateway.KeyID,
		}, nil
	}

	req := OrderRequest{
		Amount:   p.AmountMinorUnits(),
		Currency: svc.conf.Gateway.Currency,
		Receipt:  "pay_" + p.ID,
		Notes: map[string]string{
			"payment_id":   p.ID,
			"student_id":   p.StudentID,
			"payment_type": string(p.Type),
			"description":  p.Description.String,
		},
	}
	gwOrder, err := svc.gateway.CreateOrder(ctx, req)
	if err != nil {
		return Order{}, errors.Wrap(err, "creating gateway order")
	}
	if err = svc.repo.SetGatewayOrder(ctx, p.ID, gwOrder.ID); err != nil {
		return Order{}, errors.Wrap(err, "recording gateway order")
	}

	svc.logger.Info(fmt.Sprintf("gateway order %s created for payment %s", gwOrder.ID, p.ID))
	return Order{
		ID:       gwOrder.ID,
		Amount:   gwOrder.Amount,
		Currency: gwOrder.Currency,
		KeyID:    svc.conf.Gateway.KeyID,
	}, nil
}

// Verify validates a gateway callback and settles the payment.
// The PAID transition and the ledger append happen in a single transaction;
// a replayed callback with a valid signature changes nothing.
func (svc *Service) Verify(ctx context.Context, vr VerifyRequest) (Payment, error) {
	if svc.conf.Gateway.KeySecret == "" {
		return Payment{}, ErrGatewayUnavailable
	}

	p, err := svc.repo.GetPaymentByID(ctx, vr.PaymentID)
	if err != nil {
		return Payment{}, err
	}
	if !p.GatewayOrderID.Valid || p.GatewayOrderID.String != vr.OrderID {
		return Payment{}, core.NewValidationError(ErrOrderMismatch)
	}
	if !signatureValid(vr.OrderID, vr.GatewayPaymentID, vr.Signature, []byte(svc.conf.Gateway.KeySecret)) {
		return Payment{}, core.NewValidationError(ErrInvalidSignature)
	}

	st, err := svc.students.GetStudentByID(ctx, p.StudentID)
	if err != nil {
		return Payment{}, err
	}

	now := time.Now().UTC()
	entry := finance.NewEntry(
		p.Amount,
		fmt.Sprintf("%s payment by %s %s", p.Type, st.Name, st.Surname),
		now,
	)
	p, transitioned, err := svc.repo.SettlePayment(ctx, p.ID, MethodOnline, entry, now)
	if err != nil {
		return Payment{}, errors.Wrap(err, "settling payment")
	}

	if transitioned {
		svc.logger.Info(fmt.Sprintf("payment %s settled via gateway order %s", p.ID, vr.OrderID))
		svc.sendReceiptEmail(ctx, p, st)
	}
	return p, nil
}

func (svc *Service) sendReceiptEmail(ctx context.Context, p Payment, st school.Student) {
	var recipients []mail.Address
	for _, id := range []string{st.UserID.String, st.ParentID.String} {
		if id == "" {
			continue
		}
		if usr, err := svc.users.GetUserByID(ctx, id); err == nil && usr.Email != "" {
			recipients = append(recipients, mail.Address{Name: usr.Name, Address: usr.Email})
		}
	}
	if len(recipients) == 0 {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      recipients,
		Subject: fmt.Sprintf("%s payment received", svc.conf.AppName),
		Body: fmt.Sprintf(
			"The %s payment of %s for %s %s has been received. Thank you.",
			p.Type, p.Amount.StringFixed(2), st.Name, st.Surname,
		),
	})
}
