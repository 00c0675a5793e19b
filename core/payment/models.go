package payment

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusOverdue Status = "OVERDUE"
)

type Type string

const (
	TypeTuition   Type = "TUITION"
	TypeExam      Type = "EXAM"
	TypeTransport Type = "TRANSPORT"
	TypeLibrary   Type = "LIBRARY"
	TypeOther     Type = "OTHER"
)

type Method string

const (
	MethodOnline       Method = "ONLINE"
	MethodCash         Method = "CASH"
	MethodBankTransfer Method = "BANK_TRANSFER"
)

type Payment struct {
	ID             string          `json:"id"`
	StudentID      string          `json:"student_id"`
	Amount         decimal.Decimal `json:"amount"`
	Type           Type            `json:"payment_type"`
	Method         Method          `json:"payment_method"`
	DueDate        time.Time       `json:"due_date"`
	Description    null.String     `json:"description"`
	Status         Status          `json:"status"`
	GatewayOrderID null.String     `json:"gateway_order_id"`
	CreatedAt      time.Time       `json:"created_at"` // UTC
	UpdatedAt      time.Time       `json:"updated_at"` // UTC
}

// EffectiveStatus derives OVERDUE on read: a PENDING payment whose due date
// has elapsed is reported OVERDUE without mutating the stored status.
func (p Payment) EffectiveStatus(now time.Time) Status {
	if p.Status == StatusPending && !p.DueDate.IsZero() && p.DueDate.Before(now) {
		return StatusOverdue
	}
	return p.Status
}

// AmountMinorUnits converts the amount to the gateway's minor currency unit
// (amount x 100, rounded).
func (p Payment) AmountMinorUnits() int64 {
	return p.Amount.Shift(2).Round(0).IntPart()
}

// Rendered is a Payment whose status field carries the derived
// (due-date aware) status for API responses.
type Rendered struct {
	Payment
	Status Status `json:"status"`
}

// Render substitutes the effective status for API responses.
func (p Payment) Render(now time.Time) Rendered {
	return Rendered{Payment: p, Status: p.EffectiveStatus(now)}
}

func RenderAll(payments []Payment, now time.Time) []Rendered {
	out := make([]Rendered, 0, len(payments))
	for _, p := range payments {
		out = append(out, p.Render(now))
	}
	return out
}

// NewPayment contains information needed to create a new Payment.
// Payments are always created PENDING.
type NewPayment struct {
	StudentID   string          `json:"student_id" validate:"required,uuid4"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Type        Type            `json:"payment_type" validate:"required,paymenttype"`
	Method      Method          `json:"payment_method" validate:"omitempty,paymentmethod"`
	DueDate     time.Time       `json:"due_date" validate:"required"`
	Description string          `json:"description"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Description = core.CleanString(np.Description)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if !np.Amount.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount must be greater than zero"})
	}
	return nil
}

// UpdatePayment defines what information may be provided to modify an existing Payment.
// Zero values leave the original field unchanged.
type UpdatePayment struct {
	Amount      decimal.Decimal `json:"amount"`
	Type        Type            `json:"payment_type" validate:"omitempty,paymenttype"`
	Method      Method          `json:"payment_method" validate:"omitempty,paymentmethod"`
	DueDate     time.Time       `json:"due_date"`
	Description string          `json:"description"`
	Status      Status          `json:"status" validate:"omitempty,paymentstatus"`
}

func (up *UpdatePayment) Validate(orig Payment, validate *validator.Validate) error {
	up.Description = core.CleanString(up.Description)
	if err := validate.Struct(up); err != nil {
		return err
	}
	if !up.Amount.IsZero() && !up.Amount.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount must be greater than zero"})
	}
	// a settled payment stays settled: no edits back to PENDING, no amount changes
	if orig.Status == StatusPaid {
		if up.Status != "" && up.Status != StatusPaid {
			return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "a paid payment cannot change status"})
		}
		if !up.Amount.IsZero() && !up.Amount.Equal(orig.Amount) {
			return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "a paid payment cannot change amount"})
		}
	}
	return nil
}

type QueryFilter struct {
	StudentID string `query:"student_id"`
	ParentID  string `query:"parent_id"`
	Status    Status `query:"status"`
}

// Summary holds per-student sum-of-amount aggregates; missing sums default to 0.
type Summary struct {
	Total   decimal.Decimal `json:"total"`
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"`
	Overdue decimal.Decimal `json:"overdue"`
}

// Order is the gateway order returned to clients. It never carries the
// gateway secret; KeyID is the public key identifier clients check out with.
type Order struct {
	ID       string `json:"order_id"`
	Amount   int64  `json:"amount"` // minor currency units
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
}

// VerifyRequest is the gateway callback payload confirming a payment.
type VerifyRequest struct {
	OrderID          string `json:"order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
	PaymentID        string `json:"payment_id" validate:"required,uuid4"`
}

func (vr *VerifyRequest) Validate(validate *validator.Validate) error {
	vr.OrderID = core.CleanString(vr.OrderID)
	vr.GatewayPaymentID = core.CleanString(vr.GatewayPaymentID)
	vr.Signature = core.CleanString(vr.Signature)
	vr.PaymentID = core.CleanString(vr.PaymentID)
	return validate.Struct(vr)
}

var (
	paymentTypeTag    = "paymenttype"
	paymentTypeText   = "invalid payment type"
	paymentMethodTag  = "paymentmethod"
	paymentMethodText = "invalid payment method"
	paymentStatusTag  = "paymentstatus"
	paymentStatusText = "invalid payment status"
	validTypes    = map[Type]bool{TypeTuition: true, TypeExam: true, TypeTransport: true, TypeLibrary: true, TypeOther: true}
	validMethods  = map[Method]bool{MethodOnline: true, MethodCash: true, MethodBankTransfer: true}
	validStatuses = map[Status]bool{StatusPending: true, StatusPaid: true, StatusOverdue: true}
)

// InitValidators registers the payment enum validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(paymentTypeTag, func(fl validator.FieldLevel) bool {
		return validTypes[Type(fl.Field().String())]
	})
	core.RegisterCustomTranslation(validate, translator, paymentTypeTag, paymentTypeText)

	_ = validate.RegisterValidation(paymentMethodTag, func(fl validator.FieldLevel) bool {
		return validMethods[Method(fl.Field().String())]
	})
	core.RegisterCustomTranslation(validate, translator, paymentMethodTag, paymentMethodText)

	_ = validate.RegisterValidation(paymentStatusTag, func(fl validator.FieldLevel) bool {
		return validStatuses[Status(fl.Field().String())]
	})
	core.RegisterCustomTranslation(validate, translator, paymentStatusTag, paymentStatusText)
}
