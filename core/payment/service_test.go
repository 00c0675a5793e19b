package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

// ------------------------------------------------------------------ fakes ---

type fakePaymentRepo struct {
	payments map[string]Payment
	entries  []finance.Entry

	orderCalls  int
	settleCalls int
}

func newFakePaymentRepo(payments ...Payment) *fakePaymentRepo {
	repo := &fakePaymentRepo{payments: make(map[string]Payment)}
	for _, p := range payments {
		repo.payments[p.ID] = p
	}
	return repo
}

func (r *fakePaymentRepo) CreatePayment(_ context.Context, p Payment) (Payment, error) {
	if p.ID == "" {
		p.ID = "pmt" + time.Now().Format("150405.000000000")
	}
	r.payments[p.ID] = p
	return p, nil
}

func (r *fakePaymentRepo) GetPaymentByID(_ context.Context, id string) (Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (r *fakePaymentRepo) FilterPayments(_ context.Context, filter QueryFilter, page core.Pagination, _ ...core.DBOrdering) ([]Payment, int, error) {
	var matches []Payment
	now := time.Now().UTC()
	for _, p := range r.payments {
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && p.EffectiveStatus(now) != filter.Status {
			continue
		}
		matches = append(matches, p)
	}
	total := len(matches)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

func (r *fakePaymentRepo) UpdatePayment(_ context.Context, p Payment) (Payment, error) {
	if _, ok := r.payments[p.ID]; !ok {
		return Payment{}, ErrNotFound
	}
	r.payments[p.ID] = p
	return p, nil
}

func (r *fakePaymentRepo) SetGatewayOrder(_ context.Context, id, orderID string) error {
	p, ok := r.payments[id]
	if !ok {
		return ErrNotFound
	}
	p.GatewayOrderID.SetValid(orderID)
	r.payments[id] = p
	return nil
}

func (r *fakePaymentRepo) SettlePayment(_ context.Context, id string, method Method, entry finance.Entry, now time.Time) (Payment, bool, error) {
	r.settleCalls++
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, false, ErrNotFound
	}
	if p.Status != StatusPending {
		return p, false, nil
	}
	p.Status = StatusPaid
	p.Method = method
	p.UpdatedAt = now
	r.payments[id] = p
	r.entries = append(r.entries, entry)
	return p, true, nil
}

func (r *fakePaymentRepo) DeletePaymentsByID(_ context.Context, ids ...string) error {
	for _, id := range ids {
		delete(r.payments, id)
	}
	return nil
}

func (r *fakePaymentRepo) SummarizePayments(_ context.Context, studentID string, now time.Time) (Summary, error) {
	var sum Summary
	for _, p := range r.payments {
		if p.StudentID != studentID {
			continue
		}
		sum.Total = sum.Total.Add(p.Amount)
		switch p.EffectiveStatus(now) {
		case StatusPaid:
			sum.Paid = sum.Paid.Add(p.Amount)
		case StatusOverdue:
			sum.Overdue = sum.Overdue.Add(p.Amount)
			sum.Pending = sum.Pending.Add(p.Amount)
		default:
			sum.Pending = sum.Pending.Add(p.Amount)
		}
	}
	return sum, nil
}

type fakeStudentRepo struct {
	students map[string]school.Student
}

func newFakeStudentRepo(students ...school.Student) *fakeStudentRepo {
	repo := &fakeStudentRepo{students: make(map[string]school.Student)}
	for _, st := range students {
		repo.students[st.ID] = st
	}
	return repo
}

func (r *fakeStudentRepo) CreateStudent(_ context.Context, st school.Student) (school.Student, error) {
	r.students[st.ID] = st
	return st, nil
}

func (r *fakeStudentRepo) GetStudentByID(_ context.Context, id string) (school.Student, error) {
	st, ok := r.students[id]
	if !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	return st, nil
}

func (r *fakeStudentRepo) GetStudentByUserID(_ context.Context, userID string) (school.Student, error) {
	for _, st := range r.students {
		if st.UserID.Valid && st.UserID.String == userID {
			return st, nil
		}
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (r *fakeStudentRepo) FilterStudents(_ context.Context, _ school.StudentFilter, _ ...core.DBOrdering) ([]school.Student, error) {
	return nil, nil
}

func (r *fakeStudentRepo) UpdateStudent(_ context.Context, st school.Student) (school.Student, error) {
	r.students[st.ID] = st
	return st, nil
}

func (r *fakeStudentRepo) DeleteStudentsByID(_ context.Context, ids ...string) error {
	for _, id := range ids {
		delete(r.students, id)
	}
	return nil
}

type fakeUserRepo struct {
	users map[string]user.User
}

func newFakeUserRepo(users ...user.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]user.User)}
	for _, usr := range users {
		repo.users[usr.ID] = usr
	}
	return repo
}

func (r *fakeUserRepo) CheckUsernameUniqueness(context.Context, string, string, ...user.User) error {
	return nil
}

func (r *fakeUserRepo) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	r.users[usr.ID] = usr
	return usr, nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id string) (user.User, error) {
	usr, ok := r.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (r *fakeUserRepo) GetUserByUsername(context.Context, string) (user.User, error) {
	return user.User{}, user.ErrNotFound
}

func (r *fakeUserRepo) GetUserByEmail(context.Context, string) (user.User, error) {
	return user.User{}, user.ErrNotFound
}

func (r *fakeUserRepo) GetUserByUsernameOrEmail(context.Context, string) (user.User, error) {
	return user.User{}, user.ErrNotFound
}

func (r *fakeUserRepo) FilterUsers(context.Context, user.QueryFilter, ...core.DBOrdering) ([]user.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) UpdateUser(_ context.Context, usr user.User, _ *bool) (user.User, error) {
	r.users[usr.ID] = usr
	return usr, nil
}

func (r *fakeUserRepo) SetLastLogin(_ context.Context, id string, _ time.Time) (user.User, error) {
	return r.users[id], nil
}

func (r *fakeUserRepo) DeleteUsersByID(_ context.Context, ids ...string) error {
	for _, id := range ids {
		delete(r.users, id)
	}
	return nil
}

type fakeGateway struct {
	calls  int
	err    error
	nextID string
}

func (g *fakeGateway) CreateOrder(_ context.Context, req OrderRequest) (GatewayOrder, error) {
	g.calls++
	if g.err != nil {
		return GatewayOrder{}, g.err
	}
	return GatewayOrder{ID: g.nextID, Amount: req.Amount, Currency: req.Currency}, nil
}

type fakeMailSvc struct {
	messages []*core.EmailMessage
}

func (svc *fakeMailSvc) SendMessages(messages ...*core.EmailMessage) {
	svc.messages = append(svc.messages, messages...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// --------------------------------------------------------------- fixtures ---

var (
	adminUsr   = user.User{ID: "u-admin", Name: "Head", Email: "head@test.test", Roles: []string{user.RoleAdmin}}
	teacherUsr = user.User{ID: "u-teacher", Name: "Prof", Email: "prof@test.test", Roles: []string{user.RoleTeacher}}
	studentUsr = user.User{ID: "u-student", Name: "Kid", Email: "kid@test.test", Roles: []string{user.RoleStudent}}
	parentUsr  = user.User{ID: "u-parent", Name: "Mum", Email: "mum@test.test", Roles: []string{user.RoleParent}}
	otherUsr   = user.User{ID: "u-other", Name: "Other", Email: "other@test.test", Roles: []string{user.RoleStudent}}

	ownStudent = school.Student{
		ID:       "st1",
		Name:     "Kid",
		Surname:  "One",
		UserID:   null.StringFrom(studentUsr.ID),
		ParentID: null.StringFrom(parentUsr.ID),
	}
	otherStudent = school.Student{
		ID:      "st2",
		Name:    "Kid",
		Surname: "Two",
		UserID:  null.StringFrom(otherUsr.ID),
	}
)

func testConf() *core.Config {
	return &core.Config{
		AppName: "Shule",
		Gateway: core.GatewayConfig{
			KeyID:     "key_test",
			KeySecret: "s3cr3t",
			Currency:  "INR",
		},
	}
}

func newTestService(repo Repository, gw OrderGateway, conf *core.Config) (*Service, *fakeMailSvc) {
	mailSvc := &fakeMailSvc{}
	svc := NewService(
		repo,
		newFakeStudentRepo(ownStudent, otherStudent),
		newFakeUserRepo(adminUsr, teacherUsr, studentUsr, parentUsr, otherUsr),
		gw,
		mailSvc,
		conf,
		nopLogger{},
	)
	return svc, mailSvc
}

func pendingPayment(id, studentID string, amount int64, due time.Time) Payment {
	now := time.Now().UTC()
	return Payment{
		ID:        id,
		StudentID: studentID,
		Amount:    decimal.NewFromInt(amount),
		Type:      TypeTuition,
		Method:    MethodOnline,
		DueDate:   due,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ------------------------------------------------------------------- tests ---

func TestCanPayFor(t *testing.T) {
	tests := []struct {
		name   string
		caller user.User
		st     school.Student
		want   bool
	}{
		{name: "admin any student", caller: adminUsr, st: otherStudent, want: true},
		{name: "student own record", caller: studentUsr, st: ownStudent, want: true},
		{name: "student other record", caller: studentUsr, st: otherStudent, want: false},
		{name: "parent own child", caller: parentUsr, st: ownStudent, want: true},
		{name: "parent other child", caller: parentUsr, st: otherStudent, want: false},
		{name: "teacher denied", caller: teacherUsr, st: ownStudent, want: false},
		{name: "no roles denied", caller: user.User{ID: "u-x"}, st: ownStudent, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanPayFor(tt.caller, tt.st); got != tt.want {
				t.Errorf("CanPayFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServiceQueryScoping(t *testing.T) {
	due := time.Now().UTC().Add(30 * 24 * time.Hour)
	repo := newFakePaymentRepo(
		pendingPayment("p1", ownStudent.ID, 500, due),
		pendingPayment("p2", otherStudent.ID, 300, due),
	)
	svc, _ := newTestService(repo, &fakeGateway{}, testConf())
	ctx := context.Background()
	page := core.Pagination{}

	tests := []struct {
		name      string
		caller    user.User
		filter    QueryFilter
		wantTotal int
		wantErr   error
	}{
		{name: "admin sees all", caller: adminUsr, wantTotal: 2},
		{name: "admin filters by student", caller: adminUsr, filter: QueryFilter{StudentID: otherStudent.ID}, wantTotal: 1},
		{name: "student pinned to own record", caller: studentUsr, wantTotal: 1},
		{name: "student cannot widen filter", caller: studentUsr, filter: QueryFilter{StudentID: otherStudent.ID}, wantErr: ErrForbidden},
		{name: "parent sees own children only", caller: parentUsr, filter: QueryFilter{StudentID: ownStudent.ID}, wantTotal: 1},
		{name: "parent cannot query other child", caller: parentUsr, filter: QueryFilter{StudentID: otherStudent.ID}, wantErr: ErrForbidden},
		{name: "teacher denied", caller: teacherUsr, wantErr: ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Query(ctx, tt.caller, tt.filter, page)
			if err != tt.wantErr {
				t.Fatalf("Query() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && res.Total != tt.wantTotal {
				t.Errorf("Query() total = %d, want %d", res.Total, tt.wantTotal)
			}
		})
	}
}

func TestServiceQueryPagination(t *testing.T) {
	due := time.Now().UTC().Add(24 * time.Hour)
	var payments []Payment
	for i := 0; i < 45; i++ {
		payments = append(payments, pendingPayment("p"+string(rune('A'+i)), ownStudent.ID, 100, due))
	}
	svc, _ := newTestService(newFakePaymentRepo(payments...), &fakeGateway{}, testConf())

	res, err := svc.Query(context.Background(), adminUsr, QueryFilter{}, core.Pagination{Page: 3, Limit: 20})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.Total != 45 {
		t.Errorf("total = %d, want 45", res.Total)
	}
	if res.TotalPages != 3 {
		t.Errorf("total pages = %d, want 3", res.TotalPages)
	}
	if items := res.Items.([]Rendered); len(items) != 5 {
		t.Errorf("page 3 len = %d, want 5", len(items))
	}
}

func TestServiceCreateOrder(t *testing.T) {
	due := time.Now().UTC().Add(24 * time.Hour)
	ctx := context.Background()

	t.Run("payment not found", func(t *testing.T) {
		svc, _ := newTestService(newFakePaymentRepo(), &fakeGateway{}, testConf())
		if _, err := svc.CreateOrder(ctx, adminUsr, "nope"); err != ErrNotFound {
			t.Errorf("CreateOrder() error = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("caller not allowed", func(t *testing.T) {
		repo := newFakePaymentRepo(pendingPayment("p1", otherStudent.ID, 500, due))
		svc, _ := newTestService(repo, &fakeGateway{}, testConf())
		if _, err := svc.CreateOrder(ctx, parentUsr, "p1"); err != ErrForbidden {
			t.Errorf("CreateOrder() error = %v, want %v", err, ErrForbidden)
		}
	})

	t.Run("gateway not configured", func(t *testing.T) {
		conf := testConf()
		conf.Gateway.KeySecret = ""
		repo := newFakePaymentRepo(pendingPayment("p1", ownStudent.ID, 500, due))
		svc, _ := newTestService(repo, &fakeGateway{}, conf)
		if _, err := svc.CreateOrder(ctx, adminUsr, "p1"); err != ErrGatewayUnavailable {
			t.Errorf("CreateOrder() error = %v, want %v", err, ErrGatewayUnavailable)
		}
	})

	t.Run("paid payment rejected", func(t *testing.T) {
		p := pendingPayment("p1", ownStudent.ID, 500, due)
		p.Status = StatusPaid
		svc, _ := newTestService(newFakePaymentRepo(p), &fakeGateway{}, testConf())
		if _, err := svc.CreateOrder(ctx, adminUsr, "p1"); !core.IsValidationError(err) {
			t.Errorf("CreateOrder() error = %v, want validation error", err)
		}
	})

	t.Run("order created in minor units", func(t *testing.T) {
		repo := newFakePaymentRepo(pendingPayment("p1", ownStudent.ID, 500, due))
		gw := &fakeGateway{nextID: "order_abc"}
		svc, _ := newTestService(repo, gw, testConf())

		order, err := svc.CreateOrder(ctx, studentUsr, "p1")
		if err != nil {
			t.Fatalf("CreateOrder() error = %v", err)
		}
		if order.ID != "order_abc" {
			t.Errorf("order id = %q, want order_abc", order.ID)
		}
		if order.Amount != 50000 {
			t.Errorf("order amount = %d, want 50000 minor units", order.Amount)
		}
		if order.KeyID != "key_test" {
			t.Errorf("order key id = %q, want key_test", order.KeyID)
		}
		p, _ := repo.GetPaymentByID(ctx, "p1")
		if !p.GatewayOrderID.Valid || p.GatewayOrderID.String != "order_abc" {
			t.Errorf("gateway order id not recorded on payment: %v", p.GatewayOrderID)
		}
	})

	t.Run("repeat call reuses stored order", func(t *testing.T) {
		repo := newFakePaymentRepo(pendingPayment("p1", ownStudent.ID, 500, due))
		gw := &fakeGateway{nextID: "order_abc"}
		svc, _ := newTestService(repo, gw, testConf())

		first, err := svc.CreateOrder(ctx, parentUsr, "p1")
		if err != nil {
			t.Fatalf("CreateOrder() error = %v", err)
		}
		second, err := svc.CreateOrder(ctx, parentUsr, "p1")
		if err != nil {
			t.Fatalf("CreateOrder() error = %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("order ids differ: %q vs %q", first.ID, second.ID)
		}
		if gw.calls != 1 {
			t.Errorf("gateway called %d times, want 1", gw.calls)
		}
	})
}

func TestServiceVerify(t *testing.T) {
	due := time.Now().UTC().Add(24 * time.Hour)
	ctx := context.Background()
	conf := testConf()
	secret := []byte(conf.Gateway.KeySecret)

	newRepo := func() *fakePaymentRepo {
		p := pendingPayment("p1", ownStudent.ID, 500, due)
		p.GatewayOrderID.SetValid("order_abc")
		return newFakePaymentRepo(p)
	}

	t.Run("unknown payment", func(t *testing.T) {
		svc, _ := newTestService(newRepo(), &fakeGateway{}, conf)
		vr := VerifyRequest{PaymentID: "nope", OrderID: "order_abc", GatewayPaymentID: "gp1"}
		if _, err := svc.Verify(ctx, vr); err != ErrNotFound {
			t.Errorf("Verify() error = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("order mismatch", func(t *testing.T) {
		svc, _ := newTestService(newRepo(), &fakeGateway{}, conf)
		vr := VerifyRequest{
			PaymentID:        "p1",
			OrderID:          "order_zzz",
			GatewayPaymentID: "gp1",
			Signature:        Sign("order_zzz", "gp1", secret),
		}
		if _, err := svc.Verify(ctx, vr); !core.IsValidationError(err) {
			t.Errorf("Verify() error = %v, want validation error", err)
		}
	})

	t.Run("tampered signature leaves payment untouched", func(t *testing.T) {
		repo := newRepo()
		svc, mailSvc := newTestService(repo, &fakeGateway{}, conf)
		vr := VerifyRequest{
			PaymentID:        "p1",
			OrderID:          "order_abc",
			GatewayPaymentID: "gp1",
			Signature:        Sign("order_abc", "gp1", []byte("wrong-secret")),
		}
		if _, err := svc.Verify(ctx, vr); !core.IsValidationError(err) {
			t.Fatalf("Verify() error = %v, want validation error", err)
		}
		p, _ := repo.GetPaymentByID(ctx, "p1")
		if p.Status != StatusPending {
			t.Errorf("payment status = %s, want PENDING", p.Status)
		}
		if len(repo.entries) != 0 {
			t.Errorf("ledger entries = %d, want 0", len(repo.entries))
		}
		if len(mailSvc.messages) != 0 {
			t.Errorf("emails sent = %d, want 0", len(mailSvc.messages))
		}
	})

	t.Run("valid signature settles payment once", func(t *testing.T) {
		repo := newRepo()
		svc, mailSvc := newTestService(repo, &fakeGateway{}, conf)
		vr := VerifyRequest{
			PaymentID:        "p1",
			OrderID:          "order_abc",
			GatewayPaymentID: "gp1",
			Signature:        Sign("order_abc", "gp1", secret),
		}

		p, err := svc.Verify(ctx, vr)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if p.Status != StatusPaid {
			t.Errorf("payment status = %s, want PAID", p.Status)
		}
		if len(repo.entries) != 1 {
			t.Fatalf("ledger entries = %d, want 1", len(repo.entries))
		}
		entry := repo.entries[0]
		if !entry.Income.Equal(decimal.NewFromInt(500)) {
			t.Errorf("ledger income = %s, want 500", entry.Income)
		}
		if len(mailSvc.messages) != 1 {
			t.Errorf("receipt emails = %d, want 1", len(mailSvc.messages))
		}

		// replay: same callback again is a no-op success
		p, err = svc.Verify(ctx, vr)
		if err != nil {
			t.Fatalf("Verify() replay error = %v", err)
		}
		if p.Status != StatusPaid {
			t.Errorf("replay status = %s, want PAID", p.Status)
		}
		if len(repo.entries) != 1 {
			t.Errorf("ledger entries after replay = %d, want 1", len(repo.entries))
		}
		if len(mailSvc.messages) != 1 {
			t.Errorf("emails after replay = %d, want 1", len(mailSvc.messages))
		}
	})
}

func TestServiceSummarize(t *testing.T) {
	now := time.Now().UTC()
	paid := pendingPayment("p1", ownStudent.ID, 500, now.Add(24*time.Hour))
	paid.Status = StatusPaid
	overdue := pendingPayment("p2", ownStudent.ID, 300, now.Add(-24*time.Hour))
	upcoming := pendingPayment("p3", ownStudent.ID, 200, now.Add(48*time.Hour))

	svc, _ := newTestService(newFakePaymentRepo(paid, overdue, upcoming), &fakeGateway{}, testConf())
	ctx := context.Background()

	if _, err := svc.Summarize(ctx, teacherUsr, ownStudent.ID); err != ErrForbidden {
		t.Fatalf("Summarize() teacher error = %v, want %v", err, ErrForbidden)
	}

	sum, err := svc.Summarize(ctx, parentUsr, ownStudent.ID)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if !sum.Total.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("total = %s, want 1000", sum.Total)
	}
	if !sum.Paid.Equal(decimal.NewFromInt(500)) {
		t.Errorf("paid = %s, want 500", sum.Paid)
	}
	if !sum.Pending.Equal(decimal.NewFromInt(500)) {
		t.Errorf("pending = %s, want 500", sum.Pending)
	}
	if !sum.Overdue.Equal(decimal.NewFromInt(300)) {
		t.Errorf("overdue = %s, want 300", sum.Overdue)
	}
}

func TestServiceGetPolicy(t *testing.T) {
	due := time.Now().UTC().Add(24 * time.Hour)
	repo := newFakePaymentRepo(pendingPayment("p1", ownStudent.ID, 500, due))
	svc, _ := newTestService(repo, &fakeGateway{}, testConf())
	ctx := context.Background()

	if _, err := svc.Get(ctx, otherUsr, "p1"); err != ErrForbidden {
		t.Errorf("Get() other student error = %v, want %v", err, ErrForbidden)
	}
	if _, err := svc.Get(ctx, studentUsr, "p1"); err != nil {
		t.Errorf("Get() owner error = %v", err)
	}
	if _, err := svc.Get(ctx, adminUsr, "p1"); err != nil {
		t.Errorf("Get() admin error = %v", err)
	}
}
