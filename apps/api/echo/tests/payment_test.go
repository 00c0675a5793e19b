package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	testutil "github.com/trezcool/shule/tests"
)

// paginatedPayments mirrors the list response shape.
type paginatedPayments struct {
	Items      []payment.Rendered `json:"items"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	TotalPages int                `json:"total_pages"`
}

func Test_paymentApi_paymentCreate(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	studentUsr := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	st := testutil.CreateStudent(t, studentRepo, "Hero", "Moyo", studentUsr.ID, "")

	due := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	body := marshalObj(t, payment.NewPayment{
		StudentID: st.ID,
		Amount:    decimal.RequireFromString("1500.50"),
		Type:      payment.TypeTuition,
		DueDate:   due,
	})

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Admin required", token: getToken(t, studentUsr), body: body, wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "required fields", token: getToken(t, admin), wantCode: http.StatusBadRequest},
		{
			name: "unknown student", token: getToken(t, admin), wantCode: http.StatusNotFound,
			body: marshalObj(t, payment.NewPayment{
				StudentID: "9e7e60f8-85a9-44f4-a80b-34e5e2b09cbd",
				Amount:    decimal.RequireFromString("100"),
				Type:      payment.TypeTuition,
				DueDate:   due,
			}),
			wantData: marshalObj(t, httpErr{Error: "student not found"}),
		},
		{name: "payment created", token: getToken(t, admin), body: body, wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/payments"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var p payment.Rendered
				if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if p.ID == "" {
					t.Error("failed! empty payment ID")
				}
				if p.StudentID != st.ID {
					t.Errorf("failed! StudentID = %s; want %s", p.StudentID, st.ID)
				}
				if p.Status != payment.StatusPending {
					t.Errorf("failed! Status = %s; want %s", p.Status, payment.StatusPending)
				}
				if !p.Amount.Equal(decimal.RequireFromString("1500.50")) {
					t.Errorf("failed! Amount = %s; want 1500.50", p.Amount)
				}
			}
		})
	}
}

func Test_paymentApi_paymentQuery(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	studentUsr := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	parentUsr := testutil.CreateUser(t, usrRepo, "Mama", "mama", "mama@test.cd", "", []string{user.RoleParent}, true)

	own := testutil.CreateStudent(t, studentRepo, "Hero", "Moyo", studentUsr.ID, "")
	child := testutil.CreateStudent(t, studentRepo, "Kid", "Moyo", "", parentUsr.ID)

	future := time.Now().UTC().Add(30 * 24 * time.Hour)
	past := time.Now().UTC().Add(-7 * 24 * time.Hour)
	testutil.CreatePayment(t, paymentRepo, own.ID, "500", payment.StatusPending, future)
	testutil.CreatePayment(t, paymentRepo, own.ID, "300", payment.StatusPaid, past)
	testutil.CreatePayment(t, paymentRepo, child.ID, "200", payment.StatusPending, past) // overdue

	path := func(params map[string]string) string {
		v := make(url.Values)
		for key, val := range params {
			v.Add(key, val)
		}
		return "/v1/payments?" + v.Encode()
	}

	type extraTest struct {
		wantTotal    int
		wantStatuses []payment.Status
	}
	tests := []httpTest{
		{name: "Auth required", path: "/v1/payments", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Teachers denied", path: "/v1/payments", token: getToken(t, teacher), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Admin sees all", path: "/v1/payments", token: getToken(t, admin),
			wantCode: http.StatusOK, extra: extraTest{wantTotal: 3},
		},
		{
			name: "Student sees own only", path: "/v1/payments", token: getToken(t, studentUsr),
			wantCode: http.StatusOK, extra: extraTest{wantTotal: 2},
		},
		{
			name: "Student cannot widen to another student", path: path(map[string]string{"student_id": child.ID}),
			token: getToken(t, studentUsr), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Parent sees children", path: "/v1/payments", token: getToken(t, parentUsr),
			wantCode: http.StatusOK, extra: extraTest{wantTotal: 1, wantStatuses: []payment.Status{payment.StatusOverdue}},
		},
		{
			name: "Overdue filter", path: path(map[string]string{"status": "OVERDUE"}), token: getToken(t, admin),
			wantCode: http.StatusOK, extra: extraTest{wantTotal: 1, wantStatuses: []payment.Status{payment.StatusOverdue}},
		},
		{
			name: "Paid filter", path: path(map[string]string{"status": "PAID"}), token: getToken(t, admin),
			wantCode: http.StatusOK, extra: extraTest{wantTotal: 1, wantStatuses: []payment.Status{payment.StatusPaid}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if extra, ok := tt.extra.(extraTest); ok {
				var res paginatedPayments
				if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if res.Total != extra.wantTotal {
					t.Errorf("failed! total = %d; want %d", res.Total, extra.wantTotal)
				}
				if len(res.Items) != extra.wantTotal {
					t.Errorf("failed! len(items) = %d; want %d", len(res.Items), extra.wantTotal)
				}
				if res.Page != 1 {
					t.Errorf("failed! page = %d; want 1", res.Page)
				}
				for i, want := range extra.wantStatuses {
					if got := res.Items[i].Status; got != want {
						t.Errorf("failed! items[%d].status = %s; want %s", i, got, want)
					}
				}
			}
		})
	}
}

func Test_paymentApi_paymentSummary(t *testing.T) {
	resetDB(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	studentUsr := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	st := testutil.CreateStudent(t, studentRepo, "Hero", "Moyo", studentUsr.ID, "")

	future := time.Now().UTC().Add(30 * 24 * time.Hour)
	past := time.Now().UTC().Add(-7 * 24 * time.Hour)
	testutil.CreatePayment(t, paymentRepo, st.ID, "500", payment.StatusPaid, past)
	testutil.CreatePayment(t, paymentRepo, st.ID, "200", payment.StatusPending, future)
	testutil.CreatePayment(t, paymentRepo, st.ID, "300", payment.StatusPending, past) // overdue

	path := "/v1/payments/summary?student_id=" + st.ID

	t.Run("Teachers denied", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, teacher))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("Student summary", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, studentUsr))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var sum payment.Summary
		if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		checks := []struct {
			name string
			got  decimal.Decimal
			want string
		}{
			{"total", sum.Total, "1000"},
			{"paid", sum.Paid, "500"},
			{"pending", sum.Pending, "500"},
			{"overdue", sum.Overdue, "300"},
		}
		for _, c := range checks {
			if !c.got.Equal(decimal.RequireFromString(c.want)) {
				t.Errorf("failed! %s = %s; want %s", c.name, c.got, c.want)
			}
		}
	})
}

func Test_paymentApi_paymentOrder(t *testing.T) {
	resetDB(t)

	studentUsr := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	otherUsr := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleStudent}, true)
	st := testutil.CreateStudent(t, studentRepo, "Hero", "Moyo", studentUsr.ID, "")
	testutil.CreateStudent(t, studentRepo, "Other", "Moyo", otherUsr.ID, "")

	future := time.Now().UTC().Add(30 * 24 * time.Hour)
	pending := testutil.CreatePayment(t, paymentRepo, st.ID, "1500.50", payment.StatusPending, future)
	paid := testutil.CreatePayment(t, paymentRepo, st.ID, "500", payment.StatusPaid, future)

	orderPath := func(id string) string { return "/v1/payments/" + id + "/order" }

	t.Run("Auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, orderPath(pending.ID))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("Other students denied", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, orderPath(pending.ID), getToken(t, otherUsr))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("Paid payment rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, orderPath(paid.ID), getToken(t, studentUsr))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("Order created and reused", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, orderPath(pending.ID), getToken(t, studentUsr))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}

		var order payment.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if order.ID == "" {
			t.Fatal("failed! empty order ID")
		}
		if order.Amount != 150050 { // 1500.50 in minor units
			t.Errorf("failed! amount = %d; want 150050", order.Amount)
		}
		if order.Currency != conf.Gateway.Currency {
			t.Errorf("failed! currency = %s; want %s", order.Currency, conf.Gateway.Currency)
		}
		if order.KeyID != conf.Gateway.KeyID {
			t.Errorf("failed! key_id = %s; want %s", order.KeyID, conf.Gateway.KeyID)
		}

		// a second request reuses the stored order instead of creating a new one
		req, rec = newAuthRequest(http.MethodPost, orderPath(pending.ID), getToken(t, studentUsr))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusCreated)
		}
		var again payment.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &again); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if again.ID != order.ID {
			t.Errorf("failed! order ID changed on repeat: %s != %s", again.ID, order.ID)
		}
	})
}

func Test_paymentApi_paymentVerify(t *testing.T) {
	resetDB(t)

	studentUsr := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	st := testutil.CreateStudent(t, studentRepo, "Hero", "Moyo", studentUsr.ID, "")

	future := time.Now().UTC().Add(30 * 24 * time.Hour)
	p := testutil.CreatePayment(t, paymentRepo, st.ID, "500", payment.StatusPending, future)

	orderID := "order_abc"
	if err := paymentRepo.SetGatewayOrder(context.Background(), p.ID, orderID); err != nil {
		t.Fatalf("SetGatewayOrder(): %v", err)
	}
	secret := []byte(conf.Gateway.KeySecret)

	verify := func(t *testing.T, body []byte) *paymentVerifyResult {
		t.Helper()
		req, rec := newRequest(http.MethodPost, "/v1/payments/verify", body)
		app.ServeHTTP(rec, req)
		return &paymentVerifyResult{t: t, code: rec.Code, body: rec.Body.Bytes()}
	}

	t.Run("required fields", func(t *testing.T) {
		verify(t, nil).wantCode(http.StatusBadRequest)
	})

	t.Run("unknown payment", func(t *testing.T) {
		res := verify(t, marshalObj(t, payment.VerifyRequest{
			PaymentID:        "9e7e60f8-85a9-44f4-a80b-34e5e2b09cbd",
			OrderID:          orderID,
			GatewayPaymentID: "gp_1",
			Signature:        payment.Sign(orderID, "gp_1", secret),
		}))
		res.wantCode(http.StatusNotFound)
	})

	t.Run("order mismatch", func(t *testing.T) {
		res := verify(t, marshalObj(t, payment.VerifyRequest{
			PaymentID:        p.ID,
			OrderID:          "order_nope",
			GatewayPaymentID: "gp_1",
			Signature:        payment.Sign("order_nope", "gp_1", secret),
		}))
		res.wantCode(http.StatusBadRequest).wantError("order does not belong to this payment")
	})

	t.Run("tampered signature leaves payment pending", func(t *testing.T) {
		res := verify(t, marshalObj(t, payment.VerifyRequest{
			PaymentID:        p.ID,
			OrderID:          orderID,
			GatewayPaymentID: "gp_1",
			Signature:        payment.Sign(orderID, "gp_1", []byte("wrong-secret")),
		}))
		res.wantCode(http.StatusBadRequest).wantError("invalid payment signature")

		refreshed, err := paymentRepo.GetPaymentByID(context.Background(), p.ID)
		if err != nil {
			t.Fatalf("GetPaymentByID(): %v", err)
		}
		if refreshed.Status != payment.StatusPending {
			t.Errorf("failed! status = %s; want %s", refreshed.Status, payment.StatusPending)
		}
		assertLedgerEntries(t, 0)
		if len(emailsvc.SentMessages) != 0 {
			t.Errorf("failed! len(SentMessages) = %d; want 0", len(emailsvc.SentMessages))
		}
	})

	validBody := marshalObj(t, payment.VerifyRequest{
		PaymentID:        p.ID,
		OrderID:          orderID,
		GatewayPaymentID: "gp_1",
		Signature:        payment.Sign(orderID, "gp_1", secret),
	})

	t.Run("valid signature settles payment", func(t *testing.T) {
		res := verify(t, validBody)
		res.wantCode(http.StatusOK)

		var settled payment.Rendered
		if err := json.Unmarshal(res.body, &settled); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if settled.Status != payment.StatusPaid {
			t.Errorf("failed! status = %s; want %s", settled.Status, payment.StatusPaid)
		}

		entries := assertLedgerEntries(t, 1)
		if len(entries) == 1 {
			if !entries[0].Income.Equal(decimal.RequireFromString("500")) {
				t.Errorf("failed! ledger income = %s; want 500", entries[0].Income)
			}
		}
		if len(emailsvc.SentMessages) != 1 {
			t.Errorf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
		}
	})

	t.Run("replayed callback changes nothing", func(t *testing.T) {
		res := verify(t, validBody)
		res.wantCode(http.StatusOK)

		assertLedgerEntries(t, 1)
		if len(emailsvc.SentMessages) != 1 {
			t.Errorf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
		}
	})
}

type paymentVerifyResult struct {
	t    *testing.T
	code int
	body []byte
}

func (res *paymentVerifyResult) wantCode(code int) *paymentVerifyResult {
	res.t.Helper()
	if res.code != code {
		res.t.Fatalf("failed! code = %v; wantCode %v; body %s", res.code, code, res.body)
	}
	return res
}

func (res *paymentVerifyResult) wantError(msg string) *paymentVerifyResult {
	res.t.Helper()
	var he httpErr
	if err := json.Unmarshal(res.body, &he); err != nil {
		res.t.Fatalf("json.Unmarshal(): %v", err)
	}
	if he.Error != msg {
		res.t.Errorf("failed! error = %q; want %q", he.Error, msg)
	}
	return res
}

func assertLedgerEntries(t *testing.T, want int) []finance.Entry {
	t.Helper()
	entries, err := financeRepo.FilterEntries(context.Background(), finance.QueryFilter{})
	if err != nil {
		t.Fatalf("FilterEntries(): %v", err)
	}
	if len(entries) != want {
		t.Errorf("failed! len(entries) = %d; want %d", len(entries), want)
	}
	return entries
}
