package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(
	t *testing.T,
	repo school.StudentRepository,
	name, surname, userID, parentID string,
) school.Student {
	t.Helper()

	now := time.Now().UTC()
	st := school.Student{
		Name:      name,
		Surname:   surname,
		UserID:    null.NewString(userID, userID != ""),
		ParentID:  null.NewString(parentID, parentID != ""),
		CreatedAt: now,
		UpdatedAt: now,
	}
	st, err := repo.CreateStudent(context.Background(), st)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

func CreatePayment(
	t *testing.T,
	repo payment.Repository,
	studentID, amount string,
	status payment.Status,
	dueDate time.Time,
) payment.Payment {
	t.Helper()

	now := time.Now().UTC()
	p := payment.Payment{
		StudentID: studentID,
		Amount:    decimal.RequireFromString(amount),
		Type:      payment.TypeTuition,
		Method:    payment.MethodOnline,
		DueDate:   dueDate.UTC(),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p, err := repo.CreatePayment(context.Background(), p)
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	return p
}
