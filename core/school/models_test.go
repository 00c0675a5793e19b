package school

import (
	"testing"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/user"
)

func TestScopeFor(t *testing.T) {
	st := Student{
		ID:       "st1",
		Name:     "Kid",
		Surname:  "One",
		UserID:   null.StringFrom("u-student"),
		ParentID: null.StringFrom("u-parent"),
	}
	orphan := Student{ID: "st2", Name: "Kid", Surname: "Two"}

	tests := []struct {
		name       string
		usr        user.User
		wantOwn    bool // covers st
		wantOrphan bool // covers orphan
	}{
		{
			name:       "admin sees everything",
			usr:        user.User{ID: "u-admin", Roles: []string{user.RoleAdminPrincipal}},
			wantOwn:    true,
			wantOrphan: true,
		},
		{
			name:       "teacher sees everything",
			usr:        user.User{ID: "u-teacher", Roles: []string{user.RoleTeacher}},
			wantOwn:    true,
			wantOrphan: true,
		},
		{
			name:    "student sees own record only",
			usr:     user.User{ID: "u-student", Roles: []string{user.RoleStudent}},
			wantOwn: true,
		},
		{
			name: "other student sees nothing",
			usr:  user.User{ID: "u-other", Roles: []string{user.RoleStudent}},
		},
		{
			name:    "parent sees own children only",
			usr:     user.User{ID: "u-parent", Roles: []string{user.RoleParent}},
			wantOwn: true,
		},
		{
			name: "no roles sees nothing",
			usr:  user.User{ID: "u-x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := ScopeFor(tt.usr)
			if got := scope.CanViewStudent(st); got != tt.wantOwn {
				t.Errorf("CanViewStudent(st) = %v, want %v", got, tt.wantOwn)
			}
			if got := scope.CanViewStudent(orphan); got != tt.wantOrphan {
				t.Errorf("CanViewStudent(orphan) = %v, want %v", got, tt.wantOrphan)
			}
		})
	}

	if !ScopeFor(user.User{ID: "u-x"}).IsEmpty() {
		t.Error("roleless scope should be empty")
	}
	if ScopeFor(user.User{ID: "u-parent", Roles: []string{user.RoleParent}}).IsEmpty() {
		t.Error("parent scope should not be empty")
	}
}
