package school

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// Scope restricts record queries to what the caller may see.
// It is computed once from the resolved identity and passed into repositories,
// instead of re-deriving role-conditional filters at every call site.
type Scope struct {
	All      bool   // admins & teachers see everything
	UserID   string // student callers: match Student.UserID
	ParentID string // parent callers: match Student.ParentID
}

func ScopeFor(usr user.User) Scope {
	switch {
	case usr.IsAdmin() || usr.IsTeacher():
		return Scope{All: true}
	case usr.IsParent():
		return Scope{ParentID: usr.ID}
	case usr.IsStudent():
		return Scope{UserID: usr.ID}
	}
	return Scope{} // matches nothing
}

// CanViewStudent reports whether the scope covers the given student record.
func (s Scope) CanViewStudent(st Student) bool {
	if s.All {
		return true
	}
	if s.UserID != "" && st.UserID.Valid && st.UserID.String == s.UserID {
		return true
	}
	if s.ParentID != "" && st.ParentID.Valid && st.ParentID.String == s.ParentID {
		return true
	}
	return false
}

// IsEmpty reports whether the scope matches nothing at all.
func (s Scope) IsEmpty() bool {
	return !s.All && s.UserID == "" && s.ParentID == ""
}

type Student struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Surname   string      `json:"surname"`
	UserID    null.String `json:"user_id"`   // login account, if any
	ParentID  null.String `json:"parent_id"` // guardian's user id, if any
	ClassID   null.String `json:"class_id"`
	CreatedAt time.Time   `json:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at"` // UTC
}

type NewStudent struct {
	Name     string `json:"name" validate:"required"`
	Surname  string `json:"surname" validate:"required"`
	UserID   string `json:"user_id" validate:"omitempty,uuid4"`
	ParentID string `json:"parent_id" validate:"omitempty,uuid4"`
	ClassID  string `json:"class_id" validate:"omitempty,uuid4"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Surname = core.CleanString(ns.Surname)
	return validate.Struct(ns)
}

type UpdateStudent struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	ParentID string `json:"parent_id" validate:"omitempty,uuid4"`
	ClassID  string `json:"class_id" validate:"omitempty,uuid4"`
}

func (us *UpdateStudent) Validate(orig Student, validate *validator.Validate) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if surname := core.CleanString(us.Surname); surname != "" {
		us.Surname = surname
	} else {
		us.Surname = orig.Surname
	}
	return validate.Struct(us)
}

type StudentFilter struct {
	Search   string `query:"search"`
	ClassID  string `query:"class_id"`
	ParentID string `query:"parent_id"`

	Scope Scope `query:"-"`
}

func (f *StudentFilter) Clean() {
	f.Search = core.CleanString(f.Search)
}

type Class struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Level     int         `json:"level"`
	TeacherID null.String `json:"teacher_id"` // supervising teacher's user id
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type NewClass struct {
	Name      string `json:"name" validate:"required"`
	Level     int    `json:"level" validate:"gte=0"`
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid4"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewSubject struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required,alphanum_"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code, true /* lower */)
	return validate.Struct(ns)
}

type Lesson struct {
	ID        string      `json:"id"`
	SubjectID string      `json:"subject_id"`
	ClassID   string      `json:"class_id"`
	TeacherID null.String `json:"teacher_id"`
	Weekday   int         `json:"weekday"` // time.Weekday
	StartsAt  string      `json:"starts_at"` // "HH:MM"
	EndsAt    string      `json:"ends_at"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type NewLesson struct {
	SubjectID string `json:"subject_id" validate:"required,uuid4"`
	ClassID   string `json:"class_id" validate:"required,uuid4"`
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid4"`
	Weekday   int    `json:"weekday" validate:"gte=0,lte=6"`
	StartsAt  string `json:"starts_at" validate:"required"`
	EndsAt    string `json:"ends_at" validate:"required"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error { return validate.Struct(nl) }

type Exam struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	SubjectID string    `json:"subject_id"`
	ClassID   string    `json:"class_id"`
	HeldAt    time.Time `json:"held_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewExam struct {
	Title     string    `json:"title" validate:"required"`
	SubjectID string    `json:"subject_id" validate:"required,uuid4"`
	ClassID   string    `json:"class_id" validate:"required,uuid4"`
	HeldAt    time.Time `json:"held_at" validate:"required"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	return validate.Struct(ne)
}

type Assignment struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	SubjectID string    `json:"subject_id"`
	ClassID   string    `json:"class_id"`
	DueDate   time.Time `json:"due_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewAssignment struct {
	Title     string    `json:"title" validate:"required"`
	SubjectID string    `json:"subject_id" validate:"required,uuid4"`
	ClassID   string    `json:"class_id" validate:"required,uuid4"`
	DueDate   time.Time `json:"due_date" validate:"required"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	return validate.Struct(na)
}

type Announcement struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	ClassID   null.String `json:"class_id"` // empty: school-wide
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type NewAnnouncement struct {
	Title   string `json:"title" validate:"required"`
	Body    string `json:"body" validate:"required"`
	ClassID string `json:"class_id" validate:"omitempty,uuid4"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Body = core.CleanString(na.Body)
	return validate.Struct(na)
}

type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description null.String `json:"description"`
	StartsAt    time.Time   `json:"starts_at"`
	EndsAt      time.Time   `json:"ends_at"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type NewEvent struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	return validate.Struct(ne)
}
