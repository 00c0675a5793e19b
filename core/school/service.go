package school

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrStudentNotFound      = errors.New("student not found")
	ErrClassNotFound        = errors.New("class not found")
	ErrSubjectNotFound      = errors.New("subject not found")
	ErrLessonNotFound       = errors.New("lesson not found")
	ErrExamNotFound         = errors.New("exam not found")
	ErrAssignmentNotFound   = errors.New("assignment not found")
	ErrAnnouncementNotFound = errors.New("announcement not found")
	ErrEventNotFound        = errors.New("event not found")
)

type (
	StudentRepository interface {
		CreateStudent(ctx context.Context, st Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		GetStudentByUserID(ctx context.Context, userID string) (Student, error)
		// FilterStudents applies AND operation on available StudentFilter fields,
		// including the caller Scope.
		FilterStudents(ctx context.Context, filter StudentFilter, ordering ...core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids ...string) error
	}

	ClassRepository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		GetClassByID(ctx context.Context, id string) (Class, error)
		QueryAllClasses(ctx context.Context) ([]Class, error)
		UpdateClass(ctx context.Context, cls Class) (Class, error)
		DeleteClassesByID(ctx context.Context, ids ...string) error
	}

	// AcademicsRepository covers subjects, lessons, exams and assignments.
	AcademicsRepository interface {
		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		GetSubjectByID(ctx context.Context, id string) (Subject, error)
		QueryAllSubjects(ctx context.Context) ([]Subject, error)
		UpdateSubject(ctx context.Context, sub Subject) (Subject, error)
		DeleteSubjectsByID(ctx context.Context, ids ...string) error

		CreateLesson(ctx context.Context, les Lesson) (Lesson, error)
		GetLessonByID(ctx context.Context, id string) (Lesson, error)
		FilterLessons(ctx context.Context, classID string) ([]Lesson, error)
		UpdateLesson(ctx context.Context, les Lesson) (Lesson, error)
		DeleteLessonsByID(ctx context.Context, ids ...string) error

		CreateExam(ctx context.Context, ex Exam) (Exam, error)
		GetExamByID(ctx context.Context, id string) (Exam, error)
		FilterExams(ctx context.Context, classID string) ([]Exam, error)
		UpdateExam(ctx context.Context, ex Exam) (Exam, error)
		DeleteExamsByID(ctx context.Context, ids ...string) error

		CreateAssignment(ctx context.Context, as Assignment) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		FilterAssignments(ctx context.Context, classID string) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, as Assignment) (Assignment, error)
		DeleteAssignmentsByID(ctx context.Context, ids ...string) error
	}

	// PostRepository covers announcements and events.
	PostRepository interface {
		CreateAnnouncement(ctx context.Context, an Announcement) (Announcement, error)
		GetAnnouncementByID(ctx context.Context, id string) (Announcement, error)
		FilterAnnouncements(ctx context.Context, classID string) ([]Announcement, error)
		UpdateAnnouncement(ctx context.Context, an Announcement) (Announcement, error)
		DeleteAnnouncementsByID(ctx context.Context, ids ...string) error

		CreateEvent(ctx context.Context, ev Event) (Event, error)
		GetEventByID(ctx context.Context, id string) (Event, error)
		QueryAllEvents(ctx context.Context) ([]Event, error)
		UpdateEvent(ctx context.Context, ev Event) (Event, error)
		DeleteEventsByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		Students  StudentRepository
		Classes   ClassRepository
		Academics AcademicsRepository
		Posts     PostRepository
	}
)

func NewService(students StudentRepository, classes ClassRepository, academics AcademicsRepository, posts PostRepository) *Service {
	return &Service{
		Students:  students,
		Classes:   classes,
		Academics: academics,
		Posts:     posts,
	}
}

// Students

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	st := Student{
		Name:      ns.Name,
		Surname:   ns.Surname,
		UserID:    null.NewString(ns.UserID, ns.UserID != ""),
		ParentID:  null.NewString(ns.ParentID, ns.ParentID != ""),
		ClassID:   null.NewString(ns.ClassID, ns.ClassID != ""),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.Students.CreateStudent(ctx, st)
}

// GetStudent returns the student only when the scope covers it;
// otherwise it reports not-found to avoid leaking record existence.
func (svc *Service) GetStudent(ctx context.Context, scope Scope, id string) (Student, error) {
	st, err := svc.Students.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !scope.CanViewStudent(st) {
		return Student{}, ErrStudentNotFound
	}
	return st, nil
}

func (svc *Service) QueryStudents(ctx context.Context, scope Scope, filter *StudentFilter) ([]Student, error) {
	if scope.IsEmpty() {
		return []Student{}, nil
	}
	filter.Clean()
	filter.Scope = scope
	return svc.Students.FilterStudents(ctx, *filter, core.DBOrdering{Field: "surname", Ascending: true})
}

func (svc *Service) UpdateStudent(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	st, err := svc.Students.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	st.Name = us.Name
	st.Surname = us.Surname
	if us.ParentID != "" {
		st.ParentID = null.StringFrom(us.ParentID)
	}
	if us.ClassID != "" {
		st.ClassID = null.StringFrom(us.ClassID)
	}
	st.UpdatedAt = time.Now().UTC()
	return svc.Students.UpdateStudent(ctx, st)
}

func (svc *Service) DeleteStudents(ctx context.Context, ids ...string) error {
	return svc.Students.DeleteStudentsByID(ctx, ids...)
}

// Classes

func (svc *Service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	now := time.Now().UTC()
	cls := Class{
		Name:      nc.Name,
		Level:     nc.Level,
		TeacherID: null.NewString(nc.TeacherID, nc.TeacherID != ""),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.Classes.CreateClass(ctx, cls)
}

func (svc *Service) GetClass(ctx context.Context, id string) (Class, error) {
	return svc.Classes.GetClassByID(ctx, id)
}

func (svc *Service) QueryClasses(ctx context.Context) ([]Class, error) {
	return svc.Classes.QueryAllClasses(ctx)
}

func (svc *Service) UpdateClass(ctx context.Context, id string, nc NewClass) (Class, error) {
	cls, err := svc.Classes.GetClassByID(ctx, id)
	if err != nil {
		return Class{}, err
	}
	cls.Name = nc.Name
	cls.Level = nc.Level
	if nc.TeacherID != "" {
		cls.TeacherID = null.StringFrom(nc.TeacherID)
	}
	cls.UpdatedAt = time.Now().UTC()
	return svc.Classes.UpdateClass(ctx, cls)
}

func (svc *Service) DeleteClasses(ctx context.Context, ids ...string) error {
	return svc.Classes.DeleteClassesByID(ctx, ids...)
}

// Subjects

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	now := time.Now().UTC()
	return svc.Academics.CreateSubject(ctx, Subject{Name: ns.Name, Code: ns.Code, CreatedAt: now, UpdatedAt: now})
}

func (svc *Service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.Academics.GetSubjectByID(ctx, id)
}

func (svc *Service) QuerySubjects(ctx context.Context) ([]Subject, error) {
	return svc.Academics.QueryAllSubjects(ctx)
}

func (svc *Service) UpdateSubject(ctx context.Context, id string, ns NewSubject) (Subject, error) {
	sub, err := svc.Academics.GetSubjectByID(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	sub.Name = ns.Name
	sub.Code = ns.Code
	sub.UpdatedAt = time.Now().UTC()
	return svc.Academics.UpdateSubject(ctx, sub)
}

func (svc *Service) DeleteSubjects(ctx context.Context, ids ...string) error {
	return svc.Academics.DeleteSubjectsByID(ctx, ids...)
}

// Lessons

func (svc *Service) CreateLesson(ctx context.Context, nl NewLesson) (Lesson, error) {
	now := time.Now().UTC()
	les := Lesson{
		SubjectID: nl.SubjectID,
		ClassID:   nl.ClassID,
		TeacherID: null.NewString(nl.TeacherID, nl.TeacherID != ""),
		Weekday:   nl.Weekday,
		StartsAt:  nl.StartsAt,
		EndsAt:    nl.EndsAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.Academics.CreateLesson(ctx, les)
}

func (svc *Service) GetLesson(ctx context.Context, id string) (Lesson, error) {
	return svc.Academics.GetLessonByID(ctx, id)
}

func (svc *Service) QueryLessons(ctx context.Context, classID string) ([]Lesson, error) {
	return svc.Academics.FilterLessons(ctx, classID)
}

func (svc *Service) UpdateLesson(ctx context.Context, id string, nl NewLesson) (Lesson, error) {
	les, err := svc.Academics.GetLessonByID(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	les.SubjectID = nl.SubjectID
	les.ClassID = nl.ClassID
	if nl.TeacherID != "" {
		les.TeacherID = null.StringFrom(nl.TeacherID)
	}
	les.Weekday = nl.Weekday
	les.StartsAt = nl.StartsAt
	les.EndsAt = nl.EndsAt
	les.UpdatedAt = time.Now().UTC()
	return svc.Academics.UpdateLesson(ctx, les)
}

func (svc *Service) DeleteLessons(ctx context.Context, ids ...string) error {
	return svc.Academics.DeleteLessonsByID(ctx, ids...)
}

// Exams

func (svc *Service) CreateExam(ctx context.Context, ne NewExam) (Exam, error) {
	now := time.Now().UTC()
	ex := Exam{
		Title:     ne.Title,
		SubjectID: ne.SubjectID,
		ClassID:   ne.ClassID,
		HeldAt:    ne.HeldAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.Academics.CreateExam(ctx, ex)
}

func (svc *Service) GetExam(ctx context.Context, id string) (Exam, error) {
	return svc.Academics.GetExamByID(ctx, id)
}

func (svc *Service) QueryExams(ctx context.Context, classID string) ([]Exam, error) {
	return svc.Academics.FilterExams(ctx, classID)
}

func (svc *Service) UpdateExam(ctx context.Context, id string, ne NewExam) (Exam, error) {
	ex, err := svc.Academics.GetExamByID(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	ex.Title = ne.Title
	ex.SubjectID = ne.SubjectID
	ex.ClassID = ne.ClassID
	ex.HeldAt = ne.HeldAt.UTC()
	ex.UpdatedAt = time.Now().UTC()
	return svc.Academics.UpdateExam(ctx, ex)
}

func (svc *Service) DeleteExams(ctx context.Context, ids ...string) error {
	return svc.Academics.DeleteExamsByID(ctx, ids...)
}

// Assignments

func (svc *Service) CreateAssignment(ctx context.Context, na NewAssignment) (Assignment, error) {
	now := time.Now().UTC()
	as := Assignment{
		Title:     na.Title,
		SubjectID: na.SubjectID,
		ClassID:   na.ClassID,
		DueDate:   na.DueDate.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.Academics.CreateAssignment(ctx, as)
}

func (svc *Service) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return svc.Academics.GetAssignmentByID(ctx, id)
}

func (svc *Service) QueryAssignments(ctx context.Context, classID string) ([]Assignment, error) {
	return svc.Academics.FilterAssignments(ctx, classID)
}

func (svc *Service) UpdateAssignment(ctx context.Context, id string, na NewAssignment) (Assignment, error) {
	as, err := svc.Academics.GetAssignmentByID(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	as.Title = na.Title
	as.SubjectID = na.SubjectID
	as.ClassID = na.ClassID
	as.DueDate = na.DueDate.UTC()
	as.UpdatedAt = time.Now().UTC()
	return svc.Academics.UpdateAssignment(ctx, as)
}

func (svc *Service) DeleteAssignments(ctx context.Context, ids ...string) error {
	return svc.Academics.DeleteAssignmentsByID(ctx, ids...)
}

// Announcements

func (svc *Service) CreateAnnouncement(ctx context.Context, na NewAnnouncement) (Announcement, error) {
	now := time.Now().UTC()
	an := Announcement{
		Title:     na.Title,
		Body:      na.Body,
		ClassID:   null.NewString(na.ClassID, na.ClassID != ""),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.Posts.CreateAnnouncement(ctx, an)
}

func (svc *Service) GetAnnouncement(ctx context.Context, id string) (Announcement, error) {
	return svc.Posts.GetAnnouncementByID(ctx, id)
}

func (svc *Service) QueryAnnouncements(ctx context.Context, classID string) ([]Announcement, error) {
	return svc.Posts.FilterAnnouncements(ctx, classID)
}

func (svc *Service) UpdateAnnouncement(ctx context.Context, id string, na NewAnnouncement) (Announcement, error) {
	an, err := svc.Posts.GetAnnouncementByID(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	an.Title = na.Title
	an.Body = na.Body
	if na.ClassID != "" {
		an.ClassID = null.StringFrom(na.ClassID)
	}
	an.UpdatedAt = time.Now().UTC()
	return svc.Posts.UpdateAnnouncement(ctx, an)
}

func (svc *Service) DeleteAnnouncements(ctx context.Context, ids ...string) error {
	return svc.Posts.DeleteAnnouncementsByID(ctx, ids...)
}

// Events

func (svc *Service) CreateEvent(ctx context.Context, ne NewEvent) (Event, error) {
	now := time.Now().UTC()
	ev := Event{
		Title:       ne.Title,
		Description: null.NewString(ne.Description, ne.Description != ""),
		StartsAt:    ne.StartsAt.UTC(),
		EndsAt:      ne.EndsAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.Posts.CreateEvent(ctx, ev)
}

func (svc *Service) GetEvent(ctx context.Context, id string) (Event, error) {
	return svc.Posts.GetEventByID(ctx, id)
}

func (svc *Service) QueryEvents(ctx context.Context) ([]Event, error) {
	return svc.Posts.QueryAllEvents(ctx)
}

func (svc *Service) UpdateEvent(ctx context.Context, id string, ne NewEvent) (Event, error) {
	ev, err := svc.Posts.GetEventByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	ev.Title = ne.Title
	if ne.Description != "" {
		ev.Description = null.StringFrom(ne.Description)
	}
	ev.StartsAt = ne.StartsAt.UTC()
	ev.EndsAt = ne.EndsAt.UTC()
	ev.UpdatedAt = time.Now().UTC()
	return svc.Posts.UpdateEvent(ctx, ev)
}

func (svc *Service) DeleteEvents(ctx context.Context, ids ...string) error {
	return svc.Posts.DeleteEventsByID(ctx, ids...)
}
