package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/school"
)

// academicsRepository covers subjects, lessons, exams and assignments.
type academicsRepository struct {
	db *sqlx.DB
}

var _ school.AcademicsRepository = (*academicsRepository)(nil)

func NewAcademicsRepository(db *sqlx.DB) *academicsRepository {
	return &academicsRepository{db: db}
}

func trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo academicsRepository) CreateSubject(ctx context.Context, sub school.Subject) (school.Subject, error) {
	sub.ID = uuid.New().String()
	now := time.Now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO subjects (id, name, code, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		sub.ID, sub.Name, sub.Code, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return school.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return sub, nil
}

func (repo academicsRepository) GetSubjectByID(ctx context.Context, id string) (school.Subject, error) {
	var sub school.Subject
	err := repo.db.QueryRowxContext(ctx, `SELECT id, name, code, created_at, updated_at FROM subjects WHERE id = $1`, id).
		Scan(&sub.ID, &sub.Name, &sub.Code, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return school.Subject{}, trapNoRowsErr(err, school.ErrSubjectNotFound, "getting subject")
	}
	return sub, nil
}

func (repo academicsRepository) QueryAllSubjects(ctx context.Context) ([]school.Subject, error) {
	rows, err := repo.db.QueryxContext(ctx, `SELECT id, name, code, created_at, updated_at FROM subjects ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	defer func() { _ = rows.Close() }()

	subjects := make([]school.Subject, 0)
	for rows.Next() {
		var sub school.Subject
		if err = rows.Scan(&sub.ID, &sub.Name, &sub.Code, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning subject")
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

func (repo academicsRepository) UpdateSubject(ctx context.Context, sub school.Subject) (school.Subject, error) {
	sub.UpdatedAt = time.Now().UTC()
	res, err := repo.db.ExecContext(ctx, `
		UPDATE subjects SET name = $1, code = $2, updated_at = $3 WHERE id = $4`,
		sub.Name, sub.Code, sub.UpdatedAt, sub.ID)
	if err != nil {
		return school.Subject{}, errors.Wrap(err, "updating subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	return sub, nil
}

func (repo academicsRepository) DeleteSubjectsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting subjects")
	}
	return nil
}

func (repo academicsRepository) CreateLesson(ctx context.Context, les school.Lesson) (school.Lesson, error) {
	les.ID = uuid.New().String()
	now := time.Now().UTC()
	les.CreatedAt, les.UpdatedAt = now, now
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO lessons (id, subject_id, class_id, teacher_id, weekday, starts_at, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		les.ID, les.SubjectID, les.ClassID, les.TeacherID, les.Weekday, les.StartsAt, les.EndsAt, les.CreatedAt, les.UpdatedAt)
	if err != nil {
		return school.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return les, nil
}

func (repo academicsRepository) scanLesson(row interface {
	Scan(...interface{}) error
}) (school.Lesson, error) {
	var les school.Lesson
	err := row.Scan(&les.ID, &les.SubjectID, &les.ClassID, &les.TeacherID,
		&les.Weekday, &les.StartsAt, &les.EndsAt, &les.CreatedAt, &les.UpdatedAt)
	return les, err
}

func (repo academicsRepository) GetLessonByID(ctx context.Context, id string) (school.Lesson, error) {
	row := repo.db.QueryRowxContext(ctx, `
		SELECT id, subject_id, class_id, teacher_id, weekday, starts_at, ends_at, created_at, updated_at
		FROM lessons WHERE id = $1`, id)
	les, err := repo.scanLesson(row)
	if err != nil {
		return school.Lesson{}, trapNoRowsErr(err, school.ErrLessonNotFound, "getting lesson")
	}
	return les, nil
}

func (repo academicsRepository) FilterLessons(ctx context.Context, classID string) ([]school.Lesson, error) {
	query := `
		SELECT id, subject_id, class_id, teacher_id, weekday, starts_at, ends_at, created_at, updated_at
		FROM lessons`
	var args []interface{}
	if classID != "" {
		query += ` WHERE class_id = $1`
		args = append(args, classID)
	}
	query += ` ORDER BY weekday, starts_at`

	rows, err := repo.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	defer func() { _ = rows.Close() }()

	lessons := make([]school.Lesson, 0)
	for rows.Next() {
		les, err := repo.scanLesson(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning lesson")
		}
		lessons = append(lessons, les)
	}
	return lessons, rows.Err()
}

func (repo academicsRepository) UpdateLesson(ctx context.Context, les school.Lesson) (school.Lesson, error) {
	les.UpdatedAt = time.Now().UTC()
	res, err := repo.db.ExecContext(ctx, `
		UPDATE lessons
		SET subject_id = $1, class_id = $2, teacher_id = $3, weekday = $4, starts_at = $5, ends_at = $6, updated_at = $7
		WHERE id = $8`,
		les.SubjectID, les.ClassID, les.TeacherID, les.Weekday, les.StartsAt, les.EndsAt, les.UpdatedAt, les.ID)
	if err != nil {
		return school.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Lesson{}, school.ErrLessonNotFound
	}
	return les, nil
}

func (repo academicsRepository) DeleteLessonsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting lessons")
	}
	return nil
}

func (repo academicsRepository) CreateExam(ctx context.Context, ex school.Exam) (school.Exam, error) {
	ex.ID = uuid.New().String()
	now := time.Now().UTC()
	ex.CreatedAt, ex.UpdatedAt = now, now
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO exams (id, title, subject_id, class_id, held_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ex.ID, ex.Title, ex.SubjectID, ex.ClassID, ex.HeldAt.UTC(), ex.CreatedAt, ex.UpdatedAt)
	if err != nil {
		return school.Exam{}, errors.Wrap(err, "inserting exam")
	}
	return ex, nil
}

func (repo academicsRepository) GetExamByID(ctx context.Context, id string) (school.Exam, error) {
	var ex school.Exam
	err := repo.db.QueryRowxContext(ctx, `
		SELECT id, title, subject_id, class_id, held_at, created_at, updated_at FROM exams WHERE id = $1`, id).
		Scan(&ex.ID, &ex.Title, &ex.SubjectID, &ex.ClassID, &ex.HeldAt, &ex.CreatedAt, &ex.UpdatedAt)
	if err != nil {
		return school.Exam{}, trapNoRowsErr(err, school.ErrExamNotFound, "getting exam")
	}
	return ex, nil
}

func (repo academicsRepository) FilterExams(ctx context.Context, classID string) ([]school.Exam, error) {
	query := `SELECT id, title, subject_id, class_id, held_at, created_at, updated_at FROM exams`
	var args []interface{}
	if classID != "" {
		query += ` WHERE class_id = $1`
		args = append(args, classID)
	}
	query += ` ORDER BY held_at DESC`

	rows, err := repo.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	defer func() { _ = rows.Close() }()

	exams := make([]school.Exam, 0)
	for rows.Next() {
		var ex school.Exam
		if err = rows.Scan(&ex.ID, &ex.Title, &ex.SubjectID, &ex.ClassID, &ex.HeldAt, &ex.CreatedAt, &ex.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning exam")
		}
		exams = append(exams, ex)
	}
	return exams, rows.Err()
}

func (repo academicsRepository) UpdateExam(ctx context.Context, ex school.Exam) (school.Exam, error) {
	ex.UpdatedAt = time.Now().UTC()
	res, err := repo.db.ExecContext(ctx, `
		UPDATE exams SET title = $1, subject_id = $2, class_id = $3, held_at = $4, updated_at = $5 WHERE id = $6`,
		ex.Title, ex.SubjectID, ex.ClassID, ex.HeldAt.UTC(), ex.UpdatedAt, ex.ID)
	if err != nil {
		return school.Exam{}, errors.Wrap(err, "updating exam")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Exam{}, school.ErrExamNotFound
	}
	return ex, nil
}

func (repo academicsRepository) DeleteExamsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM exams WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting exams")
	}
	return nil
}

func (repo academicsRepository) CreateAssignment(ctx context.Context, as school.Assignment) (school.Assignment, error) {
	as.ID = uuid.New().String()
	now := time.Now().UTC()
	as.CreatedAt, as.UpdatedAt = now, now
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO assignments (id, title, subject_id, class_id, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		as.ID, as.Title, as.SubjectID, as.ClassID, as.DueDate.UTC(), as.CreatedAt, as.UpdatedAt)
	if err != nil {
		return school.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return as, nil
}

func (repo academicsRepository) GetAssignmentByID(ctx context.Context, id string) (school.Assignment, error) {
	var as school.Assignment
	err := repo.db.QueryRowxContext(ctx, `
		SELECT id, title, subject_id, class_id, due_date, created_at, updated_at FROM assignments WHERE id = $1`, id).
		Scan(&as.ID, &as.Title, &as.SubjectID, &as.ClassID, &as.DueDate, &as.CreatedAt, &as.UpdatedAt)
	if err != nil {
		return school.Assignment{}, trapNoRowsErr(err, school.ErrAssignmentNotFound, "getting assignment")
	}
	return as, nil
}

func (repo academicsRepository) FilterAssignments(ctx context.Context, classID string) ([]school.Assignment, error) {
	query := `SELECT id, title, subject_id, class_id, due_date, created_at, updated_at FROM assignments`
	var args []interface{}
	if classID != "" {
		query += ` WHERE class_id = $1`
		args = append(args, classID)
	}
	query += ` ORDER BY due_date`

	rows, err := repo.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	defer func() { _ = rows.Close() }()

	assignments := make([]school.Assignment, 0)
	for rows.Next() {
		var as school.Assignment
		if err = rows.Scan(&as.ID, &as.Title, &as.SubjectID, &as.ClassID, &as.DueDate, &as.CreatedAt, &as.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning assignment")
		}
		assignments = append(assignments, as)
	}
	return assignments, rows.Err()
}

func (repo academicsRepository) UpdateAssignment(ctx context.Context, as school.Assignment) (school.Assignment, error) {
	as.UpdatedAt = time.Now().UTC()
	res, err := repo.db.ExecContext(ctx, `
		UPDATE assignments SET title = $1, subject_id = $2, class_id = $3, due_date = $4, updated_at = $5 WHERE id = $6`,
		as.Title, as.SubjectID, as.ClassID, as.DueDate.UTC(), as.UpdatedAt, as.ID)
	if err != nil {
		return school.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Assignment{}, school.ErrAssignmentNotFound
	}
	return as, nil
}

func (repo academicsRepository) DeleteAssignmentsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting assignments")
	}
	return nil
}
