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

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

type studentRepository struct {
	db *sqlx.DB
}

var _ school.StudentRepository = (*studentRepository)(nil)

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return school.ErrStudentNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) CreateStudent(ctx context.Context, st school.Student) (school.Student, error) {
	st.ID = uuid.New().String()
	now := time.Now().UTC()
	st.CreatedAt, st.UpdatedAt = now, now
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO students (id, name, surname, user_id, parent_id, class_id, created_at, updated_at)
		VALUES (:id, :name, :surname, :user_id, :parent_id, :class_id, :created_at, :updated_at)`,
		dbStudent{}.from(st))
	if err != nil {
		return school.Student{}, errors.Wrap(err, "inserting student")
	}
	return st, nil
}

type dbStudent struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Surname   string         `db:"surname"`
	UserID    sql.NullString `db:"user_id"`
	ParentID  sql.NullString `db:"parent_id"`
	ClassID   sql.NullString `db:"class_id"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (dbStudent) from(st school.Student) dbStudent {
	return dbStudent{
		ID:        st.ID,
		Name:      st.Name,
		Surname:   st.Surname,
		UserID:    sql.NullString{String: st.UserID.String, Valid: st.UserID.Valid},
		ParentID:  sql.NullString{String: st.ParentID.String, Valid: st.ParentID.Valid},
		ClassID:   sql.NullString{String: st.ClassID.String, Valid: st.ClassID.Valid},
		CreatedAt: st.CreatedAt.UTC(),
		UpdatedAt: st.UpdatedAt.UTC(),
	}
}

func (s dbStudent) student() school.Student {
	st := school.Student{
		ID:        s.ID,
		Name:      s.Name,
		Surname:   s.Surname,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.UserID.Valid {
		st.UserID.SetValid(s.UserID.String)
	}
	if s.ParentID.Valid {
		st.ParentID.SetValid(s.ParentID.String)
	}
	if s.ClassID.Valid {
		st.ClassID.SetValid(s.ClassID.String)
	}
	return st
}

func (repo studentRepository) getStudentBy(ctx context.Context, where string, args ...interface{}) (school.Student, error) {
	var s dbStudent
	if err := repo.db.GetContext(ctx, &s, `SELECT * FROM students WHERE `+where, args...); err != nil {
		return school.Student{}, repo.trapNoRowsErr(err, "getting student")
	}
	return s.student(), nil
}

func (repo studentRepository) GetStudentByID(ctx context.Context, id string) (school.Student, error) {
	return repo.getStudentBy(ctx, `id = $1`, id)
}

func (repo studentRepository) GetStudentByUserID(ctx context.Context, userID string) (school.Student, error) {
	return repo.getStudentBy(ctx, `user_id = $1`, userID)
}

func (repo studentRepository) FilterStudents(ctx context.Context, filter school.StudentFilter, ordering ...core.DBOrdering) ([]school.Student, error) {
	if filter.Scope.IsEmpty() {
		return []school.Student{}, nil
	}

	var (
		conds []string
		args  []interface{}
	)
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.Scope.All {
		var scopeConds []string
		if filter.Scope.UserID != "" {
			scopeConds = append(scopeConds, fmt.Sprintf("user_id = %s", arg(filter.Scope.UserID)))
		}
		if filter.Scope.ParentID != "" {
			scopeConds = append(scopeConds, fmt.Sprintf("parent_id = %s", arg(filter.Scope.ParentID)))
		}
		conds = append(conds, "("+strings.Join(scopeConds, " OR ")+")")
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		p := arg(val)
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR surname ILIKE %s)", p, p))
	}
	if filter.ClassID != "" {
		conds = append(conds, fmt.Sprintf("class_id = %s", arg(filter.ClassID)))
	}
	if filter.ParentID != "" {
		conds = append(conds, fmt.Sprintf("parent_id = %s", arg(filter.ParentID)))
	}

	query := `SELECT * FROM students`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += orderBy(ordering, "surname ASC, name ASC")

	var rows []dbStudent
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, s := range rows {
		students = append(students, s.student())
	}
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, st school.Student) (school.Student, error) {
	st.UpdatedAt = time.Now().UTC()
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE students
		SET name = :name, surname = :surname, parent_id = :parent_id, class_id = :class_id, updated_at = :updated_at
		WHERE id = :id`,
		dbStudent{}.from(st))
	if err != nil {
		return school.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Student{}, school.ErrStudentNotFound
	}
	return st, nil
}

func (repo studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM students WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return nil
}

type classRepository struct {
	db *sqlx.DB
}

var _ school.ClassRepository = (*classRepository)(nil)

func NewClassRepository(db *sqlx.DB) *classRepository {
	return &classRepository{db: db}
}

func (repo classRepository) CreateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	cls.ID = uuid.New().String()
	now := time.Now().UTC()
	cls.CreatedAt, cls.UpdatedAt = now, now
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO classes (id, name, level, teacher_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		cls.ID, cls.Name, cls.Level, cls.TeacherID, cls.CreatedAt, cls.UpdatedAt)
	if err != nil {
		return school.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo classRepository) GetClassByID(ctx context.Context, id string) (school.Class, error) {
	var cls school.Class
	err := repo.db.QueryRowxContext(ctx, `SELECT id, name, level, teacher_id, created_at, updated_at FROM classes WHERE id = $1`, id).
		Scan(&cls.ID, &cls.Name, &cls.Level, &cls.TeacherID, &cls.CreatedAt, &cls.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.Class{}, school.ErrClassNotFound
		}
		return school.Class{}, errors.Wrap(err, "getting class")
	}
	return cls, nil
}

func (repo classRepository) QueryAllClasses(ctx context.Context) ([]school.Class, error) {
	rows, err := repo.db.QueryxContext(ctx, `SELECT id, name, level, teacher_id, created_at, updated_at FROM classes ORDER BY level, name`)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	defer func() { _ = rows.Close() }()

	classes := make([]school.Class, 0)
	for rows.Next() {
		var cls school.Class
		if err = rows.Scan(&cls.ID, &cls.Name, &cls.Level, &cls.TeacherID, &cls.CreatedAt, &cls.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning class")
		}
		classes = append(classes, cls)
	}
	return classes, rows.Err()
}

func (repo classRepository) UpdateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	cls.UpdatedAt = time.Now().UTC()
	res, err := repo.db.ExecContext(ctx, `
		UPDATE classes SET name = $1, level = $2, teacher_id = $3, updated_at = $4 WHERE id = $5`,
		cls.Name, cls.Level, cls.TeacherID, cls.UpdatedAt, cls.ID)
	if err != nil {
		return school.Class{}, errors.Wrap(err, "updating class")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Class{}, school.ErrClassNotFound
	}
	return cls, nil
}

func (repo classRepository) DeleteClassesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM classes WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting classes")
	}
	return nil
}
