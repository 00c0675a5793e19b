package inmem

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

type studentRepository struct {
	db *DB
}

var _ school.StudentRepository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(_ context.Context, st school.Student) (school.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	st.ID = uuid.New().String()
	repo.db.students[st.ID] = st
	return st, nil
}

func (repo *studentRepository) GetStudentByID(_ context.Context, id string) (school.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if st, ok := repo.db.students[id]; ok {
		return st, nil
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *studentRepository) GetStudentByUserID(_ context.Context, userID string) (school.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, st := range repo.db.students {
		if st.UserID.Valid && st.UserID.String == userID {
			return st, nil
		}
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *studentRepository) FilterStudents(_ context.Context, filter school.StudentFilter, _ ...core.DBOrdering) ([]school.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]school.Student, 0)
	if filter.Scope.IsEmpty() {
		return students, nil
	}
	for _, st := range repo.db.students {
		if !filter.Scope.CanViewStudent(st) {
			continue
		}
		if filter.Search != "" {
			search := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(st.Name), search) &&
				!strings.Contains(strings.ToLower(st.Surname), search) {
				continue
			}
		}
		if filter.ClassID != "" && (!st.ClassID.Valid || st.ClassID.String != filter.ClassID) {
			continue
		}
		if filter.ParentID != "" && (!st.ParentID.Valid || st.ParentID.String != filter.ParentID) {
			continue
		}
		students = append(students, st)
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Surname != students[j].Surname {
			return students[i].Surname < students[j].Surname
		}
		return students[i].Name < students[j].Name
	})
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, st school.Student) (school.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[st.ID]; !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	repo.db.students[st.ID] = st
	return st, nil
}

func (repo *studentRepository) DeleteStudentsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.students, id)
	}
	return nil
}

type classRepository struct {
	db *DB
}

var _ school.ClassRepository = (*classRepository)(nil)

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(_ context.Context, cls school.Class) (school.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cls.ID = uuid.New().String()
	repo.db.classes[cls.ID] = cls
	return cls, nil
}

func (repo *classRepository) GetClassByID(_ context.Context, id string) (school.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return cls, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *classRepository) QueryAllClasses(_ context.Context) ([]school.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]school.Class, 0, len(repo.db.classes))
	for _, cls := range repo.db.classes {
		classes = append(classes, cls)
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Level != classes[j].Level {
			return classes[i].Level < classes[j].Level
		}
		return classes[i].Name < classes[j].Name
	})
	return classes, nil
}

func (repo *classRepository) UpdateClass(_ context.Context, cls school.Class) (school.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.classes[cls.ID]; !ok {
		return school.Class{}, school.ErrClassNotFound
	}
	repo.db.classes[cls.ID] = cls
	return cls, nil
}

func (repo *classRepository) DeleteClassesByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.classes, id)
	}
	return nil
}
