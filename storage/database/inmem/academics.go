package inmem

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/school"
)

type academicsRepository struct {
	db *DB
}

var _ school.AcademicsRepository = (*academicsRepository)(nil)

func NewAcademicsRepository(db *DB) *academicsRepository {
	return &academicsRepository{db: db}
}

// Subjects

func (repo *academicsRepository) CreateSubject(_ context.Context, sub school.Subject) (school.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sub.ID = uuid.New().String()
	repo.db.subjects[sub.ID] = sub
	return sub, nil
}

func (repo *academicsRepository) GetSubjectByID(_ context.Context, id string) (school.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sub, ok := repo.db.subjects[id]; ok {
		return sub, nil
	}
	return school.Subject{}, school.ErrSubjectNotFound
}

func (repo *academicsRepository) QueryAllSubjects(_ context.Context) ([]school.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]school.Subject, 0, len(repo.db.subjects))
	for _, sub := range repo.db.subjects {
		subjects = append(subjects, sub)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

func (repo *academicsRepository) UpdateSubject(_ context.Context, sub school.Subject) (school.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.subjects[sub.ID]; !ok {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	repo.db.subjects[sub.ID] = sub
	return sub, nil
}

func (repo *academicsRepository) DeleteSubjectsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.subjects, id)
	}
	return nil
}

// Lessons

func (repo *academicsRepository) CreateLesson(_ context.Context, les school.Lesson) (school.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	les.ID = uuid.New().String()
	repo.db.lessons[les.ID] = les
	return les, nil
}

func (repo *academicsRepository) GetLessonByID(_ context.Context, id string) (school.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if les, ok := repo.db.lessons[id]; ok {
		return les, nil
	}
	return school.Lesson{}, school.ErrLessonNotFound
}

func (repo *academicsRepository) FilterLessons(_ context.Context, classID string) ([]school.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	lessons := make([]school.Lesson, 0)
	for _, les := range repo.db.lessons {
		if classID != "" && les.ClassID != classID {
			continue
		}
		lessons = append(lessons, les)
	}
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].Weekday != lessons[j].Weekday {
			return lessons[i].Weekday < lessons[j].Weekday
		}
		return lessons[i].StartsAt < lessons[j].StartsAt
	})
	return lessons, nil
}

func (repo *academicsRepository) UpdateLesson(_ context.Context, les school.Lesson) (school.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.lessons[les.ID]; !ok {
		return school.Lesson{}, school.ErrLessonNotFound
	}
	repo.db.lessons[les.ID] = les
	return les, nil
}

func (repo *academicsRepository) DeleteLessonsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.lessons, id)
	}
	return nil
}

// Exams

func (repo *academicsRepository) CreateExam(_ context.Context, ex school.Exam) (school.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ex.ID = uuid.New().String()
	repo.db.exams[ex.ID] = ex
	return ex, nil
}

func (repo *academicsRepository) GetExamByID(_ context.Context, id string) (school.Exam, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ex, ok := repo.db.exams[id]; ok {
		return ex, nil
	}
	return school.Exam{}, school.ErrExamNotFound
}

func (repo *academicsRepository) FilterExams(_ context.Context, classID string) ([]school.Exam, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	exams := make([]school.Exam, 0)
	for _, ex := range repo.db.exams {
		if classID != "" && ex.ClassID != classID {
			continue
		}
		exams = append(exams, ex)
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].HeldAt.Before(exams[j].HeldAt) })
	return exams, nil
}

func (repo *academicsRepository) UpdateExam(_ context.Context, ex school.Exam) (school.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.exams[ex.ID]; !ok {
		return school.Exam{}, school.ErrExamNotFound
	}
	repo.db.exams[ex.ID] = ex
	return ex, nil
}

func (repo *academicsRepository) DeleteExamsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.exams, id)
	}
	return nil
}

// Assignments

func (repo *academicsRepository) CreateAssignment(_ context.Context, as school.Assignment) (school.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	as.ID = uuid.New().String()
	repo.db.assignments[as.ID] = as
	return as, nil
}

func (repo *academicsRepository) GetAssignmentByID(_ context.Context, id string) (school.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if as, ok := repo.db.assignments[id]; ok {
		return as, nil
	}
	return school.Assignment{}, school.ErrAssignmentNotFound
}

func (repo *academicsRepository) FilterAssignments(_ context.Context, classID string) ([]school.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]school.Assignment, 0)
	for _, as := range repo.db.assignments {
		if classID != "" && as.ClassID != classID {
			continue
		}
		assignments = append(assignments, as)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].DueDate.Before(assignments[j].DueDate) })
	return assignments, nil
}

func (repo *academicsRepository) UpdateAssignment(_ context.Context, as school.Assignment) (school.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.assignments[as.ID]; !ok {
		return school.Assignment{}, school.ErrAssignmentNotFound
	}
	repo.db.assignments[as.ID] = as
	return as, nil
}

func (repo *academicsRepository) DeleteAssignmentsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.assignments, id)
	}
	return nil
}
