package inmem

import (
	"sync"

	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

// DB is a mutex-guarded in-memory store, mainly for tests and local hacking.
type DB struct {
	mutex sync.RWMutex

	users         map[string]user.User
	students      map[string]school.Student
	classes       map[string]school.Class
	subjects      map[string]school.Subject
	lessons       map[string]school.Lesson
	exams         map[string]school.Exam
	assignments   map[string]school.Assignment
	announcements map[string]school.Announcement
	events        map[string]school.Event
	payments      map[string]payment.Payment
	entries       []finance.Entry
}

func Open() *DB {
	return &DB{
		users:         make(map[string]user.User),
		students:      make(map[string]school.Student),
		classes:       make(map[string]school.Class),
		subjects:      make(map[string]school.Subject),
		lessons:       make(map[string]school.Lesson),
		exams:         make(map[string]school.Exam),
		assignments:   make(map[string]school.Assignment),
		announcements: make(map[string]school.Announcement),
		events:        make(map[string]school.Event),
		payments:      make(map[string]payment.Payment),
	}
}

// Reset empties all tables. Handy between test cases sharing a DB.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.users = make(map[string]user.User)
	db.students = make(map[string]school.Student)
	db.classes = make(map[string]school.Class)
	db.subjects = make(map[string]school.Subject)
	db.lessons = make(map[string]school.Lesson)
	db.exams = make(map[string]school.Exam)
	db.assignments = make(map[string]school.Assignment)
	db.announcements = make(map[string]school.Announcement)
	db.events = make(map[string]school.Event)
	db.payments = make(map[string]payment.Payment)
	db.entries = nil
}
