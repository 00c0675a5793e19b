package inmem

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/school"
)

type postRepository struct {
	db *DB
}

var _ school.PostRepository = (*postRepository)(nil)

func NewPostRepository(db *DB) *postRepository {
	return &postRepository{db: db}
}

// Announcements

func (repo *postRepository) CreateAnnouncement(_ context.Context, an school.Announcement) (school.Announcement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	an.ID = uuid.New().String()
	repo.db.announcements[an.ID] = an
	return an, nil
}

func (repo *postRepository) GetAnnouncementByID(_ context.Context, id string) (school.Announcement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if an, ok := repo.db.announcements[id]; ok {
		return an, nil
	}
	return school.Announcement{}, school.ErrAnnouncementNotFound
}

func (repo *postRepository) FilterAnnouncements(_ context.Context, classID string) ([]school.Announcement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	announcements := make([]school.Announcement, 0)
	for _, an := range repo.db.announcements {
		// school-wide announcements show up in every class feed
		if classID != "" && an.ClassID.Valid && an.ClassID.String != classID {
			continue
		}
		announcements = append(announcements, an)
	}
	sort.Slice(announcements, func(i, j int) bool {
		return announcements[i].CreatedAt.After(announcements[j].CreatedAt)
	})
	return announcements, nil
}

func (repo *postRepository) UpdateAnnouncement(_ context.Context, an school.Announcement) (school.Announcement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.announcements[an.ID]; !ok {
		return school.Announcement{}, school.ErrAnnouncementNotFound
	}
	repo.db.announcements[an.ID] = an
	return an, nil
}

func (repo *postRepository) DeleteAnnouncementsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.announcements, id)
	}
	return nil
}

// Events

func (repo *postRepository) CreateEvent(_ context.Context, ev school.Event) (school.Event, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ev.ID = uuid.New().String()
	repo.db.events[ev.ID] = ev
	return ev, nil
}

func (repo *postRepository) GetEventByID(_ context.Context, id string) (school.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ev, ok := repo.db.events[id]; ok {
		return ev, nil
	}
	return school.Event{}, school.ErrEventNotFound
}

func (repo *postRepository) QueryAllEvents(_ context.Context) ([]school.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	events := make([]school.Event, 0, len(repo.db.events))
	for _, ev := range repo.db.events {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartsAt.Before(events[j].StartsAt) })
	return events, nil
}

func (repo *postRepository) UpdateEvent(_ context.Context, ev school.Event) (school.Event, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.events[ev.ID]; !ok {
		return school.Event{}, school.ErrEventNotFound
	}
	repo.db.events[ev.ID] = ev
	return ev, nil
}

func (repo *postRepository) DeleteEventsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.events, id)
	}
	return nil
}
