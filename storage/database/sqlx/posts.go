package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/school"
)

// postRepository covers announcements and events.
type postRepository struct {
	db *sqlx.DB
}

var _ school.PostRepository = (*postRepository)(nil)

func NewPostRepository(db *sqlx.DB) *postRepository {
	return &postRepository{db: db}
}

func (repo postRepository) CreateAnnouncement(ctx context.Context, an school.Announcement) (school.Announcement, error) {
	an.ID = uuid.New().String()
	now := time.Now().UTC()
	an.CreatedAt, an.UpdatedAt = now, now
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO announcements (id, title, body, class_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		an.ID, an.Title, an.Body, an.ClassID, an.CreatedAt, an.UpdatedAt)
	if err != nil {
		return school.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return an, nil
}

func (repo postRepository) GetAnnouncementByID(ctx context.Context, id string) (school.Announcement, error) {
	var an school.Announcement
	err := repo.db.QueryRowxContext(ctx, `
		SELECT id, title, body, class_id, created_at, updated_at FROM announcements WHERE id = $1`, id).
		Scan(&an.ID, &an.Title, &an.Body, &an.ClassID, &an.CreatedAt, &an.UpdatedAt)
	if err != nil {
		return school.Announcement{}, trapNoRowsErr(err, school.ErrAnnouncementNotFound, "getting announcement")
	}
	return an, nil
}

// FilterAnnouncements returns class announcements plus school-wide ones;
// an empty classID returns everything.
func (repo postRepository) FilterAnnouncements(ctx context.Context, classID string) ([]school.Announcement, error) {
	query := `SELECT id, title, body, class_id, created_at, updated_at FROM announcements`
	var args []interface{}
	if classID != "" {
		query += ` WHERE class_id = $1 OR class_id IS NULL`
		args = append(args, classID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := repo.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	defer func() { _ = rows.Close() }()

	announcements := make([]school.Announcement, 0)
	for rows.Next() {
		var an school.Announcement
		if err = rows.Scan(&an.ID, &an.Title, &an.Body, &an.ClassID, &an.CreatedAt, &an.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning announcement")
		}
		announcements = append(announcements, an)
	}
	return announcements, rows.Err()
}

func (repo postRepository) UpdateAnnouncement(ctx context.Context, an school.Announcement) (school.Announcement, error) {
	an.UpdatedAt = time.Now().UTC()
	res, err := repo.db.ExecContext(ctx, `
		UPDATE announcements SET title = $1, body = $2, class_id = $3, updated_at = $4 WHERE id = $5`,
		an.Title, an.Body, an.ClassID, an.UpdatedAt, an.ID)
	if err != nil {
		return school.Announcement{}, errors.Wrap(err, "updating announcement")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Announcement{}, school.ErrAnnouncementNotFound
	}
	return an, nil
}

func (repo postRepository) DeleteAnnouncementsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting announcements")
	}
	return nil
}

func (repo postRepository) CreateEvent(ctx context.Context, ev school.Event) (school.Event, error) {
	ev.ID = uuid.New().String()
	now := time.Now().UTC()
	ev.CreatedAt, ev.UpdatedAt = now, now
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO events (id, title, description, starts_at, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.Title, ev.Description, ev.StartsAt.UTC(), ev.EndsAt.UTC(), ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return school.Event{}, errors.Wrap(err, "inserting event")
	}
	return ev, nil
}

func (repo postRepository) GetEventByID(ctx context.Context, id string) (school.Event, error) {
	var ev school.Event
	err := repo.db.QueryRowxContext(ctx, `
		SELECT id, title, description, starts_at, ends_at, created_at, updated_at FROM events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.Title, &ev.Description, &ev.StartsAt, &ev.EndsAt, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return school.Event{}, trapNoRowsErr(err, school.ErrEventNotFound, "getting event")
	}
	return ev, nil
}

func (repo postRepository) QueryAllEvents(ctx context.Context) ([]school.Event, error) {
	rows, err := repo.db.QueryxContext(ctx, `
		SELECT id, title, description, starts_at, ends_at, created_at, updated_at FROM events ORDER BY starts_at`)
	if err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	defer func() { _ = rows.Close() }()

	events := make([]school.Event, 0)
	for rows.Next() {
		var ev school.Event
		if err = rows.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.StartsAt, &ev.EndsAt, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning event")
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (repo postRepository) UpdateEvent(ctx context.Context, ev school.Event) (school.Event, error) {
	ev.UpdatedAt = time.Now().UTC()
	res, err := repo.db.ExecContext(ctx, `
		UPDATE events SET title = $1, description = $2, starts_at = $3, ends_at = $4, updated_at = $5 WHERE id = $6`,
		ev.Title, ev.Description, ev.StartsAt.UTC(), ev.EndsAt.UTC(), ev.UpdatedAt, ev.ID)
	if err != nil {
		return school.Event{}, errors.Wrap(err, "updating event")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Event{}, school.ErrEventNotFound
	}
	return ev, nil
}

func (repo postRepository) DeleteEventsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM events WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting events")
	}
	return nil
}
