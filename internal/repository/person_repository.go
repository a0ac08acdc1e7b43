package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gw-connect/connect-api/internal/models"
)

// PersonRepository provides persistence for bookable people and their
// recurring availability windows.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository creates a new person repository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

const personColumns = "id, user_id, name, role, default_duration_minutes, buffer_minutes, advance_notice_hours, max_per_day, allows_virtual, allows_in_person, location, virtual_link, auto_confirm, created_at, updated_at"

// FindByID loads a person by id.
func (r *PersonRepository) FindByID(ctx context.Context, id string) (*models.Person, error) {
	query := fmt.Sprintf("SELECT %s FROM people WHERE id = $1", personColumns)
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, id); err != nil {
		return nil, err
	}
	return &person, nil
}

// FindByUserID loads the person record owned by a portal user.
func (r *PersonRepository) FindByUserID(ctx context.Context, userID string) (*models.Person, error) {
	query := fmt.Sprintf("SELECT %s FROM people WHERE user_id = $1", personColumns)
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, userID); err != nil {
		return nil, err
	}
	return &person, nil
}

// Create stores a new person record.
func (r *PersonRepository) Create(ctx context.Context, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if person.CreatedAt.IsZero() {
		person.CreatedAt = now
	}
	person.UpdatedAt = now

	const query = `INSERT INTO people (id, user_id, name, role, default_duration_minutes, buffer_minutes, advance_notice_hours, max_per_day, allows_virtual, allows_in_person, location, virtual_link, auto_confirm, created_at, updated_at) VALUES (:id, :user_id, :name, :role, :default_duration_minutes, :buffer_minutes, :advance_notice_hours, :max_per_day, :allows_virtual, :allows_in_person, :location, :virtual_link, :auto_confirm, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// UpdatePolicy modifies the booking policy fields of a person.
func (r *PersonRepository) UpdatePolicy(ctx context.Context, person *models.Person) error {
	person.UpdatedAt = time.Now().UTC()
	const query = `UPDATE people SET default_duration_minutes = :default_duration_minutes, buffer_minutes = :buffer_minutes, advance_notice_hours = :advance_notice_hours, max_per_day = :max_per_day, allows_virtual = :allows_virtual, allows_in_person = :allows_in_person, location = :location, virtual_link = :virtual_link, auto_confirm = :auto_confirm, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		return fmt.Errorf("update person policy: %w", err)
	}
	return nil
}

// ListWindows returns a person's availability windows ordered by day and start.
func (r *PersonRepository) ListWindows(ctx context.Context, personID string) ([]models.AvailabilityWindow, error) {
	const query = `SELECT id, person_id, day_of_week, start_minute, end_minute, created_at, updated_at FROM availability_windows WHERE person_id = $1 ORDER BY day_of_week ASC, start_minute ASC`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, personID); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return windows, nil
}

// ReplaceWindows swaps a person's full weekly availability in one transaction.
func (r *PersonRepository) ReplaceWindows(ctx context.Context, personID string, windows []models.AvailabilityWindow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace windows: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM availability_windows WHERE person_id = $1`, personID); err != nil {
		return fmt.Errorf("clear availability windows: %w", err)
	}

	now := time.Now().UTC()
	for i := range windows {
		payload := windows[i]
		payload.PersonID = personID
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err = tx.NamedExecContext(ctx, `INSERT INTO availability_windows (id, person_id, day_of_week, start_minute, end_minute, created_at, updated_at) VALUES (:id, :person_id, :day_of_week, :start_minute, :end_minute, :created_at, :updated_at)`, &payload); err != nil {
			return fmt.Errorf("insert availability window: %w", err)
		}
		windows[i] = payload
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace windows: %w", err)
	}
	return nil
}
