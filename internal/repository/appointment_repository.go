package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gw-connect/connect-api/internal/models"
)

// AppointmentRepository provides persistence for appointment requests. Status
// updates use compare-and-swap so concurrent sessions surface lost races
// instead of silently overwriting each other.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = "id, person_id, requester_id, date, start_minute, end_minute, format, topic, notes, attachments, status, rescheduled_from_id, created_at, updated_at"

// Create stores a new appointment request.
func (r *AppointmentRepository) Create(ctx context.Context, req *models.AppointmentRequest) error {
	return r.create(ctx, r.db, req)
}

func (r *AppointmentRepository) create(ctx context.Context, exec sqlx.ExtContext, req *models.AppointmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	if len(req.Attachments) == 0 {
		req.Attachments = []byte("[]")
	}

	const query = `INSERT INTO appointment_requests (id, person_id, requester_id, date, start_minute, end_minute, format, topic, notes, attachments, status, rescheduled_from_id, created_at, updated_at) VALUES (:id, :person_id, :requester_id, :date, :start_minute, :end_minute, :format, :topic, :notes, :attachments, :status, :rescheduled_from_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, req); err != nil {
		return fmt.Errorf("create appointment request: %w", err)
	}
	return nil
}

// FindByID loads an appointment request by id.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.AppointmentRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM appointment_requests WHERE id = $1", appointmentColumns)
	var req models.AppointmentRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListConfirmedByPersonDate returns confirmed appointments for a person on a
// date, ordered by start time. These are the only requests that block slots.
func (r *AppointmentRepository) ListConfirmedByPersonDate(ctx context.Context, personID string, date time.Time) ([]models.AppointmentRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM appointment_requests WHERE person_id = $1 AND date = $2 AND status = $3 ORDER BY start_minute ASC", appointmentColumns)
	var reqs []models.AppointmentRequest
	if err := r.db.SelectContext(ctx, &reqs, query, personID, date.Format("2006-01-02"), models.AppointmentConfirmed); err != nil {
		return nil, fmt.Errorf("list confirmed appointments: %w", err)
	}
	return reqs, nil
}

// List returns appointment requests matching the filter with pagination.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentRequest, int, error) {
	base := "FROM appointment_requests WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.PersonID != "" {
		conditions = append(conditions, fmt.Sprintf("person_id = $%d", len(args)+1))
		args = append(args, filter.PersonID)
	}
	if filter.RequesterID != "" {
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)+1))
		args = append(args, filter.RequesterID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, filter.DateFrom.Format("2006-01-02"))
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, filter.DateTo.Format("2006-01-02"))
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY date ASC, start_minute ASC LIMIT %d OFFSET %d", appointmentColumns, base, size, offset)
	var reqs []models.AppointmentRequest
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointment requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointment requests: %w", err)
	}

	return reqs, total, nil
}

// UpdateStatusCAS transitions a request from one status to another. It
// returns sql.ErrNoRows when the stored status no longer matches, meaning
// another session won the race.
func (r *AppointmentRepository) UpdateStatusCAS(ctx context.Context, id string, from, to models.AppointmentStatus) error {
	return r.updateStatusCAS(ctx, r.db, id, from, to)
}

func (r *AppointmentRepository) updateStatusCAS(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.AppointmentStatus) error {
	res, err := exec.ExecContext(ctx, `UPDATE appointment_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`, to, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update appointment status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Reschedule atomically terminates the old request and creates its
// replacement referencing it.
func (r *AppointmentRepository) Reschedule(ctx context.Context, oldID string, replacement *models.AppointmentRequest) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reschedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.updateStatusCAS(ctx, tx, oldID, models.AppointmentConfirmed, models.AppointmentRescheduled); err != nil {
		return err
	}

	replacement.Status = models.AppointmentRequested
	replacement.RescheduledFromID = &oldID
	if err = r.create(ctx, tx, replacement); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reschedule: %w", err)
	}
	return nil
}

// Delete removes an appointment request (explicit archival by a party).
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM appointment_requests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete appointment request: %w", err)
	}
	return nil
}
