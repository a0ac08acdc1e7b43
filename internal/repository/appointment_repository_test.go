package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gw-connect/connect-api/internal/models"
)

func newAppointmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAppointmentRepositoryCreateDefaultsAttachments(t *testing.T) {
	db, mock, cleanup := newAppointmentMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec("INSERT INTO appointment_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.AppointmentRequest{
		PersonID:    "person-1",
		RequesterID: "user-2",
		Date:        time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		StartMinute: 840,
		EndMinute:   870,
		Format:      models.FormatVirtual,
		Topic:       "office hours",
		Status:      models.AppointmentRequested,
	}
	err := repo.Create(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "[]", string(req.Attachments))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateStatusCAS(t *testing.T) {
	db, mock, cleanup := newAppointmentMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec("UPDATE appointment_requests SET status").
		WithArgs(models.AppointmentConfirmed, sqlmock.AnyArg(), "appt-1", models.AppointmentRequested).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatusCAS(context.Background(), "appt-1", models.AppointmentRequested, models.AppointmentConfirmed)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateStatusCASLostRace(t *testing.T) {
	db, mock, cleanup := newAppointmentMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec("UPDATE appointment_requests SET status").
		WithArgs(models.AppointmentConfirmed, sqlmock.AnyArg(), "appt-1", models.AppointmentRequested).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatusCAS(context.Background(), "appt-1", models.AppointmentRequested, models.AppointmentConfirmed)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAppointmentRepositoryListConfirmedByPersonDate(t *testing.T) {
	db, mock, cleanup := newAppointmentMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "person_id", "requester_id", "date", "start_minute", "end_minute", "format", "topic", "notes", "attachments", "status", "rescheduled_from_id", "created_at", "updated_at"}).
		AddRow("appt-1", "person-1", "user-2", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), 840, 870, "virtual", "office hours", "", []byte("[]"), "confirmed", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, person_id, requester_id, date, start_minute, end_minute, format, topic, notes, attachments, status, rescheduled_from_id, created_at, updated_at FROM appointment_requests WHERE person_id = $1 AND date = $2 AND status = $3 ORDER BY start_minute ASC")).
		WithArgs("person-1", "2026-09-07", models.AppointmentConfirmed).
		WillReturnRows(rows)

	reqs, err := repo.ListConfirmedByPersonDate(context.Background(), "person-1", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, 840, reqs[0].StartMinute)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryReschedule(t *testing.T) {
	db, mock, cleanup := newAppointmentMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointment_requests SET status").
		WithArgs(models.AppointmentRescheduled, sqlmock.AnyArg(), "appt-1", models.AppointmentConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO appointment_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	replacement := &models.AppointmentRequest{
		PersonID:    "person-1",
		RequesterID: "user-2",
		Date:        time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		StartMinute: 885,
		EndMinute:   915,
		Format:      models.FormatVirtual,
		Topic:       "office hours",
	}
	err := repo.Reschedule(context.Background(), "appt-1", replacement)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentRequested, replacement.Status)
	require.NotNil(t, replacement.RescheduledFromID)
	assert.Equal(t, "appt-1", *replacement.RescheduledFromID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
