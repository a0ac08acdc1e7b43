package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gw-connect/connect-api/internal/models"
)

func newPersonMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPersonRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newPersonMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "role", "default_duration_minutes", "buffer_minutes", "advance_notice_hours", "max_per_day", "allows_virtual", "allows_in_person", "location", "virtual_link", "auto_confirm", "created_at", "updated_at"}).
		AddRow("person-1", "user-1", "Dr. Ada Moore", "FACULTY", 30, 15, 24, 4, true, true, nil, nil, false, now, now)
	mock.ExpectQuery("SELECT .+ FROM people WHERE id").
		WithArgs("person-1").
		WillReturnRows(rows)

	person, err := repo.FindByID(context.Background(), "person-1")
	require.NoError(t, err)
	assert.Equal(t, models.PersonRoleFaculty, person.Role)
	assert.Equal(t, 30, person.DefaultDurationMinutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositoryReplaceWindows(t *testing.T) {
	db, mock, cleanup := newPersonMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability_windows WHERE person_id = $1")).
		WithArgs("person-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO availability_windows").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO availability_windows").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	windows := []models.AvailabilityWindow{
		{DayOfWeek: 1, StartMinute: 840, EndMinute: 960},
		{DayOfWeek: 3, StartMinute: 600, EndMinute: 720},
	}
	err := repo.ReplaceWindows(context.Background(), "person-1", windows)
	require.NoError(t, err)
	assert.NotEmpty(t, windows[0].ID)
	assert.Equal(t, "person-1", windows[1].PersonID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
