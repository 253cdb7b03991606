package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/autotest-engine/internal/models"
)

func TestQueries_ListProjectsPostgres(t *testing.T) {
	q := queries{flavor: sqlbuilder.PostgreSQL}
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	list, listArgs, count, countArgs := q.listProjects(models.ProjectFilter{
		NameLike:    "Pay_",
		CreatedFrom: &from,
		Limit:       10,
	})

	assert.Contains(t, list, `LOWER(p.name) LIKE $1 ESCAPE '\'`)
	assert.Contains(t, list, "p.created_at >= $2")
	assert.Contains(t, list, "LEFT JOIN system_user u ON u.id = p.creator_id")
	assert.Contains(t, list, "ORDER BY p.created_at DESC, p.id DESC")
	require.GreaterOrEqual(t, len(listArgs), 2)
	assert.Equal(t, `%pay\_%`, listArgs[0])

	assert.Contains(t, count, "COUNT(*)")
	assert.NotContains(t, count, "ORDER BY")
	assert.Equal(t, listArgs[:2], countArgs)
}

func TestQueries_ListTasksWithoutFilters(t *testing.T) {
	q := queries{flavor: sqlbuilder.SQLite}

	_, _, count, countArgs := q.listTasks(models.TaskFilter{})
	assert.NotContains(t, count, "WHERE")
	assert.Empty(t, countArgs)
}

func TestQueries_InsertReturnsID(t *testing.T) {
	q := queries{flavor: sqlbuilder.PostgreSQL}

	query, args := q.insertProject(&models.Project{Name: "p"})
	assert.Contains(t, query, "INSERT INTO auto_projects")
	assert.Contains(t, query, " RETURNING id")
	assert.Len(t, args, 5)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_a\\b`, escapeLike(`100%_a\b`))
}

func TestPgError(t *testing.T) {
	err := pgError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "auto_projects_name_key"})
	require.ErrorIs(t, err, ErrDuplicate)

	err = pgError(&pgconn.PgError{Code: pgForeignKeyViolation})
	require.ErrorIs(t, err, ErrForeignKey)

	plain := errors.New("boom")
	require.Equal(t, plain, pgError(plain))
}
