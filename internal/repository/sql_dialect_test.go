package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hireflow/hireflow/internal/config"
)

func TestPlaceholder(t *testing.T) {
	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_POSTGRES)
	assert.Equal(t, "$1", placeholder(1))
	assert.Equal(t, "$7", placeholder(7))

	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_MYSQL)
	assert.Equal(t, "?", placeholder(1))

	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_SQLLITE)
	assert.Equal(t, "?", placeholder(3))
}

func TestSupportsReturning(t *testing.T) {
	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_POSTGRES)
	assert.True(t, supportsReturning())

	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_MYSQL)
	assert.False(t, supportsReturning())

	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_SQLLITE)
	assert.False(t, supportsReturning())
}

func TestFormatDateInDatabase(t *testing.T) {
	at := time.Date(2025, 3, 10, 12, 30, 45, 123456789, time.UTC)

	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_SQLLITE)
	assert.Equal(t, "2025-03-10 12:30:45.123", formatDateInDatabase(at))

	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_MYSQL)
	assert.Equal(t, "2025-03-10 12:30:45.123456", formatDateInDatabase(at))

	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_POSTGRES)
	assert.Equal(t, at.Format(time.RFC3339Nano), formatDateInDatabase(at))
}

func TestFormatDateInDatabaseNull(t *testing.T) {
	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_SQLLITE)
	assert.Nil(t, formatDateInDatabaseNull(sql.NullTime{}))

	at := time.Date(2025, 3, 10, 12, 30, 45, 0, time.UTC)
	assert.Equal(t, "2025-03-10 12:30:45.000",
		formatDateInDatabaseNull(sql.NullTime{Time: at, Valid: true}))
}

func TestDateBeforeLiteral(t *testing.T) {
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_POSTGRES)
	assert.Equal(t, "scheduled_at <= '2025-03-10 12:00:00.000'", dateBeforeLiteral("scheduled_at", at))

	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_SQLLITE)
	assert.Equal(t, "julianday(scheduled_at) <= julianday('2025-03-10 12:00:00.000')",
		dateBeforeLiteral("scheduled_at", at))
}

func TestBoolLiteral(t *testing.T) {
	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_POSTGRES)
	assert.Equal(t, "TRUE", boolLiteral(true))
	assert.Equal(t, "FALSE", boolLiteral(false))

	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_SQLLITE)
	assert.Equal(t, "1", boolLiteral(true))
	assert.Equal(t, "0", boolLiteral(false))
}
