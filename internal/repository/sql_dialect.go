package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hireflow/hireflow/internal/config"
)

// placeholder returns the correct bind variable for the given index based on
// DB type. Postgres uses $1, $2... while MySQL and SQLite use ?
func placeholder(i int) string {
	db := config.GetSystemSettingString(config.DATABASE_TYPE)
	if db == config.DATABASE_TYPE_POSTGRES {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func supportsReturning() bool {
	return config.GetSystemSettingString(config.DATABASE_TYPE) == config.DATABASE_TYPE_POSTGRES
}

// formatDateInDatabase renders a timestamp the way the active dialect stores
// it. SQLite keeps millisecond text, MySQL microsecond text, Postgres RFC3339.
func formatDateInDatabase(t time.Time) string {
	switch config.GetSystemSettingString(config.DATABASE_TYPE) {
	case config.DATABASE_TYPE_SQLLITE:
		return t.UTC().Format("2006-01-02 15:04:05.000")
	case config.DATABASE_TYPE_MYSQL:
		return t.UTC().Format("2006-01-02 15:04:05.000000")
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatDateInDatabaseNull(t sql.NullTime) interface{} {
	if !t.Valid {
		return nil
	}
	switch config.GetSystemSettingString(config.DATABASE_TYPE) {
	case config.DATABASE_TYPE_SQLLITE:
		return t.Time.UTC().Format("2006-01-02 15:04:05.000")
	case config.DATABASE_TYPE_MYSQL:
		return t.Time.UTC().Format("2006-01-02 15:04:05.000000")
	}
	return t.Time
}

// dateBeforeLiteral returns a dialect-specific predicate checking that the
// datetime column is at or before the given instant. SQLite compares via
// julianday so TEXT timestamps order correctly.
func dateBeforeLiteral(column string, t time.Time) string {
	literal := t.UTC().Format("2006-01-02 15:04:05.000")
	switch config.GetSystemSettingString(config.DATABASE_TYPE) {
	case config.DATABASE_TYPE_POSTGRES, config.DATABASE_TYPE_MYSQL:
		return fmt.Sprintf("%s <= '%s'", column, literal)
	}
	return fmt.Sprintf("julianday(%s) <= julianday('%s')", column, literal)
}

// boolLiteral renders a boolean constant for the active dialect. SQLite
// stores booleans as integers.
func boolLiteral(v bool) string {
	sqlite := config.GetSystemSettingString(config.DATABASE_TYPE) == config.DATABASE_TYPE_SQLLITE
	if v {
		if sqlite {
			return "1"
		}
		return "TRUE"
	}
	if sqlite {
		return "0"
	}
	return "FALSE"
}

// insertReturningID runs an insert and yields the new row id, using RETURNING
// where the dialect supports it and LastInsertId elsewhere.
func insertReturningID(db *sql.DB, query string, vals ...interface{}) (int64, error) {
	if supportsReturning() {
		var id int64
		err := db.QueryRow(query+" RETURNING id", vals...).Scan(&id)
		return id, err
	}
	res, err := db.Exec(query, vals...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// txInsertReturningID is insertReturningID inside a transaction.
func txInsertReturningID(tx *sql.Tx, query string, vals ...interface{}) (int64, error) {
	if supportsReturning() {
		var id int64
		err := tx.QueryRow(query+" RETURNING id", vals...).Scan(&id)
		return id, err
	}
	res, err := tx.Exec(query, vals...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
