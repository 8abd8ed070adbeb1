package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Column names as they appear in constraint errors.
const (
	columnReference = "transactions.reference_number"
	columnReversal  = "transactions.reversal_of"
)

// isUniqueViolation reports a UNIQUE or PRIMARY KEY failure, optionally on
// a specific table.column.
func isUniqueViolation(err error, column string) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique &&
		sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return false
	}
	return column == "" || strings.Contains(sqliteErr.Error(), column)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
