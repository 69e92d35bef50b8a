package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Report is a flattened view of an error chain for structured logging. When
// a postgres driver error sits anywhere in the chain its server-side metadata
// is lifted out, so a constraint violation can be traced from the log line
// alone.
type Report struct {
	Message string `json:"message"`
	Code    Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// Inspect walks the chain and builds a Report. Both pgx and lib/pq errors
// are recognized; lib/pq appears via goose's database/sql path.
func Inspect(err error) Report {
	if err == nil {
		return Report{}
	}

	report := Report{Message: err.Error()}
	if typed := As(err); typed != nil {
		report.Code = typed.Code()
	}

	for cause := err; cause != nil; cause = errors.Unwrap(cause) {
		report.Chain = append(report.Chain, fmt.Sprintf("%T: %v", cause, cause))
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		report.PGCode = pgxErr.Code
		report.PGConstraint = pgxErr.ConstraintName
		report.PGTable = pgxErr.TableName
		report.PGColumn = pgxErr.ColumnName
		report.PGDetail = pgxErr.Detail
		report.PGMessage = pgxErr.Message
		return report
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		report.PGCode = string(pqErr.Code)
		report.PGConstraint = pqErr.Constraint
		report.PGTable = pqErr.Table
		report.PGColumn = pqErr.Column
		report.PGDetail = pqErr.Detail
		report.PGMessage = pqErr.Message
		return report
	}

	return report
}
