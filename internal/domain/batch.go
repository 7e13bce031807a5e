package domain

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	insertPrefix  = "INSERT INTO water_reports (timestamp, discharge, river_id) VALUES "
	columnsPerRow = 3

	// MaxBindParams is PostgreSQL's limit on bind parameters per statement.
	MaxBindParams = 65535
)

// Row is one water_reports row.
type Row struct {
	Timestamp time.Time
	Discharge string
	RiverID   string
}

// FormattedTimestamp renders the timestamp in RFC 1123 form with a GMT zone,
// e.g. "Mon, 01 Jan 2024 06:00:00 GMT".
func (r Row) FormattedTimestamp() string {
	return r.Timestamp.UTC().Format(http.TimeFormat)
}

// Statement is a parameterized SQL statement with its bind arguments.
type Statement struct {
	SQL  string
	Args []any
}

// BatchInsert holds every row of a sync run.
type BatchInsert struct {
	Rows []Row
}

// BuildBatch flattens an observation set into insert rows. Rivers are visited
// in sorted ID order and each river's observations keep their order. Rivers
// with no observations contribute nothing.
func BuildBatch(set ObservationSet) BatchInsert {
	rows := make([]Row, 0, set.Count())
	for _, riverID := range set.RiverIDs() {
		for _, obs := range set[riverID] {
			rows = append(rows, Row{
				Timestamp: obs.Timestamp.UTC(),
				Discharge: obs.Value,
				RiverID:   riverID,
			})
		}
	}
	return BatchInsert{Rows: rows}
}

// Empty reports whether the batch has nothing to insert. Callers must not
// issue a statement for an empty batch.
func (b BatchInsert) Empty() bool { return len(b.Rows) == 0 }

// Len returns the number of rows.
func (b BatchInsert) Len() int { return len(b.Rows) }

// Statements renders the batch as multi-row INSERT statements with positional
// parameters. Rows are split so no statement binds more than maxParams
// values; a non-positive maxParams means MaxBindParams. Values are never
// interpolated into the SQL text.
func (b BatchInsert) Statements(maxParams int) []Statement {
	if b.Empty() {
		return nil
	}
	if maxParams <= 0 || maxParams > MaxBindParams {
		maxParams = MaxBindParams
	}
	rowsPerStmt := maxParams / columnsPerRow
	if rowsPerStmt < 1 {
		rowsPerStmt = 1
	}

	stmts := make([]Statement, 0, (len(b.Rows)+rowsPerStmt-1)/rowsPerStmt)
	for start := 0; start < len(b.Rows); start += rowsPerStmt {
		end := min(start+rowsPerStmt, len(b.Rows))
		stmts = append(stmts, buildStatement(b.Rows[start:end]))
	}
	return stmts
}

func buildStatement(rows []Row) Statement {
	var sb strings.Builder
	sb.Grow(len(insertPrefix) + len(rows)*20)
	sb.WriteString(insertPrefix)

	args := make([]any, 0, len(rows)*columnsPerRow)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * columnsPerRow
		sb.WriteString("($")
		sb.WriteString(strconv.Itoa(n + 1))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(n + 2))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(n + 3))
		sb.WriteString(")")
		args = append(args, r.Timestamp, r.Discharge, r.RiverID)
	}
	return Statement{SQL: sb.String(), Args: args}
}
