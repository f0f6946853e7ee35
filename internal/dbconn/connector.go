// Package dbconn talks to a database directly, without the SQL API, and
// answers in the same shapes the SQL API does.
package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Ashfaaq98/dossier-console/internal/model"
)

const testTimeout = 5 * time.Second

// Connector is an open handle on one database
type Connector interface {
	TestConnection(ctx context.Context) (model.ConnectionResult, error)
	ListTables(ctx context.Context) ([]string, error)
	ExecuteQuery(ctx context.Context, query string) (model.QueryResult, error)
	Close() error
}

// dialect holds what differs between engines
type dialect struct {
	name         string
	driver       string
	versionQuery string // returns (version, database)
	tablesQuery  string // returns (schema, table)
}

type sqlConnector struct {
	dialect dialect
	db      *sql.DB
}

func (c *sqlConnector) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *sqlConnector) TestConnection(ctx context.Context) (model.ConnectionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return model.ConnectionResult{}, fmt.Errorf("ping %s: %w", c.dialect.name, err)
	}
	var version, database sql.NullString
	if err := c.db.QueryRowContext(ctx, c.dialect.versionQuery).Scan(&version, &database); err != nil {
		return model.ConnectionResult{}, fmt.Errorf("read %s version: %w", c.dialect.name, err)
	}
	return model.ConnectionResult{
		Success:       true,
		Message:       "Conexão estabelecida com sucesso!",
		ServerVersion: shortVersion(version.String),
		Database:      database.String,
	}, nil
}

// shortVersion keeps the first line of a banner such as
// "Microsoft SQL Server 2019 (RTM) - 15.0.2000.5 (X64) ...".
func shortVersion(v string) string {
	if v == "" {
		return "Unknown"
	}
	v, _, _ = strings.Cut(v, "\n")
	v, _, _ = strings.Cut(v, " - ")
	return strings.TrimSpace(v)
}

// ListTables returns "schema.table" names of base tables.
func (c *sqlConnector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, c.dialect.tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("list %s tables: %w", c.dialect.name, err)
	}
	defer rows.Close()

	results := []string{}
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, fmt.Errorf("scan %s table name: %w", c.dialect.name, err)
		}
		results = append(results, fmt.Sprintf("%s.%s", schema, name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s tables: %w", c.dialect.name, err)
	}
	return results, nil
}

// ExecuteQuery runs query. Statements that produce rows return them;
// anything else reports how many rows it touched.
func (c *sqlConnector) ExecuteQuery(ctx context.Context, query string) (model.QueryResult, error) {
	if !returnsRows(query) {
		res, err := c.db.ExecContext(ctx, query)
		if err != nil {
			return model.QueryResult{}, fmt.Errorf("execute %s statement: %w", c.dialect.name, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = -1
		}
		return model.QueryResult{
			Success: true,
			Message: fmt.Sprintf("Query executada com sucesso. %d linhas afetadas.", affected),
		}, nil
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return model.QueryResult{}, fmt.Errorf("execute %s query: %w", c.dialect.name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return model.QueryResult{}, fmt.Errorf("read %s columns: %w", c.dialect.name, err)
	}
	data, err := scanRowsToMaps(rows, cols)
	if err != nil {
		return model.QueryResult{}, fmt.Errorf("scan %s rows: %w", c.dialect.name, err)
	}
	return model.QueryResult{
		Success:  true,
		Columns:  cols,
		Data:     data,
		RowCount: len(data),
	}, nil
}

var leadingComment = regexp.MustCompile(`^(\s+|--[^\n]*\n?|/\*(?s:.*?)\*/|\()+`)

var rowKeywords = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"VALUES":   true,
	"TABLE":    true,
	"PRAGMA":   true,
	"EXEC":     true,
	"EXECUTE":  true,
}

// returnsRows guesses from the leading keyword whether query yields a
// result set.
func returnsRows(query string) bool {
	q := leadingComment.ReplaceAllString(query, "")
	end := strings.IndexFunc(q, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end >= 0 {
		q = q[:end]
	}
	return rowKeywords[strings.ToUpper(q)]
}

func scanRowsToMaps(rows *sql.Rows, cols []string) ([]map[string]any, error) {
	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		for i := range values {
			var v any
			values[i] = &v
		}
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(*(values[i].(*any)))
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return t
	}
}
