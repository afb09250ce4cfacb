package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// queryEach runs query and calls scan for each row. Rows are always
// closed before queryEach returns.
func queryEach(ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) error, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
	}
	return rows.Err()
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	var out []string
	err := queryEach(ctx, db, query, func(rows *sql.Rows) error {
		var s string
		if err := rows.Scan(&s); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	}, args...)
	return out, err
}

// parseTypeArgs splits a declared type such as "DECIMAL(10, 2)" into its
// base name, size and scale.
func parseTypeArgs(declared string) (base string, size, scale int) {
	declared = strings.TrimSpace(declared)
	open := strings.IndexByte(declared, '(')
	if open < 0 {
		return declared, 0, 0
	}
	base = strings.TrimSpace(declared[:open])
	end := strings.IndexByte(declared[open:], ')')
	if end < 0 {
		return base, 0, 0
	}
	args := strings.Split(declared[open+1:open+end], ",")
	if len(args) > 0 {
		size, _ = strconv.Atoi(strings.TrimSpace(args[0]))
	}
	if len(args) > 1 {
		scale, _ = strconv.Atoi(strings.TrimSpace(args[1]))
	}
	return base, size, scale
}

func nullInt(v sql.NullInt64) int {
	if !v.Valid {
		return 0
	}
	return int(v.Int64)
}
