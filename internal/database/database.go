// Package database mirrors the combined building dataset into an Oracle
// table and serves address lookups against it.
package database

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"buildings/internal/config"
	"buildings/internal/types"

	_ "github.com/sijms/go-ora/v2"
)

// dsn builds a properly encoded connection string for Oracle Autonomous Database
func dsn(username, password, host, port, service string, walletLocation string) string {
	if walletLocation != "" {
		// Use wallet-based mTLS connection
		return fmt.Sprintf(
			"oracle://%s:%s@%s:%s/%s?ssl=true&wallet_location=%s",
			username, password, host, port, service, url.PathEscape(walletLocation))
	}

	// Fallback to standard connection without wallet
	return (&url.URL{
		Scheme:   "oracle",
		User:     url.UserPassword(username, password), // escapes automatically
		Host:     host + ":" + port,
		Path:     "/" + service, // keep full service name
		RawQuery: "ssl=true",    // ADB requires TCPS on 1522
	}).String()
}

// LoadEnvFile reads environment variables from a .env file. Values already
// present in the environment win.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err // File doesn't exist, which is okay
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if idx := strings.Index(line, "="); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			value := strings.TrimSpace(line[idx+1:])

			if len(value) >= 2 && (value[0] == '"' && value[len(value)-1] == '"') {
				value = value[1 : len(value)-1]
			}

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	}

	return scanner.Err()
}

// Database holds the Oracle connection and the sink configuration.
type Database struct {
	db     *sql.DB
	config config.DatabaseConfig

	// columns in the mirrored table, in insert order, keyed by their
	// Oracle-safe identifier.
	columns []column
}

type column struct {
	name   string // original flat column name
	ident  string // Oracle identifier
	isClob bool
}

// New opens a connection to the Oracle sink and verifies it with a ping.
func New(cfg config.DatabaseConfig) (*Database, error) {
	connStr := dsn(cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Service, cfg.WalletLocation)

	db, err := sql.Open("oracle", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{db: db, config: cfg}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// identFor converts a flat column name into an Oracle identifier: uppercase,
// non-alphanumerics replaced by underscores, truncated to 30 characters.
// Cyrillic passport headers come out as C_<n> with a positional suffix.
func identFor(name string, pos int) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '_' || r == ' ' || r == '-':
			sb.WriteByte('_')
		}
	}
	ident := strings.Trim(sb.String(), "_")
	if ident == "" || ident[0] >= '0' && ident[0] <= '9' {
		ident = fmt.Sprintf("C_%d", pos)
	}
	if len(ident) > 30 {
		ident = ident[:30]
	}
	return ident
}

// buildColumns maps flat columns to unique Oracle identifiers.
func buildColumns(cols []string) []column {
	seen := make(map[string]int)
	out := make([]column, 0, len(cols))
	for i, name := range cols {
		ident := identFor(name, i)
		if n := seen[ident]; n > 0 {
			suffix := fmt.Sprintf("_%d", n)
			if len(ident)+len(suffix) > 30 {
				ident = ident[:30-len(suffix)]
			}
			ident += suffix
		}
		seen[identFor(name, i)]++
		out = append(out, column{
			name:   name,
			ident:  ident,
			isClob: name == "citywalls_json",
		})
	}
	return out
}

// EnsureTable prepares the sink table for the given flat columns according to
// the if_exists policy: fail returns an error when the table exists, replace
// drops and recreates it, append creates it only when missing.
func (d *Database) EnsureTable(ctx context.Context, cols []string, ifExists string) error {
	d.columns = buildColumns(cols)

	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_tables WHERE table_name = UPPER(:1)`,
		d.config.Table).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check for table %s: %w", d.config.Table, err)
	}

	if count > 0 {
		switch ifExists {
		case "fail":
			return fmt.Errorf("table %s already exists", d.config.Table)
		case "append":
			return nil
		case "replace":
			if _, err := d.db.ExecContext(ctx, "DROP TABLE "+d.config.Table); err != nil {
				return fmt.Errorf("failed to drop table %s: %w", d.config.Table, err)
			}
		default:
			return fmt.Errorf("unknown if_exists policy %q", ifExists)
		}
	}

	defs := make([]string, 0, len(d.columns))
	for _, c := range d.columns {
		typ := "VARCHAR2(2000)"
		if c.isClob {
			typ = "CLOB"
		}
		defs = append(defs, c.ident+" "+typ)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", d.config.Table, strings.Join(defs, ", "))
	if _, err := d.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create table %s: %w", d.config.Table, err)
	}
	return nil
}

// InsertCombined writes the flattened combined records in batches.
func (d *Database) InsertCombined(ctx context.Context, records []types.Record) error {
	if len(d.columns) == 0 {
		return fmt.Errorf("table columns not prepared, call EnsureTable first")
	}

	idents := make([]string, len(d.columns))
	binds := make([]string, len(d.columns))
	for i, c := range d.columns {
		idents[i] = c.ident
		binds[i] = fmt.Sprintf(":%d", i+1)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.config.Table, strings.Join(idents, ", "), strings.Join(binds, ", "))

	const batchSize = 500
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}

		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		for _, rec := range records[start:end] {
			args := make([]any, len(d.columns))
			for i, c := range d.columns {
				args[i] = truncate(rec[c.name], c.isClob)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				stmt.Close()
				tx.Rollback()
				return fmt.Errorf("failed to insert record: %w", err)
			}
		}
		stmt.Close()
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// truncate keeps VARCHAR2 values within the column width.
func truncate(v string, isClob bool) string {
	if isClob || len(v) <= 2000 {
		return v
	}
	return v[:2000]
}

// QueryByAddress returns the combined rows whose normalized address matches.
func (d *Database) QueryByAddress(ctx context.Context, normalized string) ([]types.Record, error) {
	query := fmt.Sprintf(
		`SELECT * FROM %s WHERE LOWER(NORMALIZED_ADDRESS) = LOWER(:1)`, d.config.Table)
	return d.queryRecords(ctx, query, normalized)
}

// QueryByStreet returns the combined rows on a street, house order is
// whatever the table yields.
func (d *Database) QueryByStreet(ctx context.Context, street string) ([]types.Record, error) {
	query := fmt.Sprintf(
		`SELECT * FROM %s WHERE LOWER(STREET) = LOWER(:1)`, d.config.Table)
	return d.queryRecords(ctx, query, street)
}

func (d *Database) queryRecords(ctx context.Context, query string, args ...any) ([]types.Record, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query combined table: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []types.Record
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		scan := make([]any, len(cols))
		for i := range vals {
			scan[i] = &vals[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec := make(types.Record, len(cols))
		for i, c := range cols {
			rec[strings.ToLower(c)] = vals[i].String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
