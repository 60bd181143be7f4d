// Package audit persists the append-only record of executed actions.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

// Dialect selects the SQL flavour of a store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// topActions is how many actions Stats ranks.
const topActions = 5

const columns = "run_id, idx, ts, action, args, status, error, error_kind, risk_level, elevated, elevation, layer, username, duration_ms"

// SQLStore keeps the audit trail in SQLite or PostgreSQL.
type SQLStore struct {
	db       *sql.DB
	dialect  Dialect
	location string
	mu       sync.Mutex
}

// OpenSQL opens (and creates, for SQLite) the database named by dsn.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	location := dsn
	switch dialect {
	case DialectSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), domain.DirectoryPermissions); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
	case DialectPostgres:
		location = redactDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported audit dialect %q", dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	store, err := NewSQLStore(ctx, db, dialect, location)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an open database and ensures the schema exists.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect, location string) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect, location: location}
	if err := s.init(ctx); err != nil {
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) init(ctx context.Context) error {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == DialectPostgres {
		id = "BIGSERIAL PRIMARY KEY"
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS audit_log (
		id `+id+`,
		run_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		ts TEXT NOT NULL,
		action TEXT NOT NULL,
		args TEXT,
		status TEXT NOT NULL,
		error TEXT,
		error_kind TEXT,
		risk_level TEXT,
		elevated INTEGER NOT NULL DEFAULT 0,
		elevation TEXT,
		layer TEXT,
		username TEXT,
		duration_ms BIGINT
	)`)
	return err
}

// rebind rewrites ? placeholders for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Record implements ports.AuditSink.
func (s *SQLStore) Record(ctx context.Context, rec domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO audit_log (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.RunID,
		rec.Index,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Action,
		rec.Args,
		string(rec.Status),
		rec.Error,
		string(rec.ErrorKind),
		string(rec.RiskLevel),
		boolToInt(rec.Elevated),
		string(rec.Elevation),
		string(rec.Layer),
		rec.User,
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// Recent implements ports.AuditSink.
func (s *SQLStore) Recent(ctx context.Context, n int) ([]domain.AuditRecord, error) {
	if n <= 0 {
		return nil, fmt.Errorf("audit: record count must be positive, got %d", n)
	}
	return s.query(ctx, "SELECT id, "+columns+" FROM audit_log ORDER BY id DESC LIMIT ?", n)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]domain.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []domain.AuditRecord
	for rows.Next() {
		var (
			rec                                      domain.AuditRecord
			ts, status, kind, risk, elevation, layer string
			argsJSON, errText, user                  sql.NullString
			elevated                                 int
			durationMS                               sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Index, &ts, &rec.Action, &argsJSON, &status, &errText,
			&kind, &risk, &elevated, &elevation, &layer, &user, &durationMS); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = t
		}
		rec.Args = argsJSON.String
		rec.Status = domain.Status(status)
		rec.Error = errText.String
		rec.ErrorKind = domain.ErrorKind(kind)
		rec.RiskLevel = domain.RiskLevel(risk)
		rec.Elevated = elevated == 1
		rec.Elevation = domain.ElevationOutcome(elevation)
		rec.Layer = domain.Layer(layer)
		rec.User = user.String
		rec.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats implements ports.AuditRepository.
func (s *SQLStore) Stats(ctx context.Context) (domain.AuditStats, error) {
	stats := domain.AuditStats{ByRisk: map[domain.RiskLevel]int{}}
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(elevated), 0)
		FROM audit_log`), string(domain.StatusSuccess))
	if err := row.Scan(&stats.Total, &stats.Successes, &stats.Elevated); err != nil {
		return stats, err
	}
	stats.Errors = stats.Total - stats.Successes

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT action, COUNT(*) AS n FROM audit_log
		GROUP BY action ORDER BY n DESC, action ASC LIMIT ?`), topActions)
	if err != nil {
		return stats, err
	}
	for rows.Next() {
		var ac domain.ActionCount
		if err := rows.Scan(&ac.Action, &ac.Count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.TopActions = append(stats.TopActions, ac)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return stats, err
	}

	rows, err = s.db.QueryContext(ctx, "SELECT risk_level, COUNT(*) FROM audit_log GROUP BY risk_level")
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			risk sql.NullString
			n    int
		)
		if err := rows.Scan(&risk, &n); err != nil {
			return stats, err
		}
		stats.ByRisk[domain.RiskLevel(risk.String)] = n
	}
	return stats, rows.Err()
}

// ExportJSON writes every record, oldest first, as JSON lines.
func (s *SQLStore) ExportJSON(ctx context.Context, dest string) error {
	records, err := s.query(ctx, "SELECT id, "+columns+" FROM audit_log ORDER BY id ASC")
	if err != nil {
		return err
	}
	return writeJSONLines(dest, records)
}

// Location returns where the records live, with credentials removed.
func (s *SQLStore) Location() string { return s.location }

// Close releases the database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

func writeJSONLines(dest string, records []domain.AuditRecord) error {
	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(file)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			file.Close()
			return err
		}
	}
	return file.Close()
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		if strings.Contains(dsn, "password=") {
			return "postgres (key/value dsn)"
		}
		return dsn
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.AuditRepository = (*SQLStore)(nil)
