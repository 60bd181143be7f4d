package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

// Driver names accepted in audit.driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverJSONL    = "jsonl"
)

// DefaultDir is the audit directory below the deskgate home.
func DefaultDir(home string) string {
	return filepath.Join(home, ".deskgate", "audit")
}

// Open builds the repository selected by settings. Relative or empty DSNs
// for file backends resolve inside the deskgate home.
func Open(ctx context.Context, settings domain.AuditSettings, home string) (ports.AuditRepository, error) {
	driver := strings.ToLower(strings.TrimSpace(settings.Driver))
	switch driver {
	case "", DriverSQLite:
		return OpenSQL(ctx, DialectSQLite, filePath(settings.DSN, home, "audit.db"))
	case DriverPostgres:
		if settings.DSN == "" {
			return nil, fmt.Errorf("audit driver postgres requires a dsn")
		}
		return OpenSQL(ctx, DialectPostgres, settings.DSN)
	case DriverJSONL:
		return NewFileStore(filePath(settings.DSN, home, "audit.jsonl")), nil
	default:
		return nil, fmt.Errorf("unknown audit driver %q", settings.Driver)
	}
}

// Fallback is the JSON lines store used when the configured backend fails.
func Fallback(home string) *FileStore {
	return NewFileStore(filepath.Join(DefaultDir(home), "audit.jsonl"))
}

func filePath(dsn, home, name string) string {
	switch {
	case dsn == "":
		return filepath.Join(DefaultDir(home), name)
	case filepath.IsAbs(dsn):
		return dsn
	default:
		return filepath.Join(home, ".deskgate", dsn)
	}
}
