package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

// FileStore appends audit records to a JSON lines file. It is the fallback
// when no database is available.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Record implements ports.AuditSink.
func (f *FileStore) Record(_ context.Context, rec domain.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), domain.DirectoryPermissions); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.SecureFilePermissions)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		file.Close()
		return err
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		file.Close()
		return fmt.Errorf("append audit record: %w", err)
	}
	return file.Close()
}

// records loads all entries oldest first, skipping lines that do not decode.
func (f *FileStore) records() ([]domain.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []domain.AuditRecord
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var rec domain.AuditRecord
		if err := json.Unmarshal(line, &rec); err == nil {
			rec.ID = int64(len(records) + 1)
			records = append(records, rec)
		}
	}
	return records, nil
}

// Recent implements ports.AuditSink.
func (f *FileStore) Recent(_ context.Context, n int) ([]domain.AuditRecord, error) {
	if n <= 0 {
		return nil, fmt.Errorf("audit: record count must be positive, got %d", n)
	}
	records, err := f.records()
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditRecord, 0, min(n, len(records)))
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i])
	}
	return out, nil
}

// Stats implements ports.AuditRepository.
func (f *FileStore) Stats(context.Context) (domain.AuditStats, error) {
	records, err := f.records()
	if err != nil {
		return domain.AuditStats{}, err
	}
	if len(records) > domain.MaxAuditAnalysisRecords {
		records = records[len(records)-domain.MaxAuditAnalysisRecords:]
	}
	return computeStats(records), nil
}

// ExportJSON copies every decodable record to dest.
func (f *FileStore) ExportJSON(_ context.Context, dest string) error {
	records, err := f.records()
	if err != nil {
		return err
	}
	return writeJSONLines(dest, records)
}

// Location returns the backing file path.
func (f *FileStore) Location() string { return f.path }

// Close is a no-op.
func (f *FileStore) Close() error { return nil }

func computeStats(records []domain.AuditRecord) domain.AuditStats {
	stats := domain.AuditStats{Total: len(records), ByRisk: map[domain.RiskLevel]int{}}
	counts := map[string]int{}
	for _, rec := range records {
		if rec.Status == domain.StatusSuccess {
			stats.Successes++
		}
		if rec.Elevated {
			stats.Elevated++
		}
		counts[rec.Action]++
		stats.ByRisk[rec.RiskLevel]++
	}
	stats.Errors = stats.Total - stats.Successes
	for action, n := range counts {
		stats.TopActions = append(stats.TopActions, domain.ActionCount{Action: action, Count: n})
	}
	sort.Slice(stats.TopActions, func(i, j int) bool {
		a, b := stats.TopActions[i], stats.TopActions[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Action < b.Action
	})
	if len(stats.TopActions) > topActions {
		stats.TopActions = stats.TopActions[:topActions]
	}
	return stats
}

var _ ports.AuditRepository = (*FileStore)(nil)
