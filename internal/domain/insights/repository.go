package insights

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Run records one published report.
type Run struct {
	ID           uuid.UUID `json:"id"`
	GeneratedAt  time.Time `json:"generated_at"`
	RecordCount  int       `json:"record_count"`
	RowSource    string    `json:"row_source"`
	ColumnSource string    `json:"column_source"`
	Artifacts    []string  `json:"artifacts"`
}

// RunRepository defines the interface for report run history
type RunRepository interface {
	SaveRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// DBTX is the subset of pgxpool.Pool used by Repository.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Ensure Repository implements RunRepository
var _ RunRepository = (*Repository)(nil)

// Repository stores run history in the report_runs table
type Repository struct {
	db DBTX
}

// NewRepository creates a new run repository
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// SaveRun inserts a run, replacing the artifact list when the run exists.
func (r *Repository) SaveRun(ctx context.Context, run *Run) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO report_runs (id, generated_at, record_count, row_source, column_source, artifacts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET artifacts = EXCLUDED.artifacts
	`, run.ID, run.GeneratedAt, run.RecordCount, run.RowSource, run.ColumnSource, run.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to save report run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, generated_at, record_count, row_source, column_source, artifacts
		FROM report_runs
		ORDER BY generated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list report runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Run])
	if err != nil {
		return nil, fmt.Errorf("failed to scan report runs: %w", err)
	}
	return runs, nil
}

// MemoryRepository keeps run history in process, for deployments without
// Postgres.
type MemoryRepository struct {
	mu   sync.Mutex
	runs []Run
	max  int
}

// NewMemoryRepository keeps at most max runs.
func NewMemoryRepository(max int) *MemoryRepository {
	if max <= 0 {
		max = 100
	}
	return &MemoryRepository{max: max}
}

func (m *MemoryRepository) SaveRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i].Artifacts = append([]string(nil), run.Artifacts...)
			return nil
		}
	}

	saved := *run
	saved.Artifacts = append([]string(nil), run.Artifacts...)
	m.runs = append(m.runs, saved)
	if len(m.runs) > m.max {
		m.runs = m.runs[len(m.runs)-m.max:]
	}
	return nil
}

func (m *MemoryRepository) ListRuns(_ context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	out := make([]Run, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}
