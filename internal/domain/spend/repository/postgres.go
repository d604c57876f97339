package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend"
)

const spendTable = "spend_records"

var spendColumns = []string{"campaign", "month", "year", "channel", "spend"}

// DBTX is the subset of pgxpool.Pool used by PostgresRepository.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores spend records in the spend_records table.
type PostgresRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewPostgresRepository creates a Postgres-backed spend repository
func NewPostgresRepository(db DBTX, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

// Load returns all records ordered by period, campaign and channel. A query
// failure means the dataset is unreadable and is reported as MissingInputError.
func (r *PostgresRepository) Load(ctx context.Context) ([]spend.Record, error) {
	query := `
		SELECT campaign, month, year, channel, spend::float8
		FROM spend_records
		ORDER BY year, month, campaign, channel
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, &spend.MissingInputError{Source: "postgres:" + spendTable, Err: err}
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByPos[spend.Record])
	if err != nil {
		return nil, fmt.Errorf("failed to scan spend records: %w", err)
	}

	r.logger.Debug("loaded spend records from postgres", slog.Int("records", len(records)))
	return records, nil
}

// Save replaces the stored dataset with records in a single transaction.
func (r *PostgresRepository) Save(ctx context.Context, records []spend.Record) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM spend_records"); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to clear spend records: %w", err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{spendTable}, spendColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			return []any{rec.Campaign, rec.Month, rec.Year, rec.Channel, rec.Spend}, nil
		}),
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to copy spend records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit spend records: %w", err)
	}

	r.logger.Info("stored spend dataset",
		slog.String("table", spendTable),
		slog.Int64("records", copied),
	)
	return nil
}

// Append inserts records without touching existing rows.
func (r *PostgresRepository) Append(ctx context.Context, records []spend.Record) error {
	for _, rec := range records {
		_, err := r.db.Exec(ctx,
			`INSERT INTO spend_records (campaign, month, year, channel, spend) VALUES ($1, $2, $3, $4, $5)`,
			rec.Campaign, rec.Month, rec.Year, rec.Channel, rec.Spend,
		)
		if err != nil {
			return fmt.Errorf("failed to insert spend record: %w", err)
		}
	}
	return nil
}
