package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mselser95/dexsim/internal/engine"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// SaveReport stores a batch report and its per-operation outcomes in a single
// transaction. Either the whole report lands or none of it does.
func (p *PostgresStorage) SaveReport(ctx context.Context, report *engine.Report) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	reportID := uuid.NewString()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batch_reports (
			id, block_number, started_at, finished_at,
			total_operations, confirmed, reverted, failed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		reportID,
		report.Block,
		report.StartedAt,
		report.FinishedAt,
		report.Total(),
		report.Confirmed(),
		report.Reverted(),
		report.Failed(),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	for _, o := range report.Outcomes {
		var txHash sql.NullString
		var blockNumber, gasUsed sql.NullInt64
		if o.Receipt != nil {
			txHash = sql.NullString{String: o.Receipt.TxHash, Valid: true}
			blockNumber = sql.NullInt64{Int64: int64(o.Receipt.BlockNumber), Valid: true}
			gasUsed = sql.NullInt64{Int64: int64(o.Receipt.GasUsed), Valid: true}
		}

		var quotedOut, declaredOut sql.NullString
		if o.QuotedOut != nil {
			quotedOut = sql.NullString{String: o.QuotedOut.String(), Valid: true}
		}
		if o.DeclaredOut != nil {
			declaredOut = sql.NullString{String: o.DeclaredOut.String(), Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO batch_outcomes (
				report_id, op_index, op_id, kind, state, reason,
				tx_hash, block_number, gas_used,
				quoted_out, declared_out, divergence_bps
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			reportID,
			o.Index,
			o.ID,
			string(o.Kind),
			string(o.State),
			o.Reason,
			txHash,
			blockNumber,
			gasUsed,
			quotedOut,
			declaredOut,
			o.DivergenceBps,
		)
		if err != nil {
			return fmt.Errorf("insert outcome %d: %w", o.Index, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit report: %w", err)
	}

	p.logger.Debug("report-stored",
		zap.String("report-id", reportID),
		zap.Uint64("block", report.Block),
		zap.Int("outcome-count", report.Total()))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
