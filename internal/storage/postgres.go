// Package storage archives capture runs and their images.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/capture"
	"github.com/mikeyg42/plantwatch/internal/report"
)

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	SSLMode         string // disable, require, verify-ca, verify-full
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode,
	)
}

// RunRecord is one row of capture_runs.
type RunRecord struct {
	ID             string        `db:"id" json:"id"`
	State          string        `db:"state" json:"state"`
	Error          *string       `db:"error" json:"error,omitempty"`
	StartedAt      time.Time     `db:"started_at" json:"startedAt"`
	FinishedAt     time.Time     `db:"finished_at" json:"finishedAt"`
	Unavailable    pq.Int64Array `db:"unavailable" json:"unavailable"`
	EnableFailures pq.Int64Array `db:"enable_failures" json:"enableFailures"`
	VideoFailures  pq.Int64Array `db:"video_failures" json:"videoFailures"`
	Diseased       int           `db:"diseased" json:"diseased"`
	Results        int           `db:"results" json:"results"`
}

// PostgresStore persists runs and results with sqlx.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
	config PostgresConfig
}

// NewPostgresStore creates a new PostgreSQL run store
func NewPostgresStore(config PostgresConfig) (*PostgresStore, error) {
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.SSLMode == "" {
		config.SSLMode = "require"
	}
	if config.MaxConnections == 0 {
		config.MaxConnections = 5
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 2
	}
	if config.ConnMaxLifetime == 0 {
		config.ConnMaxLifetime = 5 * time.Minute
	}

	db, err := sqlx.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		db:     db,
		logger: zap.L().Named("postgres-store"),
		config: config,
	}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS capture_runs (
		id VARCHAR(64) PRIMARY KEY,
		state VARCHAR(32) NOT NULL,
		error TEXT,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		unavailable INTEGER[] DEFAULT '{}',
		enable_failures INTEGER[] DEFAULT '{}',
		video_failures INTEGER[] DEFAULT '{}',
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS capture_results (
		id BIGSERIAL PRIMARY KEY,
		run_id VARCHAR(64) REFERENCES capture_runs(id) ON DELETE CASCADE,
		folder VARCHAR(500) NOT NULL,
		camera INTEGER,
		farmer VARCHAR(255),
		plant_name VARCHAR(255),
		plant_code VARCHAR(64),
		bed_number INTEGER,
		message TEXT,
		image_key VARCHAR(500),
		has_disease BOOLEAN NOT NULL DEFAULT FALSE,
		disease_types JSONB DEFAULT '[]',
		classification JSONB DEFAULT '[]',
		created_at TIMESTAMPTZ DEFAULT NOW(),

		UNIQUE(run_id, folder)
	);

	CREATE INDEX IF NOT EXISTS idx_capture_runs_started_at ON capture_runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_capture_results_run_id ON capture_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_capture_results_disease ON capture_results(camera) WHERE has_disease;
`

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRun upserts the run row.
func (s *PostgresStore) SaveRun(ctx context.Context, run capture.Result) error {
	query := `
		INSERT INTO capture_runs (
			id, state, error, started_at, finished_at,
			unavailable, enable_failures, video_failures
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at,
			unavailable = EXCLUDED.unavailable,
			enable_failures = EXCLUDED.enable_failures,
			video_failures = EXCLUDED.video_failures
	`

	var errText *string
	if run.Err != nil {
		msg := run.Err.Error()
		errText = &msg
	}

	_, err := s.db.ExecContext(ctx, query,
		run.RunID, run.State.String(), errText, run.StartedAt, run.FinishedAt,
		pq.Array(toInt64(run.Unavailable)),
		pq.Array(toInt64(run.EnableFailures)),
		pq.Array(toInt64(run.VideoFailures)),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	s.logger.Info("Run saved",
		zap.String("id", run.RunID),
		zap.Stringer("state", run.State))
	return nil
}

// SaveResults stores a batch in one transaction. imageKeys maps a folder to
// its archived object key.
func (s *PostgresStore) SaveResults(ctx context.Context, runID string, results []report.Result, imageKeys map[string]string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO capture_results (
			run_id, folder, camera, farmer, plant_name, plant_code, bed_number,
			message, image_key, has_disease, disease_types, classification
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (run_id, folder) DO UPDATE SET
			has_disease = EXCLUDED.has_disease,
			disease_types = EXCLUDED.disease_types,
			classification = EXCLUDED.classification,
			image_key = EXCLUDED.image_key
	`

	for _, r := range results {
		diseases, err := json.Marshal(r.DiseaseTypes)
		if err != nil {
			return fmt.Errorf("failed to marshal disease types: %w", err)
		}
		scores, err := json.Marshal(r.Results)
		if err != nil {
			return fmt.Errorf("failed to marshal classification: %w", err)
		}

		var farmer, plantName, plantCode *string
		var bed *int
		if r.Record != nil {
			farmer, plantName, plantCode = &r.Record.Farmer, &r.Record.PlantName, &r.Record.PlantCode
			bed = r.Record.BedNumber
		}
		var camera *int
		if r.Camera > 0 {
			camera = &r.Camera
		}
		var imageKey *string
		if key, ok := imageKeys[r.Folder]; ok {
			imageKey = &key
		}

		if _, err := tx.ExecContext(ctx, query,
			runID, r.Folder, camera, farmer, plantName, plantCode, bed,
			r.Message, imageKey, r.HasDisease, diseases, scores,
		); err != nil {
			return fmt.Errorf("failed to save result for %s: %w", r.Folder, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}

	s.logger.Info("Results saved", zap.String("run_id", runID), zap.Int("count", len(results)))
	return nil
}

// RecentRuns returns the newest runs with result counts.
func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT
			r.id, r.state, r.error, r.started_at, r.finished_at,
			r.unavailable, r.enable_failures, r.video_failures,
			COUNT(c.id) AS results,
			COUNT(c.id) FILTER (WHERE c.has_disease) AS diseased
		FROM capture_runs r
		LEFT JOIN capture_results c ON c.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT $1
	`

	var runs []RunRecord
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return runs, nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func toInt64(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}
