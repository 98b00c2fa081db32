package storage

import (
	"context"
	stdsql "database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver for golang-migrate's database/sql bridge

	"github.com/redlance/redlance/pkg/config"
	"github.com/redlance/redlance/pkg/models"
)

//go:embed migrations
var migrationsFS embed.FS

// PostgresStore is the Postgres-backed Storage implementation, used when
// config.StorageConfig.DSN is set. Grounded on tarsy's pkg/database.Client:
// golang-migrate applies the embedded schema on startup over a
// database/sql connection (the driver golang-migrate's postgres backend
// needs), while steady-state reads and writes go through a pgxpool.Pool
// for native pgx performance — tarsy pairs the same migration bootstrap
// with its Ent driver; here there is no Ent, so the pool is used directly.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to cfg.DSN, applies any pending migrations,
// and returns a ready Storage.
func NewPostgresStore(ctx context.Context, cfg config.StorageConfig) (*PostgresStore, error) {
	if err := applyMigrations(cfg.DSN); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func applyMigrations(dsn string) error {
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating postgres migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migration source: %w", err)
	}
	defer source.Close()

	m, err := migrate.NewWithInstance("iofs", source, "redlance", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) PutScan(ctx context.Context, scan models.Scan) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scans (id, target, objective, profile, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		scan.ID, scan.Target, scan.Objective, string(scan.Profile), string(scan.Status), scan.CreatedAt)
	return err
}

func (s *PostgresStore) UpdateScanStatus(ctx context.Context, scanID string, status models.ScanStatus, errMsg *string) error {
	var startedClause string
	if status == models.ScanStatusRunning {
		startedClause = `, started_at = COALESCE(started_at, now())`
	}
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE scans SET status = $1, error_message = $2%s WHERE id = $3`, startedClause),
		string(status), errMsg, scanID)
	return err
}

func (s *PostgresStore) AppendStep(ctx context.Context, step models.AgentStep) error {
	toolCall, err := json.Marshal(step.ToolCall)
	if err != nil {
		return fmt.Errorf("marshaling tool call: %w", err)
	}
	toolResult, err := json.Marshal(step.ToolResult)
	if err != nil {
		return fmt.Errorf("marshaling tool result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO agent_steps
		   (scan_id, index, model_used, reasoning, tool_call, tool_result, started_at, completed_at, tokens_in, tokens_out, estimated_cost)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (scan_id, index) DO NOTHING`,
		step.ScanID, step.Index, string(step.ModelUsed), step.Reasoning, toolCall, toolResult,
		step.StartedAt, step.CompletedAt, step.TokensIn, step.TokensOut, step.EstimatedCost)
	return err
}

func (s *PostgresStore) UpsertFinding(ctx context.Context, f models.Finding) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO findings
		   (id, scan_id, step_index, tool_source, severity, title, description, evidence, affected_target, cve, cvss_score, remediation, fingerprint)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (scan_id, fingerprint) DO UPDATE SET
		   description = EXCLUDED.description, evidence = EXCLUDED.evidence`,
		f.ID, f.ScanID, f.StepIndex, f.ToolSource, int(f.Severity), f.Title, f.Description, f.Evidence,
		f.AffectedTarget, f.CVE, f.CVSSScore, f.Remediation, f.Fingerprint)
	return err
}

func (s *PostgresStore) FinalizeScan(ctx context.Context, scanID string, status models.ScanStatus, errMsg *string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE scans SET status = $1, error_message = $2, completed_at = now() WHERE id = $3`,
		string(status), errMsg, scanID)
	return err
}

func (s *PostgresStore) GetScan(ctx context.Context, scanID string) (models.Scan, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, target, objective, profile, status, created_at, started_at, completed_at, current_tool, error_message
		 FROM scans WHERE id = $1`, scanID)
	var scan models.Scan
	var profile, status string
	if err := row.Scan(&scan.ID, &scan.Target, &scan.Objective, &profile, &status,
		&scan.CreatedAt, &scan.StartedAt, &scan.CompletedAt, &scan.CurrentTool, &scan.ErrorMessage); err != nil {
		if err == pgx.ErrNoRows {
			return models.Scan{}, fmt.Errorf("%w: scan %s", ErrNotFound, scanID)
		}
		return models.Scan{}, err
	}
	scan.Profile = models.ScanProfile(profile)
	scan.Status = models.ScanStatus(status)
	return scan, nil
}

func (s *PostgresStore) ListSteps(ctx context.Context, scanID string) ([]models.AgentStep, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT scan_id, index, model_used, reasoning, tool_call, tool_result, started_at, completed_at, tokens_in, tokens_out, estimated_cost
		 FROM agent_steps WHERE scan_id = $1 ORDER BY index`, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AgentStep
	for rows.Next() {
		var step models.AgentStep
		var modelUsed string
		var toolCallJSON, toolResultJSON []byte
		if err := rows.Scan(&step.ScanID, &step.Index, &modelUsed, &step.Reasoning, &toolCallJSON, &toolResultJSON,
			&step.StartedAt, &step.CompletedAt, &step.TokensIn, &step.TokensOut, &step.EstimatedCost); err != nil {
			return nil, err
		}
		step.ModelUsed = models.ModelTier(modelUsed)
		if len(toolCallJSON) > 0 {
			_ = json.Unmarshal(toolCallJSON, &step.ToolCall)
		}
		if len(toolResultJSON) > 0 {
			_ = json.Unmarshal(toolResultJSON, &step.ToolResult)
		}
		out = append(out, step)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListFindings(ctx context.Context, scanID string) ([]models.Finding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, scan_id, step_index, tool_source, severity, title, description, evidence, affected_target, cve, cvss_score, remediation, fingerprint
		 FROM findings WHERE scan_id = $1 ORDER BY fingerprint`, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Finding
	for rows.Next() {
		var f models.Finding
		var severity int
		if err := rows.Scan(&f.ID, &f.ScanID, &f.StepIndex, &f.ToolSource, &severity, &f.Title, &f.Description,
			&f.Evidence, &f.AffectedTarget, &f.CVE, &f.CVSSScore, &f.Remediation, &f.Fingerprint); err != nil {
			return nil, err
		}
		f.Severity = models.Severity(severity)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListRunningScans(ctx context.Context) ([]models.Scan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, target, objective, profile, status, created_at, started_at, completed_at, current_tool, error_message
		 FROM scans WHERE status = $1`, string(models.ScanStatusRunning))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Scan
	for rows.Next() {
		var scan models.Scan
		var profile, status string
		if err := rows.Scan(&scan.ID, &scan.Target, &scan.Objective, &profile, &status,
			&scan.CreatedAt, &scan.StartedAt, &scan.CompletedAt, &scan.CurrentTool, &scan.ErrorMessage); err != nil {
			return nil, err
		}
		scan.Profile = models.ScanProfile(profile)
		scan.Status = models.ScanStatus(status)
		out = append(out, scan)
	}
	return out, rows.Err()
}
