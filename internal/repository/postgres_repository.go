package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

const createCapturesTable = `
CREATE TABLE IF NOT EXISTS captures (
	id          TEXT PRIMARY KEY,
	accession   TEXT NOT NULL,
	project     TEXT NOT NULL,
	creator     TEXT NOT NULL DEFAULT '',
	tag         TEXT NOT NULL DEFAULT '',
	file_format TEXT NOT NULL,
	device      TEXT NOT NULL DEFAULT '',
	captured_at TIMESTAMPTZ NOT NULL,
	output_path TEXT NOT NULL
)`

const createCapturesIndex = `CREATE INDEX IF NOT EXISTS captures_project_idx ON captures (project, captured_at)`

const selectCaptureColumns = `SELECT id, accession, project, creator, tag, file_format, device, captured_at, output_path FROM captures`

// PostgresCaptureRepository stores capture records in a captures table
type PostgresCaptureRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCaptureRepository connects to databaseURL and creates the
// captures table if needed
func NewPostgresCaptureRepository(ctx context.Context, databaseURL string) (*PostgresCaptureRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range []string{createCapturesTable, createCapturesIndex} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create captures table: %w", err)
		}
	}

	return &PostgresCaptureRepository{pool: pool}, nil
}

func (r *PostgresCaptureRepository) SaveCapture(ctx context.Context, rec models.CaptureRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO captures
		(id, accession, project, creator, tag, file_format, device, captured_at, output_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.AccessionID, rec.Project, rec.Creator, rec.Tag,
		rec.FileFormat, rec.DeviceDescription, rec.Timestamp, rec.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to store capture %s: %w", rec.ID, err)
	}
	return nil
}

func (r *PostgresCaptureRepository) GetCapture(ctx context.Context, id string) (*models.CaptureRecord, error) {
	row := r.pool.QueryRow(ctx, selectCaptureColumns+` WHERE id = $1`, id)
	rec, err := scanCapture(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCaptureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load capture %s: %w", id, err)
	}
	return &rec, nil
}

func (r *PostgresCaptureRepository) ListCaptures(ctx context.Context, project string) ([]models.CaptureRecord, error) {
	rows, err := r.pool.Query(ctx, selectCaptureColumns+` WHERE project = $1 ORDER BY captured_at, id`, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	var out []models.CaptureRecord
	for rows.Next() {
		rec, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read capture row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresCaptureRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func scanCapture(row pgx.Row) (models.CaptureRecord, error) {
	var rec models.CaptureRecord
	err := row.Scan(&rec.ID, &rec.AccessionID, &rec.Project, &rec.Creator, &rec.Tag,
		&rec.FileFormat, &rec.DeviceDescription, &rec.Timestamp, &rec.OutputPath)
	return rec, err
}
