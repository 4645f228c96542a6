package store

import (
	"context"
	"fmt"
	"time"

	"github.com/andresmejia3/harris/internal/harris"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Store manages the PostgreSQL connection holding detection history.
type Store struct {
	conn *pgx.Conn
}

// Detection is one stored run joined with its image.
type Detection struct {
	ID          uuid.UUID
	ImageID     string
	Path        string
	Width       int
	Height      int
	KernelSize  int
	K           float64
	Divisor     float64
	Formula     string
	MaxResponse float64
	CornerCount int
	CreatedAt   time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS images (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			width INT NOT NULL,
			height INT NOT NULL,
			indexed_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS detections (
			id UUID PRIMARY KEY,
			image_id TEXT NOT NULL REFERENCES images(id) ON DELETE CASCADE,
			kernel_size INT NOT NULL,
			k DOUBLE PRECISION NOT NULL,
			divisor DOUBLE PRECISION NOT NULL,
			formula TEXT NOT NULL,
			max_response DOUBLE PRECISION NOT NULL,
			corner_count INT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS corners (
			detection_id UUID NOT NULL REFERENCES detections(id) ON DELETE CASCADE,
			x INT NOT NULL,
			y INT NOT NULL,
			score DOUBLE PRECISION NOT NULL
		);
		CREATE INDEX IF NOT EXISTS detections_image_id_idx ON detections (image_id);
		CREATE INDEX IF NOT EXISTS corners_detection_id_idx ON corners (detection_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// EnsureImage registers the image. If it exists, it refreshes path and timestamp.
func (s *Store) EnsureImage(ctx context.Context, imageID, path string, width, height int) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO images (id, path, width, height, indexed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET indexed_at = NOW(), path = EXCLUDED.path
	`, imageID, path, width, height)
	return err
}

// InsertDetection stores a run and every corner it flagged in one transaction.
func (s *Store) InsertDetection(ctx context.Context, imageID string, cfg harris.Config, res *harris.Result) (uuid.UUID, error) {
	id := uuid.New()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO detections (id, image_id, kernel_size, k, divisor, formula, max_response, corner_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, pgUUID(id), imageID, cfg.Size.Dim(), cfg.K, cfg.ThresholdDivisor, cfg.Formula.String(), res.Max, res.Count)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert detection: %w", err)
	}

	corners := res.CornerList()
	if len(corners) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"corners"},
			[]string{"detection_id", "x", "y", "score"},
			pgx.CopyFromSlice(len(corners), func(i int) ([]any, error) {
				c := corners[i]
				return []any{pgUUID(id), int32(c.X), int32(c.Y), c.Score}, nil
			}),
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to copy corners: %w", err)
		}
	}

	return id, tx.Commit(ctx)
}

// ListDetections returns the most recent runs first. limit <= 0 means all.
func (s *Store) ListDetections(ctx context.Context, limit int) ([]Detection, error) {
	query := `
		SELECT d.id, d.image_id, i.path, i.width, i.height, d.kernel_size, d.k, d.divisor,
		       d.formula, d.max_response, d.corner_count, d.created_at
		FROM detections d
		JOIN images i ON i.id = d.image_id
		ORDER BY d.created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Detection
	for rows.Next() {
		var d Detection
		var id pgtype.UUID
		if err := rows.Scan(&id, &d.ImageID, &d.Path, &d.Width, &d.Height, &d.KernelSize, &d.K,
			&d.Divisor, &d.Formula, &d.MaxResponse, &d.CornerCount, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.ID = uuid.UUID(id.Bytes)
		out = append(out, d)
	}
	return out, rows.Err()
}

// DetectionCorners returns the corners of one run in row-major order.
func (s *Store) DetectionCorners(ctx context.Context, id uuid.UUID) ([]harris.Corner, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT x, y, score FROM corners WHERE detection_id = $1 ORDER BY y, x`, pgUUID(id))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (harris.Corner, error) {
		var c harris.Corner
		err := row.Scan(&c.X, &c.Y, &c.Score)
		return c, err
	})
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS corners CASCADE;
		DROP TABLE IF EXISTS detections CASCADE;
		DROP TABLE IF EXISTS images CASCADE;
	`)
	return err
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
