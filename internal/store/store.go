package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/andresmejia3/rollcall/internal/ledger"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DB is the subset of pgx used by the store (satisfied by *pgx.Conn and pgxmock).
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store mirrors the known identities and the attendance ledger into PostgreSQL
// for reporting. The CSV ledger stays the source of truth.
type Store struct {
	db   DB
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{db: conn, conn: conn}, nil
}

// NewWithDB wraps an existing connection. The schema is assumed to exist.
func NewWithDB(db DB) *Store {
	return &Store{db: db}
}

// initSchema creates the mirror tables and the vector extension if they don't exist.
func initSchema(ctx context.Context, db DB) error {
	query := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS known_identities (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			embedding VECTOR(%d) NOT NULL,
			synced_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS attendance_events (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			UNIQUE (name, recorded_at)
		);
		CREATE INDEX IF NOT EXISTS attendance_events_name_idx ON attendance_events (name);
	`, types.DescriptorDim)
	_, err := db.Exec(ctx, query)
	return err
}

// Close terminates the database connection owned by the store.
func (s *Store) Close(ctx context.Context) {
	if s.conn != nil {
		s.conn.Close(ctx)
	}
}

func toVector(vec []float64) pgvector.Vector {
	floats := make([]float32, len(vec))
	for i, v := range vec {
		floats[i] = float32(v)
	}
	return pgvector.NewVector(floats)
}

func fromVector(v pgvector.Vector) []float64 {
	out := make([]float64, len(v.Slice()))
	for i, f := range v.Slice() {
		out[i] = float64(f)
	}
	return out
}

// UpsertIdentities writes every identity, replacing the embedding of names already present.
func (s *Store) UpsertIdentities(ctx context.Context, identities []types.Identity) error {
	for _, id := range identities {
		if len(id.Descriptor) != types.DescriptorDim {
			return fmt.Errorf("identity %s has %d dimensions, want %d", id.Name, len(id.Descriptor), types.DescriptorDim)
		}
	}
	if len(identities) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO known_identities (name, embedding, synced_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET embedding = EXCLUDED.embedding, synced_at = NOW()
	`
	for _, id := range identities {
		if _, err := tx.Exec(ctx, query, ledger.Canonical(id.Name), toVector(id.Descriptor)); err != nil {
			return fmt.Errorf("upsert identity %s: %w", id.Name, err)
		}
	}
	return tx.Commit(ctx)
}

// InsertAttendance copies ledger records into the mirror. Records already
// present are ignored, so syncing the same ledger twice is a no-op.
// It returns how many rows were new.
func (s *Store) InsertAttendance(ctx context.Context, records []ledger.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO attendance_events (name, recorded_at)
		VALUES ($1, $2)
		ON CONFLICT (name, recorded_at) DO NOTHING
	`
	var inserted int64
	for _, r := range records {
		tag, err := tx.Exec(ctx, query, ledger.Canonical(r.Name), r.Time)
		if err != nil {
			return 0, fmt.Errorf("insert attendance for %s: %w", r.Name, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, tx.Commit(ctx)
}

// AttendanceRow is one identity's aggregate in the mirror.
type AttendanceRow struct {
	Name  string
	Count int
	First time.Time
	Last  time.Time
}

// AttendanceSummary aggregates the mirrored events per identity, sorted by name.
func (s *Store) AttendanceSummary(ctx context.Context) ([]AttendanceRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT name, COUNT(*)::int, MIN(recorded_at), MAX(recorded_at)
		FROM attendance_events
		GROUP BY name
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttendanceRow
	for rows.Next() {
		var r AttendanceRow
		if err := rows.Scan(&r.Name, &r.Count, &r.First, &r.Last); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListIdentities returns the mirrored identities, sorted by name.
func (s *Store) ListIdentities(ctx context.Context) ([]types.Identity, error) {
	rows, err := s.db.Query(ctx, "SELECT name, embedding FROM known_identities ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Identity
	for rows.Next() {
		var name string
		var vec pgvector.Vector
		if err := rows.Scan(&name, &vec); err != nil {
			return nil, err
		}
		out = append(out, types.Identity{Name: name, Descriptor: fromVector(vec)})
	}
	return out, rows.Err()
}

// FindClosestIdentity returns the mirrored identity nearest to vec by Euclidean
// distance, or an empty name if none lies strictly within tolerance. The
// distance is +Inf when the mirror holds no identities.
func (s *Store) FindClosestIdentity(ctx context.Context, vec []float64, tolerance float64) (string, float64, error) {
	// <-> is the L2 distance operator in pgvector
	query := `SELECT name, embedding <-> $1 AS dist FROM known_identities ORDER BY dist ASC, id ASC LIMIT 1`

	var name string
	var dist float64
	err := s.db.QueryRow(ctx, query, toVector(vec)).Scan(&name, &dist)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", math.Inf(1), nil
	}
	if err != nil {
		return "", 0, err
	}
	if dist >= tolerance {
		return "", dist, nil
	}
	return name, dist, nil
}

// Reset drops the mirror tables. The next New recreates them.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		DROP TABLE IF EXISTS attendance_events CASCADE;
		DROP TABLE IF EXISTS known_identities CASCADE;
	`)
	return err
}
