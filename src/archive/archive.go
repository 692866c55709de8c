// Package archive keeps named snapshots of record sets in a local SQLite file so a
// previously imported table can be restored without its CSV.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/QianXiquq/RankingAnalyzer/src/records"
)

// ErrSnapshotNotFound is returned when no snapshot matches an id or name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// DefaultPath is the archive file used when none is configured.
const DefaultPath = "rankings.db"

// Snapshot describes one archived record set.
type Snapshot struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Records   int
	HasRank   bool
}

// Archive is a SQLite-backed snapshot store.
type Archive struct {
	db   *sql.DB
	path string
}

// Open opens (creating when needed) the archive at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Archive, error) {
	if path == "" {
		path = DefaultPath
	}
	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &records.IOError{Op: "open archive", Path: path, Err: err}
	}
	// one connection keeps the pragmas and avoids SQLITE_BUSY between our own statements
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &records.IOError{Op: "open archive", Path: path, Err: err}
	}
	if _, err := db.ExecContext(ctx, schemaSQLite); err != nil {
		db.Close()
		return nil, &records.IOError{Op: "init archive", Path: path, Err: err}
	}
	records.Debugf("archive open: %s", path)
	return &Archive{db: db, path: path}, nil
}

// Close releases the database.
func (a *Archive) Close() error { return a.db.Close() }

// Path is the archive file.
func (a *Archive) Path() string { return a.path }

// SaveSnapshot stores ds under name. Empty record sets are rejected with ErrEmptyData.
func (a *Archive) SaveSnapshot(ctx context.Context, name string, ds records.Dataset) (Snapshot, error) {
	if ds.Empty() {
		return Snapshot{}, &records.EmptyDataError{Op: "archive"}
	}
	snap := Snapshot{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Records:   ds.Len(),
		HasRank:   ds.HasRank,
	}
	if snap.Name == "" {
		snap.Name = snap.CreatedAt.Format("20060102_150405")
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshots (id,name,created_at,has_rank,records) VALUES (?,?,?,?,?)`,
		snap.ID, snap.Name, snap.CreatedAt.UnixNano(), boolInt(snap.HasRank), snap.Records); err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshot_records (snapshot_id,seq,src_row,exam,subject,score,total_rank) VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return Snapshot{}, err
	}
	defer stmt.Close()
	for i, r := range ds.Records {
		if _, err := stmt.ExecContext(ctx, snap.ID, i, r.Row, r.Exam.Label(), r.Subject, nullable(r.Score), nullable(r.TotalRank)); err != nil {
			return Snapshot{}, fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, err
	}
	records.Infof("archived %d records as %q (%s)", snap.Records, snap.Name, snap.ID)
	return snap, nil
}

// LoadSnapshot restores the snapshot whose id equals key or, failing that, the newest
// snapshot named key.
func (a *Archive) LoadSnapshot(ctx context.Context, key string) (records.Dataset, Snapshot, error) {
	snap, err := a.find(ctx, key)
	if err != nil {
		return records.Dataset{}, Snapshot{}, err
	}
	rows, err := a.db.QueryContext(ctx, `SELECT src_row,exam,subject,score,total_rank FROM snapshot_records WHERE snapshot_id=? ORDER BY seq`, snap.ID)
	if err != nil {
		return records.Dataset{}, Snapshot{}, err
	}
	defer rows.Close()
	ds := records.Dataset{HasRank: snap.HasRank}
	for rows.Next() {
		var (
			r           records.ExamRecord
			exam        string
			score, rank sql.NullFloat64
		)
		if err := rows.Scan(&r.Row, &exam, &r.Subject, &score, &rank); err != nil {
			return records.Dataset{}, Snapshot{}, err
		}
		r.Exam = records.ParseExam(exam)
		r.Score = fromNullable(score)
		r.TotalRank = fromNullable(rank)
		ds.Records = append(ds.Records, r)
	}
	if err := rows.Err(); err != nil {
		return records.Dataset{}, Snapshot{}, err
	}
	return ds, snap, nil
}

// List returns all snapshots, newest first.
func (a *Archive) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id,name,created_at,has_rank,records FROM snapshots ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a snapshot and its records.
func (a *Archive) Delete(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return nil
}

func (a *Archive) find(ctx context.Context, key string) (Snapshot, error) {
	row := a.db.QueryRowContext(ctx, `SELECT id,name,created_at,has_rank,records FROM snapshots
		WHERE id=? OR name=? ORDER BY (id=?) DESC, created_at DESC LIMIT 1`, key, key, key)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
	}
	return s, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (Snapshot, error) {
	var (
		s       Snapshot
		created int64
		hasRank int
	)
	if err := sc.Scan(&s.ID, &s.Name, &created, &hasRank, &s.Records); err != nil {
		return Snapshot{}, err
	}
	s.CreatedAt = time.Unix(0, created).UTC()
	s.HasRank = hasRank != 0
	return s, nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS snapshots (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  has_rank INTEGER NOT NULL DEFAULT 0,
  records INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS snapshots_name ON snapshots(name);

CREATE TABLE IF NOT EXISTS snapshot_records (
  snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  src_row INTEGER NOT NULL,
  exam TEXT NOT NULL,
  subject TEXT NOT NULL,
  score REAL,
  total_rank REAL,
  PRIMARY KEY (snapshot_id, seq)
);
`
