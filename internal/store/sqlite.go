package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/hcp-insights/internal/claims"
)

// SQLiteStore persists datasets and their rows in a single SQLite file.
// Rows are stored as JSON objects in upload order.
type SQLiteStore struct {
	db  *sqlx.DB
	cfg Config
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS datasets (
	dataset_id  TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	row_count   INTEGER NOT NULL DEFAULT 0,
	columns     TEXT NOT NULL DEFAULT '[]',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dataset_rows (
	dataset_id TEXT NOT NULL,
	position   INTEGER NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (dataset_id, position)
);
`

// timeLayout is fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type datasetRecord struct {
	ID        string `db:"dataset_id"`
	Name      string `db:"name"`
	RowCount  int    `db:"row_count"`
	Columns   string `db:"columns"`
	CreatedAt string `db:"created_at"`
}

func (r datasetRecord) toDataset() Dataset {
	ds := Dataset{ID: r.ID, Name: r.Name, RowCount: r.RowCount}
	_ = json.Unmarshal([]byte(r.Columns), &ds.Columns)
	if ds.Columns == nil {
		ds.Columns = []string{}
	}
	ds.CreatedAt, _ = time.Parse(timeLayout, r.CreatedAt)
	return ds
}

func NewSQLiteStore(dbPath string, cfg Config) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, cfg: cfg}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveDataset(ctx context.Context, name string, rows []claims.Row) (Dataset, error) {
	now := s.cfg.now()
	ds := Dataset{
		ID:        s.cfg.newID(),
		Name:      datasetName(name, now),
		RowCount:  len(rows),
		Columns:   columnsOf(rows),
		CreatedAt: now,
	}
	colsJSON, err := json.Marshal(ds.Columns)
	if err != nil {
		return Dataset{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Dataset{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO datasets (dataset_id, name, row_count, columns, created_at)
		VALUES (:dataset_id, :name, :row_count, :columns, :created_at)`,
		datasetRecord{
			ID:        ds.ID,
			Name:      ds.Name,
			RowCount:  ds.RowCount,
			Columns:   string(colsJSON),
			CreatedAt: ds.CreatedAt.Format(timeLayout),
		}); err != nil {
		return Dataset{}, fmt.Errorf("insert dataset: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, "INSERT INTO dataset_rows (dataset_id, position, data) VALUES (?, ?, ?)")
	if err != nil {
		return Dataset{}, fmt.Errorf("prepare rows: %w", err)
	}
	defer stmt.Close()
	for i, r := range rows {
		blob, err := json.Marshal(r)
		if err != nil {
			return Dataset{}, fmt.Errorf("encode row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, ds.ID, i, string(blob)); err != nil {
			return Dataset{}, fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Dataset{}, fmt.Errorf("commit: %w", err)
	}
	return ds, nil
}

func (s *SQLiteStore) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var recs []datasetRecord
	if err := s.db.SelectContext(ctx, &recs,
		"SELECT dataset_id, name, row_count, columns, created_at FROM datasets ORDER BY created_at DESC, dataset_id"); err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	out := make([]Dataset, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDataset())
	}
	return out, nil
}

func (s *SQLiteStore) GetDataset(ctx context.Context, id string) (Dataset, error) {
	var rec datasetRecord
	err := s.db.GetContext(ctx, &rec,
		"SELECT dataset_id, name, row_count, columns, created_at FROM datasets WHERE dataset_id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Dataset{}, ErrNotFound
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("get dataset: %w", err)
	}
	return rec.toDataset(), nil
}

func (s *SQLiteStore) LoadRows(ctx context.Context, id string) ([]claims.Row, error) {
	if _, err := s.GetDataset(ctx, id); err != nil {
		return nil, err
	}
	var blobs []string
	if err := s.db.SelectContext(ctx, &blobs,
		"SELECT data FROM dataset_rows WHERE dataset_id = ? ORDER BY position", id); err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	rows := make([]claims.Row, 0, len(blobs))
	for i, b := range blobs {
		var r claims.Row
		if err := json.Unmarshal([]byte(b), &r); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", i, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (s *SQLiteStore) DeleteDataset(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, "DELETE FROM datasets WHERE dataset_id = ?", id)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM dataset_rows WHERE dataset_id = ?", id); err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}
	return tx.Commit()
}
