// Package store keeps uploaded claim batches so the dashboard can re-run
// aggregations without the caller re-sending the file.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joelkehle/hcp-insights/internal/claims"
)

var ErrNotFound = errors.New("dataset not found")

// Dataset describes one stored batch of claim rows.
type Dataset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RowCount  int       `json:"row_count"`
	Columns   []string  `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is implemented by SQLiteStore, MemoryStore and PersistentStore.
type Store interface {
	SaveDataset(ctx context.Context, name string, rows []claims.Row) (Dataset, error)
	ListDatasets(ctx context.Context) ([]Dataset, error)
	GetDataset(ctx context.Context, id string) (Dataset, error)
	LoadRows(ctx context.Context, id string) ([]claims.Row, error)
	DeleteDataset(ctx context.Context, id string) error
	Close() error
}

// Config carries store-independent settings.
type Config struct {
	// Clock defaults to time.Now.
	Clock func() time.Time
	// NewID defaults to a random UUID.
	NewID func() string
}

func columnsOf(rows []claims.Row) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func datasetName(name string, now time.Time) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return "claims-" + now.UTC().Format("20060102-150405")
}

func cloneRows(rows []claims.Row) []claims.Row {
	out := make([]claims.Row, len(rows))
	for i, r := range rows {
		c := make(claims.Row, len(r))
		for k, v := range r {
			c[k] = v
		}
		out[i] = c
	}
	return out
}

func (c Config) now() time.Time {
	if c.Clock != nil {
		return c.Clock().UTC()
	}
	return time.Now().UTC()
}

func (c Config) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}
