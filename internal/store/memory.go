package store

import (
	"context"
	"sort"
	"sync"

	"github.com/joelkehle/hcp-insights/internal/claims"
)

// MemoryStore keeps datasets in process memory.
type MemoryStore struct {
	cfg Config

	mu       sync.RWMutex
	datasets map[string]Dataset
	rows     map[string][]claims.Row
}

func NewMemoryStore(cfg Config) *MemoryStore {
	return &MemoryStore{
		cfg:      cfg,
		datasets: map[string]Dataset{},
		rows:     map[string][]claims.Row{},
	}
}

func (m *MemoryStore) SaveDataset(_ context.Context, name string, rows []claims.Row) (Dataset, error) {
	now := m.cfg.now()
	ds := Dataset{
		ID:        m.cfg.newID(),
		Name:      datasetName(name, now),
		RowCount:  len(rows),
		Columns:   columnsOf(rows),
		CreatedAt: now,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[ds.ID] = ds
	m.rows[ds.ID] = cloneRows(rows)
	return ds, nil
}

func (m *MemoryStore) ListDatasets(_ context.Context) ([]Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Dataset, 0, len(m.datasets))
	for _, ds := range m.datasets {
		out = append(out, ds)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetDataset(_ context.Context, id string) (Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.datasets[id]
	if !ok {
		return Dataset{}, ErrNotFound
	}
	return ds, nil
}

func (m *MemoryStore) LoadRows(_ context.Context, id string) ([]claims.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRows(rows), nil
}

func (m *MemoryStore) DeleteDataset(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.datasets[id]; !ok {
		return ErrNotFound
	}
	delete(m.datasets, id)
	delete(m.rows, id)
	return nil
}

// remove drops id and hands back what was stored so a caller can undo it.
func (m *MemoryStore) remove(id string) (Dataset, []claims.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.datasets[id]
	if !ok {
		return Dataset{}, nil, false
	}
	rows := m.rows[id]
	delete(m.datasets, id)
	delete(m.rows, id)
	return ds, rows, true
}

func (m *MemoryStore) restore(ds Dataset, rows []claims.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[ds.ID] = ds
	m.rows[ds.ID] = rows
}

func (m *MemoryStore) Close() error { return nil }
