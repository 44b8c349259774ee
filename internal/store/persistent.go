package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joelkehle/hcp-insights/internal/claims"
)

type persistentState struct {
	Datasets map[string]Dataset      `json:"datasets"`
	Rows     map[string][]claims.Row `json:"rows"`
}

// PersistentStore is a MemoryStore that rewrites a JSON state file after
// every change. A change that cannot be written is undone in memory.
type PersistentStore struct {
	inner *MemoryStore
	path  string
	mu    sync.Mutex
}

func NewPersistentStore(path string, cfg Config) (*PersistentStore, error) {
	ps := &PersistentStore{inner: NewMemoryStore(cfg), path: path}
	if err := ps.load(); err != nil {
		return nil, fmt.Errorf("load state %s: %w", path, err)
	}
	return ps, nil
}

func (p *PersistentStore) load() error {
	blob, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var state persistentState
	if err := json.Unmarshal(blob, &state); err != nil {
		return err
	}
	p.inner.mu.Lock()
	defer p.inner.mu.Unlock()
	for id, ds := range state.Datasets {
		p.inner.datasets[id] = ds
		p.inner.rows[id] = state.Rows[id]
	}
	return nil
}

func (p *PersistentStore) persist() error {
	p.inner.mu.RLock()
	state := persistentState{
		Datasets: make(map[string]Dataset, len(p.inner.datasets)),
		Rows:     make(map[string][]claims.Row, len(p.inner.rows)),
	}
	for id, ds := range p.inner.datasets {
		state.Datasets[id] = ds
		state.Rows[id] = p.inner.rows[id]
	}
	blob, err := json.Marshal(state)
	p.inner.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}

func (p *PersistentStore) SaveDataset(ctx context.Context, name string, rows []claims.Row) (Dataset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ds, err := p.inner.SaveDataset(ctx, name, rows)
	if err != nil {
		return Dataset{}, err
	}
	if err := p.persist(); err != nil {
		p.inner.remove(ds.ID)
		return Dataset{}, fmt.Errorf("persist state: %w", err)
	}
	return ds, nil
}

func (p *PersistentStore) ListDatasets(ctx context.Context) ([]Dataset, error) {
	return p.inner.ListDatasets(ctx)
}

func (p *PersistentStore) GetDataset(ctx context.Context, id string) (Dataset, error) {
	return p.inner.GetDataset(ctx, id)
}

func (p *PersistentStore) LoadRows(ctx context.Context, id string) ([]claims.Row, error) {
	return p.inner.LoadRows(ctx, id)
}

func (p *PersistentStore) DeleteDataset(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ds, rows, ok := p.inner.remove(id)
	if !ok {
		return ErrNotFound
	}
	if err := p.persist(); err != nil {
		p.inner.restore(ds, rows)
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

func (p *PersistentStore) Close() error { return nil }
