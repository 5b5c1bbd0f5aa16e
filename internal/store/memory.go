package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps snapshots in process memory. Used for dry runs and tests.
type MemoryBackend struct {
	mu     sync.Mutex
	tables map[Entity][]Record
	fields map[Entity][]string

	// FailOn makes Save fail whenever it includes the given entity.
	FailOn map[Entity]error
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tables: make(map[Entity][]Record),
		fields: make(map[Entity][]string),
	}
}

func (m *MemoryBackend) Load(ctx context.Context, entity Entity) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[entity]
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, cloneRecord(r))
	}
	return out, nil
}

func (m *MemoryBackend) Save(ctx context.Context, snapshots ...Snapshot) error {
	if len(snapshots) == 0 {
		return ErrEmptySave
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, snap := range snapshots {
		if err, ok := m.FailOn[snap.Entity]; ok {
			return err
		}
	}

	for _, snap := range snapshots {
		rows := make([]Record, 0, len(snap.Records))
		for _, r := range snap.Records {
			rows = append(rows, cloneRecord(r))
		}
		m.tables[snap.Entity] = rows
		m.fields[snap.Entity] = append([]string(nil), snap.Fields...)
	}
	return nil
}

// Fields returns the field order last saved for entity.
func (m *MemoryBackend) Fields(entity Entity) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fields[entity]...)
}
