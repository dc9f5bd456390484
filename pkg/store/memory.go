package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/asaavedra/printscan/pkg/profile"
)

// Memory implementa Store en memoria. Útil en pruebas y para escaneos
// puntuales desde la CLI.
type Memory struct {
	mu           sync.RWMutex
	nextID       int64
	printers     map[int64]*Printer
	configs      map[int64]SnmpConfig
	capabilities map[int64]profile.Capability
	now          func() time.Time
}

// NewMemory crea un almacén vacío
func NewMemory() *Memory {
	return &Memory{
		printers:     make(map[int64]*Printer),
		configs:      make(map[int64]SnmpConfig),
		capabilities: make(map[int64]profile.Capability),
		now:          time.Now,
	}
}

// SetClock reemplaza el reloj usado para created_at/updated_at
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) FindByID(_ context.Context, id int64) (*Printer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.printers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.clone(), nil
}

func (m *Memory) FindByIP(_ context.Context, ip string) (*Printer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.printers {
		if p.IP == ip {
			return p.clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) FindBySerial(_ context.Context, serial string) (*Printer, error) {
	key := NormalizeSerial(serial)
	if key == "" {
		return nil, ErrNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.sortedIDs() {
		p := m.printers[id]
		if p.Serial != nil && NormalizeSerial(*p.Serial) == key {
			return p.clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) List(_ context.Context) ([]*Printer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Printer, 0, len(m.printers))
	for _, id := range m.sortedIDs() {
		out = append(out, m.printers[id].clone())
	}
	return out, nil
}

func (m *Memory) sortedIDs() []int64 {
	ids := make([]int64, 0, len(m.printers))
	for id := range m.printers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// conflicts busca otra impresora que comparta ip, mac o serie con c
func (m *Memory) conflicts(c *Printer) bool {
	for id, p := range m.printers {
		if id == c.ID {
			continue
		}
		if p.IP == c.IP ||
			(c.MAC != nil && p.MAC != nil && *p.MAC == *c.MAC) ||
			(c.Serial != nil && p.Serial != nil && *p.Serial == *c.Serial) {
			return true
		}
	}
	return false
}

func (m *Memory) Upsert(_ context.Context, p *Printer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	row := p.clone()
	row.ID = 0
	row.CreatedAt = now

	for id, existing := range m.printers {
		if existing.IP == p.IP {
			row.ID = id
			row.CreatedAt = existing.CreatedAt
			break
		}
	}

	if row.ID == 0 {
		m.nextID++
		row.ID = m.nextID
	}
	if m.conflicts(row) {
		if _, exists := m.printers[row.ID]; !exists {
			m.nextID--
		}
		return ErrConflict
	}

	row.UpdatedAt = now
	m.printers[row.ID] = row

	p.ID = row.ID
	p.CreatedAt = row.CreatedAt
	p.UpdatedAt = row.UpdatedAt
	return nil
}

func (m *Memory) UpdateFields(_ context.Context, id int64, fields Fields) error {
	values, err := fields.normalize()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.printers[id]
	if !ok {
		return ErrNotFound
	}

	updated := current.clone()
	updated.apply(values)
	if m.conflicts(updated) {
		return ErrConflict
	}

	updated.UpdatedAt = m.now().UTC()
	m.printers[id] = updated
	return nil
}

func (m *Memory) MarkStale(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	for _, p := range m.printers {
		if !p.IsActive || !isStale(p, cutoff) {
			continue
		}
		p.IsActive = false
		p.UpdatedAt = m.now().UTC()
		changed++
	}
	return changed, nil
}

func isStale(p *Printer, cutoff time.Time) bool {
	if p.LastCheckedAt != nil {
		return p.LastCheckedAt.Before(cutoff)
	}
	return p.CreatedAt.Before(cutoff)
}

func (m *Memory) GetConfig(_ context.Context, printerID int64) (*SnmpConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[printerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &cfg, nil
}

func (m *Memory) SaveConfig(_ context.Context, cfg SnmpConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.printers[cfg.PrinterID]; !ok {
		return ErrNotFound
	}

	now := m.now().UTC()
	cfg.CreatedAt = now
	if prev, ok := m.configs[cfg.PrinterID]; ok {
		cfg.CreatedAt = prev.CreatedAt
	}
	cfg.UpdatedAt = now

	m.configs[cfg.PrinterID] = cfg
	return nil
}

func (m *Memory) GetCapability(_ context.Context, printerID int64) (*profile.Capability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.capabilities[printerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) SaveCapability(_ context.Context, printerID int64, c profile.Capability) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.printers[printerID]; !ok {
		return ErrNotFound
	}
	m.capabilities[printerID] = c
	return nil
}

func (m *Memory) Close() error {
	return nil
}

var _ Store = (*Memory)(nil)
