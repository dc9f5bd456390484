package normalizer

import (
	"math"
	"slices"

	"github.com/asaavedra/printscan/pkg/snmp"
)

// ByIndex re-indexa un walk de OID completo a índice de fila
func ByIndex(rows map[string]string) map[string]string {
	out := make(map[string]string, len(rows))
	for oid, value := range rows {
		if idx, ok := snmp.ExtractIndex(oid); ok {
			out[idx] = value
		}
	}
	return out
}

// StatusForPercent: <=5 empty, <=15 low, resto ok
func StatusForPercent(percent int) Status {
	switch {
	case percent <= 5:
		return StatusEmpty
	case percent <= 15:
		return StatusLow
	default:
		return StatusOK
	}
}

// SentinelStatus para niveles negativos: -3 (someRemaining) es OK, el
// resto UNKNOWN
func SentinelStatus(level int) Status {
	if level == -3 {
		return StatusSomeRemaining
	}
	return StatusUnknown
}

// Percent redondea current/capacity*100 (mitades hacia afuera)
func Percent(current, capacity int) int {
	return int(math.Round(float64(current) / float64(capacity) * 100))
}

// rowIndexes índices de la columna de niveles en orden de tabla
func (t Tables) rowIndexes() []string {
	idx := make([]string, 0, len(t.Levels))
	for k := range t.Levels {
		idx = append(idx, k)
	}
	slices.SortFunc(idx, snmp.CompareOIDs)
	return idx
}

type decodedRow struct {
	index       string
	level       *int
	capacity    *int
	class       *int
	typ         *int
	description string
}

func (t Tables) decode(index string) decodedRow {
	row := decodedRow{
		index:    index,
		level:    intValue(t.Levels, index),
		capacity: intValue(t.Max, index),
		class:    intValue(t.Classes, index),
		typ:      intValue(t.Types, index),
	}
	if raw, ok := t.Descriptions[index]; ok {
		row.description, _ = snmp.ExtractString(raw)
	}
	return row
}

func intValue(column map[string]string, index string) *int {
	raw, ok := column[index]
	if !ok {
		return nil
	}
	n, ok := snmp.ExtractInt(raw)
	if !ok {
		return nil
	}
	return &n
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeLevels decodifica en modo level_real. Un nivel ilegible cuenta
// como 0.
func NormalizeLevels(t Tables) []Consumable {
	consumables := make([]Consumable, 0, len(t.Levels))

	for _, index := range t.rowIndexes() {
		row := t.decode(index)
		current := valueOr(row.level, 0)
		capacity := valueOr(row.capacity, 0)
		typ := ResolveType(row.class, row.typ, row.description)

		c := Consumable{
			Type:        typ,
			Color:       optionalString(ResolveColor(typ, row.description)),
			Description: optionalString(row.description),
			Current:     current,
			RawClass:    row.class,
			RawType:     row.typ,
		}

		switch {
		case current < 0:
			c.Status = SentinelStatus(current)
		case capacity <= 0:
			c.Status = StatusUnknown
		default:
			percent := Percent(current, capacity)
			c.Capacity = &capacity
			c.Percent = &percent
			c.Status = StatusForPercent(percent)
		}

		consumables = append(consumables, c)
	}

	return consumables
}

// NormalizeStates decodifica en modo estado
func NormalizeStates(t Tables) []StateEntry {
	entries := make([]StateEntry, 0, len(t.Levels))

	for _, index := range t.rowIndexes() {
		row := t.decode(index)

		entries = append(entries, StateEntry{
			Type:           ResolveType(row.class, row.typ, row.description),
			State:          StateFromLevel(row.level, row.capacity),
			RawClass:       row.class,
			RawType:        row.typ,
			RawDescription: optionalString(row.description),
			RawLevel:       row.level,
			RawMax:         row.capacity,
			Index:          index,
		})
	}

	return entries
}

// StateFromLevel estado a partir de nivel y capacidad opcionales
func StateFromLevel(level, capacity *int) Status {
	if level == nil {
		return StatusUnknown
	}
	if *level < 0 {
		return SentinelStatus(*level)
	}
	if capacity != nil && *capacity > 0 {
		return StatusForPercent(Percent(*level, *capacity))
	}
	return StatusUnknown
}

func valueOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
