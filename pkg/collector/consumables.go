package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/asaavedra/printscan/pkg/normalizer"
	"github.com/asaavedra/printscan/pkg/oids"
	"github.com/asaavedra/printscan/pkg/profile"
	"github.com/asaavedra/printscan/pkg/snmp"
	"github.com/rs/zerolog"
)

// ErrNoSupplyLevels el agente no respondió la columna de niveles
var ErrNoSupplyLevels = errors.New("supply level table unavailable")

// Result consumibles de una impresora según su perfil de monitoreo
type Result struct {
	Mode   profile.MonitoringProfile
	Levels []normalizer.Consumable
	States []normalizer.StateEntry
}

// MarshalJSON serializa como {"mode": ..., "data": [...]}
func (r Result) MarshalJSON() ([]byte, error) {
	var data any = []struct{}{}

	switch r.Mode {
	case profile.LevelReal:
		if r.Levels != nil {
			data = r.Levels
		}
	case profile.Estado:
		if r.States != nil {
			data = r.States
		}
	}

	return json.Marshal(struct {
		Mode profile.MonitoringProfile `json:"mode"`
		Data any                       `json:"data"`
	}{r.Mode, data})
}

// Len cantidad de entradas del modo activo
func (r Result) Len() int {
	if r.Mode == profile.Estado {
		return len(r.States)
	}
	return len(r.Levels)
}

// Collector lee prtMarkerSuppliesTable y la normaliza
type Collector struct {
	client snmp.Querier
	opts   []snmp.Option
	log    zerolog.Logger
}

// NewCollector crea un colector; opts aplica a cada walk
func NewCollector(client snmp.Querier, log zerolog.Logger, opts ...snmp.Option) *Collector {
	return &Collector{client: client, opts: opts, log: log}
}

// FetchTables recorre las cinco columnas y las re-indexa por fila. Solo la
// columna de niveles es obligatoria.
func (c *Collector) FetchTables(ctx context.Context, t snmp.Target) (normalizer.Tables, error) {
	columns := make(map[string]map[string]string, 5)

	for _, column := range oids.SupplyColumns() {
		rows, ok := c.client.Walk(ctx, t, column, c.opts...)
		if !ok {
			if column == oids.SuppliesLevel {
				return normalizer.Tables{}, fmt.Errorf("%w: %s", ErrNoSupplyLevels, t.IP)
			}
			c.log.Debug().Str("ip", t.IP).Str("oid", column).Msg("Supply column unavailable")
			rows = nil
		}
		columns[column] = normalizer.ByIndex(rows)
	}

	return normalizer.Tables{
		Levels:       columns[oids.SuppliesLevel],
		Max:          columns[oids.SuppliesMaxCapacity],
		Classes:      columns[oids.SuppliesClass],
		Types:        columns[oids.SuppliesType],
		Descriptions: columns[oids.SuppliesDescription],
	}, nil
}

// Collect decodifica según mode. Con un perfil sin telemetría no consulta
// al agente.
func (c *Collector) Collect(ctx context.Context, t snmp.Target, mode profile.MonitoringProfile) (Result, error) {
	if mode != profile.LevelReal && mode != profile.Estado {
		return Result{Mode: profile.Desconocido}, nil
	}

	tables, err := c.FetchTables(ctx, t)
	if err != nil {
		return Result{}, err
	}

	result := Result{Mode: mode}
	if mode == profile.LevelReal {
		result.Levels = normalizer.NormalizeLevels(tables)
	} else {
		result.States = normalizer.NormalizeStates(tables)
	}

	c.log.Debug().
		Str("ip", t.IP).
		Str("mode", string(mode)).
		Int("entries", result.Len()).
		Msg("Consumables collected")

	return result, nil
}
