package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaavedra/printscan/pkg/detector"
	"github.com/asaavedra/printscan/pkg/oids"
	"github.com/asaavedra/printscan/pkg/snmp"
	"github.com/rs/zerolog"
)

// ErrSnmpUnreachable el agente no respondió sysDescr
var ErrSnmpUnreachable = errors.New("snmp unreachable")

// Prober determina qué telemetría de consumibles expone un equipo
type Prober struct {
	client snmp.Querier
	opts   []snmp.Option
	now    func() time.Time
	log    zerolog.Logger
}

// NewProber crea un prober con timeout de 1s y 1 reintento por consulta
func NewProber(client snmp.Querier, log zerolog.Logger) *Prober {
	return &Prober{
		client: client,
		opts:   []snmp.Option{snmp.WithTimeout(time.Second), snmp.WithRetries(1)},
		now:    time.Now,
		log:    log,
	}
}

// Probe sondea el equipo. Sin sysDescr no hay resultado parcial.
func (p *Prober) Probe(ctx context.Context, t snmp.Target) (Result, error) {
	rawDescr, ok := p.client.Get(ctx, t, oids.SysDescr, p.opts...)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrSnmpUnreachable, t.IP)
	}

	result := Result{}
	result.SysDescr, _ = snmp.ExtractText(rawDescr)

	if raw, ok := p.client.Get(ctx, t, oids.SysObjectID, p.opts...); ok {
		result.SysObjectID, _ = snmp.ExtractOID(raw)
	}

	rows, ok := p.client.Walk(ctx, t, oids.SuppliesMaxCapacity, p.opts...)
	supportsPrinterMib := ok && len(rows) > 0

	raw, ok := p.client.Get(ctx, t, oids.SuppliesFirstLevel, p.opts...)
	sentinel := ClassifySentinel(raw, ok)

	result.Capability = Capability{
		CanReadLevels:      sentinel == SentinelLevel,
		CanReadStates:      supportsPrinterMib,
		SupportsPrinterMib: supportsPrinterMib,
		DetectedAt:         p.now(),
	}
	result.Profile = Decide(result.Capability)
	result.Brand, result.Model = detector.DetectBrandAndModel(result.SysDescr, result.SysObjectID)

	p.log.Debug().
		Str("ip", t.IP).
		Str("sentinel", string(sentinel)).
		Bool("printer_mib", supportsPrinterMib).
		Str("profile", string(result.Profile)).
		Msg("Capability probe finished")

	return result, nil
}

// ClassifySentinel: -2/-3 son estados, cualquier otro INTEGER es nivel
func ClassifySentinel(raw string, ok bool) Sentinel {
	if !ok || !strings.HasPrefix(strings.TrimSpace(raw), "INTEGER:") {
		return SentinelUnknown
	}

	n, ok := snmp.ExtractInt(raw)
	if !ok {
		return SentinelUnknown
	}

	if n == -2 || n == -3 {
		return SentinelState
	}

	return SentinelLevel
}

// Decide elige el perfil: niveles, luego estados, luego desconocido
func Decide(c Capability) MonitoringProfile {
	switch {
	case c.CanReadLevels:
		return LevelReal
	case c.CanReadStates:
		return Estado
	default:
		return Desconocido
	}
}

// ProfileForBrand perfil por defecto según la marca detectada
func ProfileForBrand(brand string) MonitoringProfile {
	switch strings.ToLower(brand) {
	case "hp", "samsung":
		return LevelReal
	case "brother", "lexmark":
		return Estado
	default:
		return Desconocido
	}
}
