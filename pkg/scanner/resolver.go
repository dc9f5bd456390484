package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/asaavedra/printscan/pkg/oids"
	"github.com/asaavedra/printscan/pkg/snmp"
	"github.com/asaavedra/printscan/pkg/store"
	"github.com/rs/zerolog"
)

// ResolveRequest busca por número de serie impresoras que cambiaron de IP
type ResolveRequest struct {
	Subnet string
	Options
	// PrinterID limita la búsqueda a una impresora
	PrinterID *int64
}

// Relocation cambio de IP aplicado
type Relocation struct {
	PrinterID int64  `json:"printer_id"`
	OldIP     string `json:"old_ip"`
	NewIP     string `json:"new_ip"`
}

// ResolveResult resumen de ResolveBySerial
type ResolveResult struct {
	Subnet     string       `json:"subnet"`
	Scanned    int          `json:"scanned"`
	Matched    int          `json:"matched"`
	Updated    []Relocation `json:"updated"`
	TotalHosts int          `json:"total_hosts"`
}

// Resolver relaciona números de serie con IPs de una subred
type Resolver struct {
	client  snmp.Querier
	devices store.DeviceStore
	log     zerolog.Logger
}

// NewResolver crea el resolver
func NewResolver(client snmp.Querier, devices store.DeviceStore, log zerolog.Logger) *Resolver {
	return &Resolver{client: client, devices: devices, log: log}
}

// serialMap número de serie normalizado -> impresora
func (r *Resolver) serialMap(ctx context.Context, printerID *int64) (map[string]*store.Printer, error) {
	var printers []*store.Printer

	if printerID != nil {
		p, err := r.devices.FindByID(ctx, *printerID)
		if err != nil {
			return nil, fmt.Errorf("printer %d: %w", *printerID, err)
		}
		printers = []*store.Printer{p}
	} else {
		all, err := r.devices.List(ctx)
		if err != nil {
			return nil, err
		}
		printers = all
	}

	bySerial := make(map[string]*store.Printer, len(printers))
	for _, p := range printers {
		if key := store.NormalizeSerial(store.Text(p.Serial)); key != "" {
			bySerial[key] = p
		}
	}
	return bySerial, nil
}

// ResolveBySerial recorre la subred y mueve a la IP encontrada cada
// impresora cuyo número de serie coincide. Los errores de validación se
// devuelven antes de consultar ningún host.
func (r *Resolver) ResolveBySerial(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	opts := req.Options.withDefaults(DefaultMaxHosts)

	rng, err := ParseCIDR(req.Subnet)
	if err != nil {
		return ResolveResult{}, err
	}
	if err := rng.CheckLimit(opts.MaxHosts); err != nil {
		return ResolveResult{}, err
	}

	bySerial, err := r.serialMap(ctx, req.PrinterID)
	if err != nil {
		return ResolveResult{}, err
	}

	result := ResolveResult{
		Subnet:     req.Subnet,
		Updated:    []Relocation{},
		TotalHosts: rng.Count(),
	}

	snmpOpts := opts.snmpOptions()

	for ip := range rng.Hosts() {
		if ctx.Err() != nil {
			return result, ErrScanCancelled
		}
		result.Scanned++

		t := snmp.Target{IP: ip, Community: opts.Community, Version: opts.Version}
		if _, ok := r.client.Get(ctx, t, oids.SysDescr, snmpOpts...); !ok {
			continue
		}

		raw, ok := r.client.Get(ctx, t, oids.SerialNumber, snmpOpts...)
		if !ok {
			continue
		}
		serial, ok := snmp.ExtractText(raw)
		if !ok {
			continue
		}

		p, ok := bySerial[store.NormalizeSerial(serial)]
		if !ok {
			continue
		}
		result.Matched++

		if p.IP == ip && p.IsActive {
			continue
		}

		err := r.devices.UpdateFields(ctx, p.ID, store.Fields{
			store.FieldIP:       ip,
			store.FieldIsActive: true,
		})
		if errors.Is(err, store.ErrConflict) {
			r.log.Warn().Int64("printer_id", p.ID).Str("ip", ip).Msg("IP already assigned to another printer")
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to relocate printer %d: %w", p.ID, err)
		}

		r.log.Info().
			Int64("printer_id", p.ID).
			Str("old_ip", p.IP).
			Str("new_ip", ip).
			Msg("Printer relocated by serial number")

		result.Updated = append(result.Updated, Relocation{PrinterID: p.ID, OldIP: p.IP, NewIP: ip})
		p.IP = ip
		p.IsActive = true
	}

	return result, nil
}
