// Package printers reúne las operaciones sobre impresoras registradas:
// descubrimiento SNMP, alta, revalidación periódica y lectura de consumibles.
package printers

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/asaavedra/printscan/pkg/collector"
	"github.com/asaavedra/printscan/pkg/detector"
	"github.com/asaavedra/printscan/pkg/limiter"
	"github.com/asaavedra/printscan/pkg/oids"
	"github.com/asaavedra/printscan/pkg/profile"
	"github.com/asaavedra/printscan/pkg/snmp"
	"github.com/asaavedra/printscan/pkg/store"
	"github.com/rs/zerolog"
)

// Mensajes del resultado de Discover
const (
	MsgNoConfig    = "SNMP config not defined"
	MsgUnreachable = "SNMP not reachable"
)

// ErrNoConfig la impresora no tiene configuración SNMP
var ErrNoConfig = errors.New("SNMP config not defined for this printer")

// ValidationError entrada rechazada antes de tocar la red o el store
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Service operaciones sobre impresoras registradas
type Service struct {
	store     store.Store
	client    snmp.Querier
	prober    *profile.Prober
	collector *collector.Collector
	guard     *limiter.SubnetGuard

	discoverOpts   []snmp.Option
	refreshWorkers int
	now            func() time.Time
	log            zerolog.Logger
}

// NewService crea el servicio. guard puede ser nil: la revalidación corre
// entonces sin límite por subred.
func NewService(st store.Store, client snmp.Querier, guard *limiter.SubnetGuard, log zerolog.Logger) *Service {
	return &Service{
		store:          st,
		client:         client,
		prober:         profile.NewProber(client, log),
		collector:      collector.NewCollector(client, log),
		guard:          guard,
		discoverOpts:   []snmp.Option{snmp.WithTimeout(2 * time.Second), snmp.WithRetries(1)},
		refreshWorkers: 4,
		now:            time.Now,
		log:            log,
	}
}

// WithRefreshWorkers fija el paralelismo de RefreshIdentities
func (s *Service) WithRefreshWorkers(n int) *Service {
	if n > 0 {
		s.refreshWorkers = n
	}
	return s
}

// DiscoverResult lo que Discover dejó guardado
type DiscoverResult struct {
	Reachable         bool                      `json:"reachable"`
	Message           string                    `json:"message,omitempty"`
	Brand             string                    `json:"brand,omitempty"`
	Model             *string                   `json:"model,omitempty"`
	SysObjectID       *string                   `json:"sys_object_id,omitempty"`
	MAC               *string                   `json:"mac_address,omitempty"`
	Serial            *string                   `json:"serial_number,omitempty"`
	MonitoringProfile profile.MonitoringProfile `json:"monitoring_profile,omitempty"`
	IsActive          bool                      `json:"is_active"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Discover consulta identidad y marca de p y las persiste. Un agente que no
// responde deja la impresora inactiva; solo los fallos del store son error.
// p se recarga con los valores guardados.
func (s *Service) Discover(ctx context.Context, p *store.Printer) (DiscoverResult, error) {
	cfg, err := s.store.GetConfig(ctx, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		return DiscoverResult{Message: MsgNoConfig}, nil
	}
	if err != nil {
		return DiscoverResult{}, fmt.Errorf("failed to load snmp config for printer %d: %w", p.ID, err)
	}

	log := s.log.With().Int64("printer_id", p.ID).Str("ip", p.IP).Logger()
	t := cfg.Target(p.IP)

	raw, ok := s.client.Get(ctx, t, oids.SysDescr, s.discoverOpts...)
	if !ok {
		log.Warn().Msg("Printer did not answer sysDescr, marking inactive")
		if err := s.update(ctx, p, store.Fields{store.FieldIsActive: false}); err != nil {
			return DiscoverResult{}, err
		}
		return DiscoverResult{Message: MsgUnreachable}, nil
	}
	sysDescr, _ := snmp.ExtractText(raw)

	var sysObjectID string
	if raw, ok := s.client.Get(ctx, t, oids.SysObjectID, s.discoverOpts...); ok {
		sysObjectID, _ = snmp.ExtractOID(raw)
	}

	identity := detector.ResolveIdentity(ctx, s.client, t, s.discoverOpts...)
	brand, model := detector.DetectBrandAndModel(sysDescr, sysObjectID)

	monitoring := profile.ProfileForBrand(brand)
	if monitoring == profile.Desconocido && p.MonitoringProfile.Valid() && p.MonitoringProfile != profile.Desconocido {
		monitoring = p.MonitoringProfile
	}

	result := DiscoverResult{
		Reachable:         true,
		Brand:             brand,
		Model:             optional(model),
		SysObjectID:       optional(sysObjectID),
		MAC:               optional(identity.MAC),
		Serial:            optional(identity.Serial),
		MonitoringProfile: monitoring,
		IsActive:          true,
	}

	err = s.update(ctx, p, store.Fields{
		store.FieldBrand:       brand,
		store.FieldModel:       result.Model,
		store.FieldSysObjectID: result.SysObjectID,
		store.FieldMAC:         result.MAC,
		store.FieldSerial:      result.Serial,
		store.FieldProfile:     monitoring,
		store.FieldIsActive:    true,
	})
	if err != nil {
		return DiscoverResult{}, err
	}

	log.Info().
		Str("brand", brand).
		Str("serial", identity.Serial).
		Str("mac", identity.MAC).
		Str("profile", string(monitoring)).
		Msg("Printer discovered")

	return result, nil
}

// update aplica fields y recarga p
func (s *Service) update(ctx context.Context, p *store.Printer, fields store.Fields) error {
	if err := s.store.UpdateFields(ctx, p.ID, fields); err != nil {
		return fmt.Errorf("failed to update printer %d: %w", p.ID, err)
	}

	fresh, err := s.store.FindByID(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to reload printer %d: %w", p.ID, err)
	}
	*p = *fresh
	return nil
}

// RegisterRequest alta o actualización de una impresora por IP
type RegisterRequest struct {
	IP        string  `json:"ip"`
	Community string  `json:"community,omitempty"`
	Version   string  `json:"snmp_version,omitempty"`
	Location  *string `json:"location,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// Registration resultado del alta
type Registration struct {
	Printer    *store.Printer      `json:"printer"`
	Capability *profile.Capability `json:"capabilities"`
	Warning    *string             `json:"warning"`
	Reachable  bool                `json:"reachable"`
}

func validateIP(ip string) error {
	if ip == "" {
		return &ValidationError{Field: "ip", Reason: "required"}
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return &ValidationError{Field: "ip", Reason: "must be an IPv4 address"}
	}
	return nil
}

// validateVersion acepta "" (por defecto 2c) y las versiones de allowed
func validateVersion(version string, allowed ...string) error {
	if version == "" {
		return nil
	}
	for _, v := range allowed {
		if version == v {
			return nil
		}
	}
	return &ValidationError{Field: "version", Reason: fmt.Sprintf("must be one of %v", allowed)}
}

// Register guarda la impresora y su configuración, sondea capacidades y
// ejecuta Discover. Si el sondeo falla la impresora queda inactiva y el
// resultado lleva un aviso.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Registration, error) {
	if err := validateIP(req.IP); err != nil {
		return Registration{}, err
	}
	if err := validateVersion(req.Version, snmp.Version1, snmp.Version2c); err != nil {
		return Registration{}, err
	}

	p, err := s.store.FindByIP(ctx, req.IP)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p = store.NewPrinter(req.IP)
	case err != nil:
		return Registration{}, fmt.Errorf("failed to look up %s: %w", req.IP, err)
	}
	p.Location = req.Location
	p.Notes = req.Notes

	if err := s.store.Upsert(ctx, p); err != nil {
		return Registration{}, fmt.Errorf("failed to save printer %s: %w", req.IP, err)
	}

	cfg, err := s.ConfigureSNMP(ctx, p.ID, req.Version, req.Community)
	if err != nil {
		return Registration{}, err
	}

	log := s.log.With().Int64("printer_id", p.ID).Str("ip", p.IP).Logger()
	reg := Registration{Printer: p}

	probe, err := s.prober.Probe(ctx, cfg.Target(p.IP))
	if err != nil {
		log.Warn().Err(err).Msg("SNMP probe failed")
		warning := "SNMP probe failed: " + err.Error()
		reg.Warning = &warning
		if err := s.update(ctx, p, store.Fields{store.FieldIsActive: false}); err != nil {
			return Registration{}, err
		}
		return s.withCapability(ctx, reg)
	}

	if err := s.store.SaveCapability(ctx, p.ID, probe.Capability); err != nil {
		return Registration{}, fmt.Errorf("failed to save capabilities of printer %d: %w", p.ID, err)
	}
	if err := s.update(ctx, p, store.Fields{store.FieldProfile: probe.Profile}); err != nil {
		return Registration{}, err
	}

	discovered, err := s.Discover(ctx, p)
	if err != nil {
		return Registration{}, err
	}
	reg.Reachable = discovered.Reachable
	if !discovered.Reachable {
		warning := discovered.Message
		reg.Warning = &warning
	}

	log.Info().Bool("reachable", reg.Reachable).Str("profile", string(p.MonitoringProfile)).Msg("Printer registered")

	return s.withCapability(ctx, reg)
}

func (s *Service) withCapability(ctx context.Context, reg Registration) (Registration, error) {
	c, err := s.store.GetCapability(ctx, reg.Printer.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return Registration{}, fmt.Errorf("failed to load capabilities of printer %d: %w", reg.Printer.ID, err)
	default:
		reg.Capability = c
	}
	return reg, nil
}

// ConfigureSNMP crea o reemplaza la configuración SNMP (por defecto 2c/public)
func (s *Service) ConfigureSNMP(ctx context.Context, printerID int64, version, community string) (*store.SnmpConfig, error) {
	if err := validateVersion(version, snmp.Version1, snmp.Version2c, snmp.Version3); err != nil {
		return nil, err
	}

	cfg := store.DefaultSnmpConfig(printerID)
	if version != "" {
		cfg.Version = version
	}
	if community != "" {
		cfg.Community = community
	}

	if err := s.store.SaveConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save snmp config of printer %d: %w", printerID, err)
	}
	return s.store.GetConfig(ctx, printerID)
}

// ReachableResult respuesta de Reachable
type ReachableResult struct {
	IP        string  `json:"ip"`
	Reachable bool    `json:"reachable"`
	SysDescr  *string `json:"sys_descr"`
}

// Reachable comprueba que el agente responda sysDescr
func (s *Service) Reachable(ctx context.Context, ip, community, version string) (ReachableResult, error) {
	if err := validateIP(ip); err != nil {
		return ReachableResult{}, err
	}

	t := store.DefaultSnmpConfig(0).Target(ip)
	if community != "" {
		t.Community = community
	}
	if version != "" {
		t.Version = version
	}

	result := ReachableResult{IP: ip}
	if raw, ok := s.client.Get(ctx, t, oids.SysDescr); ok {
		descr, _ := snmp.ExtractText(raw)
		result.Reachable = true
		result.SysDescr = &descr
	}
	return result, nil
}

// ConsumablesReport consumibles leídos de una impresora
type ConsumablesReport struct {
	PrinterID int64            `json:"printer_id"`
	Data      collector.Result `json:"data"`
}

// Consumables lee los suministros según el perfil de la impresora
func (s *Service) Consumables(ctx context.Context, printerID int64) (ConsumablesReport, error) {
	p, err := s.store.FindByID(ctx, printerID)
	if err != nil {
		return ConsumablesReport{}, fmt.Errorf("printer %d: %w", printerID, err)
	}

	cfg, err := s.store.GetConfig(ctx, printerID)
	if errors.Is(err, store.ErrNotFound) {
		return ConsumablesReport{}, ErrNoConfig
	}
	if err != nil {
		return ConsumablesReport{}, fmt.Errorf("failed to load snmp config for printer %d: %w", printerID, err)
	}

	result, err := s.collector.Collect(ctx, cfg.Target(p.IP), p.MonitoringProfile)
	if err != nil {
		return ConsumablesReport{}, err
	}

	return ConsumablesReport{PrinterID: printerID, Data: result}, nil
}
