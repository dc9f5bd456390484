package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asaavedra/printscan/pkg/detector"
	"github.com/asaavedra/printscan/pkg/oids"
	"github.com/asaavedra/printscan/pkg/sink"
	"github.com/asaavedra/printscan/pkg/snmp"
	"github.com/asaavedra/printscan/pkg/tasks"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxHosts techo de hosts de un escaneo asíncrono
	DefaultMaxHosts = 1024
	// DefaultSyncMaxHosts techo de hosts de ScanSync
	DefaultSyncMaxHosts = 256
	// ProgressEvery publica progreso cada tantos hosts procesados
	ProgressEvery = 10
	// DefaultHostTimeout timeout SNMP por consulta durante un escaneo
	DefaultHostTimeout = time.Second
)

// ErrScanCancelled el contexto se canceló entre dos hosts
var ErrScanCancelled = errors.New("scan cancelled")

// Options parámetros de un escaneo. Los ceros toman los valores por defecto.
type Options struct {
	Community string
	Version   string
	MaxHosts  int
	UsePing   bool
	Timeout   time.Duration
	Retries   int
}

func (o Options) withDefaults(maxHosts int) Options {
	if o.Community == "" {
		o.Community = "public"
	}
	if o.Version == "" {
		o.Version = snmp.Version2c
	}
	if o.MaxHosts <= 0 {
		o.MaxHosts = maxHosts
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultHostTimeout
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	return o
}

func (o Options) snmpOptions() []snmp.Option {
	return []snmp.Option{snmp.WithTimeout(o.Timeout), snmp.WithRetries(o.Retries)}
}

// Request escaneo asíncrono de una subred
type Request struct {
	Subnet string
	Options
}

// SyncResult resultado de ScanSync
type SyncResult struct {
	Subnet     string           `json:"subnet"`
	TotalHosts int              `json:"total_hosts"`
	Scanned    int              `json:"scanned"`
	Found      []sink.Detection `json:"found"`
}

// progressFunc recibe el avance tras cada host
type progressFunc func(scanned, total int, detected []sink.Detection)

// Scanner recorre subredes buscando impresoras
type Scanner struct {
	client snmp.Querier
	sink   sink.ProgressSink
	runner tasks.Submitter
	pinger Pinger
	now    func() time.Time
	newID  func() string
	log    zerolog.Logger
}

// NewScanner crea el orquestador. runner puede ser nil si solo se usa
// ScanSync o Run directamente.
func NewScanner(client snmp.Querier, progress sink.ProgressSink, runner tasks.Submitter, pinger Pinger, log zerolog.Logger) *Scanner {
	return &Scanner{
		client: client,
		sink:   progress,
		runner: runner,
		pinger: pinger,
		now:    time.Now,
		newID:  uuid.NewString,
		log:    log,
	}
}

// Submit valida la subred, publica el snapshot queued y encola el escaneo.
// Un ValidationError vuelve al llamador y no se crea nada.
func (s *Scanner) Submit(ctx context.Context, req Request) (string, *sink.Snapshot, error) {
	req.Options = req.Options.withDefaults(DefaultMaxHosts)

	rng, err := ParseCIDR(req.Subnet)
	if err != nil {
		return "", nil, err
	}
	if err := rng.CheckLimit(req.MaxHosts); err != nil {
		return "", nil, err
	}

	scanID := s.newID()
	snapshot := sink.Snapshot{
		Status:   sink.StatusQueued,
		Subnet:   req.Subnet,
		Detected: []sink.Detection{},
	}

	if err := s.sink.Put(ctx, scanID, snapshot); err != nil {
		return "", nil, fmt.Errorf("failed to create scan %s: %w", scanID, err)
	}

	if s.runner != nil {
		s.runner.Submit("scan "+scanID, func(ctx context.Context) error {
			return s.Run(ctx, scanID, req)
		})
	}

	s.log.Info().Str("scan_id", scanID).Str("subnet", req.Subnet).Msg("Scan queued")

	return scanID, &snapshot, nil
}

// Run ejecuta el escaneo scanID publicando en el sink. Cualquier error
// termina en un snapshot failed; solo los errores del propio sink se
// devuelven.
func (s *Scanner) Run(ctx context.Context, scanID string, req Request) error {
	req.Options = req.Options.withDefaults(DefaultMaxHosts)

	if err := s.sink.Merge(ctx, scanID, sink.Fields{
		"status":     sink.StatusRunning,
		"started_at": s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to start scan %s: %w", scanID, err)
	}

	log := s.log.With().Str("scan_id", scanID).Str("subnet", req.Subnet).Logger()
	log.Info().Msg("Scan started")

	scanned, total, detected, err := s.scanSubnet(ctx, req.Subnet, req.Options, func(scanned, total int, detected []sink.Detection) {
		if scanned%ProgressEvery != 0 {
			return
		}
		if err := s.sink.Merge(context.WithoutCancel(ctx), scanID, sink.Fields{
			"subnet":   req.Subnet,
			"scanned":  scanned,
			"total":    total,
			"detected": detected,
		}); err != nil {
			log.Error().Err(err).Int("scanned", scanned).Msg("Failed to publish scan progress")
		}
	})

	final := sink.Fields{"finished_at": s.now().UTC()}
	if err != nil {
		final["status"] = sink.StatusFailed
		final["error"] = err.Error()
		log.Warn().Err(err).Int("scanned", scanned).Msg("Scan failed")
	} else {
		final["status"] = sink.StatusDone
		final["subnet"] = req.Subnet
		final["scanned"] = scanned
		final["total"] = total
		final["detected"] = detected
		log.Info().Int("scanned", scanned).Int("detected", len(detected)).Msg("Scan finished")
	}

	if err := s.sink.Merge(context.WithoutCancel(ctx), scanID, final); err != nil {
		return fmt.Errorf("failed to finish scan %s: %w", scanID, err)
	}
	return nil
}

// ScanSync escanea sin publicar progreso (techo por defecto 256 hosts)
func (s *Scanner) ScanSync(ctx context.Context, subnet string, opts Options) (SyncResult, error) {
	rng, err := ParseCIDR(subnet)
	if err != nil {
		return SyncResult{}, err
	}
	return s.ScanRange(ctx, rng, opts)
}

// ScanRange igual que ScanSync sobre un rango ya parseado
func (s *Scanner) ScanRange(ctx context.Context, rng Range, opts Options) (SyncResult, error) {
	opts = opts.withDefaults(DefaultSyncMaxHosts)

	if err := rng.CheckLimit(opts.MaxHosts); err != nil {
		return SyncResult{}, err
	}

	scanned, detected, err := s.scanHosts(ctx, rng, opts, nil)
	if err != nil {
		return SyncResult{}, err
	}

	return SyncResult{
		Subnet:     rng.String(),
		TotalHosts: rng.Count(),
		Scanned:    scanned,
		Found:      detected,
	}, nil
}

func (s *Scanner) scanSubnet(ctx context.Context, subnet string, opts Options, progress progressFunc) (int, int, []sink.Detection, error) {
	rng, err := ParseCIDR(subnet)
	if err != nil {
		return 0, 0, nil, err
	}
	if err := rng.CheckLimit(opts.MaxHosts); err != nil {
		return 0, rng.Count(), nil, err
	}

	scanned, detected, err := s.scanHosts(ctx, rng, opts, progress)
	return scanned, rng.Count(), detected, err
}

// scanHosts recorre los hosts en orden ascendente
func (s *Scanner) scanHosts(ctx context.Context, rng Range, opts Options, progress progressFunc) (int, []sink.Detection, error) {
	total := rng.Count()
	detected := []sink.Detection{}
	scanned := 0

	for ip := range rng.Hosts() {
		if ctx.Err() != nil {
			return scanned, detected, ErrScanCancelled
		}

		scanned++
		if d, ok := s.probeHost(ctx, ip, opts); ok {
			detected = append(detected, d)
		}

		if progress != nil {
			progress(scanned, total, detected)
		}
	}

	return scanned, detected, nil
}

// probeHost clasifica un host; false si no responde o no es impresora
func (s *Scanner) probeHost(ctx context.Context, ip string, opts Options) (sink.Detection, bool) {
	if opts.UsePing && s.pinger != nil && !s.pinger.Reachable(ctx, ip) {
		s.log.Debug().Str("ip", ip).Msg("Host did not answer ping")
		return sink.Detection{}, false
	}

	t := snmp.Target{IP: ip, Community: opts.Community, Version: opts.Version}
	snmpOpts := opts.snmpOptions()

	raw, ok := s.client.Get(ctx, t, oids.SysDescr, snmpOpts...)
	if !ok {
		return sink.Detection{}, false
	}
	sysDescr, _ := snmp.ExtractText(raw)

	var sysObjectID string
	if raw, ok := s.client.Get(ctx, t, oids.SysObjectID, snmpOpts...); ok {
		sysObjectID, _ = snmp.ExtractOID(raw)
	}

	if !detector.LooksLikePrinter(ctx, s.client, t, sysDescr, snmpOpts...) {
		s.log.Debug().Str("ip", ip).Str("sys_descr", sysDescr).Msg("SNMP host is not a printer")
		return sink.Detection{}, false
	}

	d := sink.Detection{IP: ip, SysDescr: sysDescr}
	if sysObjectID != "" {
		d.SysObjectID = &sysObjectID
	}
	if vendor, ok := detector.GuessVendor(sysDescr); ok {
		d.VendorGuess = &vendor
	}

	s.log.Debug().Str("ip", ip).Str("sys_descr", sysDescr).Msg("Printer detected")
	return d, true
}
