package main

import (
	"context"
	"fmt"
	"time"

	"github.com/asaavedra/printscan/pkg/api"
	"github.com/asaavedra/printscan/pkg/kv"
	"github.com/asaavedra/printscan/pkg/limiter"
	"github.com/asaavedra/printscan/pkg/logger"
	"github.com/asaavedra/printscan/pkg/printers"
	"github.com/asaavedra/printscan/pkg/scanner"
	"github.com/asaavedra/printscan/pkg/sink"
	"github.com/asaavedra/printscan/pkg/snmp"
	"github.com/asaavedra/printscan/pkg/store"
	"github.com/asaavedra/printscan/pkg/tasks"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// app componentes del agente armados desde Config
type app struct {
	cfg Config
	log zerolog.Logger

	client   snmp.Querier
	store    store.Store
	scans    kv.Store
	guards   kv.Store
	nc       *nats.Conn
	runner   *tasks.Runner
	progress sink.ProgressSink
	printers *printers.Service
	scanner  *scanner.Scanner
	resolver *scanner.Resolver
}

func newApp(ctx context.Context, cfg Config) (*app, error) {
	a := &app{cfg: cfg, log: logger.WithComponent("agent")}

	a.client = newQuerier(cfg)

	st, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = st

	if err := a.openKV(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.runner = tasks.NewRunner(ctx, cfg.Workers.Count, logger.WithComponent("tasks")).
		WithMaxAttempts(cfg.Workers.MaxAttempts)
	a.progress = sink.NewKVSink(a.scans)

	pinger := scanner.NewICMPPinger(time.Duration(cfg.Scan.PingTimeoutMs)*time.Millisecond, logger.WithComponent("ping"))
	a.scanner = scanner.NewScanner(a.client, a.progress, a.runner, pinger, logger.WithComponent("scanner"))
	a.resolver = scanner.NewResolver(a.client, a.store, logger.WithComponent("resolver"))

	guard := limiter.NewSubnetGuard(a.guards, logger.WithComponent("limiter"))
	a.printers = printers.NewService(a.store, a.client, guard, logger.WithComponent("printers"))

	return a, nil
}

func newQuerier(cfg Config) snmp.Querier {
	snmpCfg := snmp.Config{
		Port:    cfg.SNMP.Port,
		Timeout: cfg.SNMPTimeout(),
		Retries: cfg.SNMP.Retries,
	}

	if cfg.SNMP.Backend == "netsnmp" {
		return snmp.NewNetSNMP(snmpCfg, nil, logger.WithComponent("netsnmp"))
	}
	return snmp.NewClient(snmpCfg, logger.WithComponent("snmp"))
}

func newStore(cfg Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.Path, logger.WithComponent("store"))
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// openKV abre los buckets de snapshots y de contadores por subred
func (a *app) openKV(ctx context.Context) error {
	switch a.cfg.KV.Driver {
	case "memory", "":
		a.scans = kv.NewMemory()
		a.guards = kv.NewMemory()
		return nil
	case "nats":
	default:
		return fmt.Errorf("unknown kv driver %q", a.cfg.KV.Driver)
	}

	nc, err := nats.Connect(a.cfg.KV.NatsURL, nats.Name("printscan-agent"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.nc = nc

	scans, err := kv.NewNatsStoreFromConn(ctx, nc, a.cfg.KV.ScanBucket, sink.SnapshotTTL)
	if err != nil {
		return err
	}
	a.scans = scans

	guards, err := kv.NewNatsStoreFromConn(ctx, nc, a.cfg.KV.GuardBucket, limiter.DefaultCounterTTL)
	if err != nil {
		return err
	}
	a.guards = guards

	a.log.Info().Str("url", a.cfg.KV.NatsURL).Msg("Connected to NATS KV")
	return nil
}

func (a *app) apiServer() *api.Server {
	return api.NewServer(api.Deps{
		Printers: a.printers,
		Devices:  a.store,
		Scanner:  a.scanner,
		Resolver: a.resolver,
		Progress: a.progress,
	}, logger.WithComponent("api"))
}

// Close espera las tareas pendientes y libera conexiones
func (a *app) Close() {
	if a.runner != nil {
		a.runner.Wait()
	}

	for _, s := range []kv.Store{a.scans, a.guards} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close kv store")
		}
	}
	if a.nc != nil {
		a.nc.Close()
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close store")
		}
	}
}
