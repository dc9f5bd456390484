package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asaavedra/printscan/pkg/logger"
	"github.com/asaavedra/printscan/pkg/output"
	"github.com/asaavedra/printscan/pkg/printers"
	"github.com/asaavedra/printscan/pkg/scanner"
	"github.com/asaavedra/printscan/pkg/serializer"
)

const usage = `uso: agent <comando> [flags]

comandos:
  serve               API HTTP y worker de tareas
  scan                escanea un rango y opcionalmente escribe el reporte
  resolve-ip          reubica impresoras por número de serie
  register            registra una impresora por IP
  discover            refresca identidad y marca de una impresora
  consumables         lee los consumables de una impresora
  revalidate-queue    encola la revalidación de todas las impresoras
  mark-stale          desactiva impresoras sin chequeo reciente
  refresh-identities  refresca identidad de todas las impresoras
`

// command subcomando: registra sus flags y luego se ejecuta
type command struct {
	flags func(fs *flag.FlagSet) func(ctx context.Context, a *app) error
}

var commands = map[string]command{
	"serve":              {serveCommand},
	"scan":               {scanCommand},
	"resolve-ip":         {resolveCommand},
	"register":           {registerCommand},
	"discover":           {discoverCommand},
	"consumables":        {consumablesCommand},
	"revalidate-queue":   {revalidateCommand},
	"mark-stale":         {markStaleCommand},
	"refresh-identities": {refreshCommand},
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "comando desconocido %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Archivo de configuración")
	debug := fs.Bool("debug", false, "Logs de depuración (override de config)")
	run := cmd.flags(fs)
	_ = fs.Parse(os.Args[2:])

	cfg, err := LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No se pudo leer %s, usando valores por defecto: %v\n", *configFile, err)
		cfg = DefaultConfig()
	}
	if *debug {
		cfg.Logging.Debug = true
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize agent")
	}

	err = run(ctx, a)
	a.Close()
	if err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("Command failed")
	}
}

// printJSON escribe v en stdout
func printJSON(v any) error {
	data, err := serializer.NewIndentedSerializer().Serialize(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("se requiere -%s", name)
	}
	return nil
}

func serveCommand(fs *flag.FlagSet) func(context.Context, *app) error {
	listen := fs.String("listen", "", "Dirección HTTP (override de config)")

	return func(ctx context.Context, a *app) error {
		addr := a.cfg.HTTP.Listen
		if *listen != "" {
			addr = *listen
		}
		return a.apiServer().ListenAndServe(ctx, addr)
	}
}

func scanCommand(fs *flag.FlagSet) func(context.Context, *app) error {
	ipRange := fs.String("range", "", "Rango de IPs (ej: 192.168.1.0/24 o 192.168.1.1-254)")
	outputDir := fs.String("output", "", "Directorio donde escribir el reporte")
	community := fs.String("community", "", "Community SNMP (override de config)")
	maxHosts := fs.Int("max-hosts", 0, "Máximo de hosts (override de config)")
	usePing := fs.Bool("ping", false, "Descartar hosts que no responden ping")

	return func(ctx context.Context, a *app) error {
		if err := requireFlag("range", *ipRange); err != nil {
			return err
		}

		rng, err := scanner.Parse(*ipRange)
		if err != nil {
			return err
		}

		opts := scanner.Options{
			Community: a.cfg.SNMP.Community,
			Version:   a.cfg.SNMP.Version,
			MaxHosts:  a.cfg.Scan.MaxHosts,
			UsePing:   a.cfg.Scan.UsePing || *usePing,
		}
		if *community != "" {
			opts.Community = *community
		}
		if *maxHosts > 0 {
			opts.MaxHosts = *maxHosts
		}

		started := time.Now()
		result, err := a.scanner.ScanRange(ctx, rng, opts)
		if err != nil {
			return err
		}

		if *outputDir != "" {
			paths, err := output.NewJSONWriter(*outputDir).WriteScanResults(output.ScanReport{
				Range:     result.Subnet,
				Community: opts.Community,
				Started:   started,
				Finished:  time.Now(),
				Total:     result.TotalHosts,
				Scanned:   result.Scanned,
				Found:     result.Found,
			})
			if err != nil {
				return err
			}
			a.log.Info().Strs("files", paths).Msg("Scan report written")
		}

		return printJSON(result)
	}
}

func resolveCommand(fs *flag.FlagSet) func(context.Context, *app) error {
	subnet := fs.String("subnet", "", "Subred a recorrer (CIDR)")
	printerID := fs.Int64("printer-id", 0, "Limitar a una impresora")
	maxHosts := fs.Int("max-hosts", 0, "Máximo de hosts")

	return func(ctx context.Context, a *app) error {
		req := scanner.ResolveRequest{
			Subnet: *subnet,
			Options: scanner.Options{
				Community: a.cfg.SNMP.Community,
				Version:   a.cfg.SNMP.Version,
				MaxHosts:  *maxHosts,
			},
		}
		if *printerID > 0 {
			req.PrinterID = printerID
		}

		result, err := a.resolver.ResolveBySerial(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(result)
	}
}

func registerCommand(fs *flag.FlagSet) func(context.Context, *app) error {
	ip := fs.String("ip", "", "IP de la impresora")
	community := fs.String("community", "", "Community SNMP")
	version := fs.String("version", "", "Versión SNMP (1 o 2c)")
	location := fs.String("location", "", "Ubicación")
	notes := fs.String("notes", "", "Notas")

	return func(ctx context.Context, a *app) error {
		req := printers.RegisterRequest{IP: *ip, Community: *community, Version: *version}
		if *location != "" {
			req.Location = location
		}
		if *notes != "" {
			req.Notes = notes
		}

		reg, err := a.printers.Register(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(reg)
	}
}

func discoverCommand(fs *flag.FlagSet) func(context.Context, *app) error {
	id := fs.Int64("id", 0, "ID de la impresora")

	return func(ctx context.Context, a *app) error {
		p, err := a.store.FindByID(ctx, *id)
		if err != nil {
			return fmt.Errorf("printer %d: %w", *id, err)
		}

		result, err := a.printers.Discover(ctx, p)
		if err != nil {
			return err
		}
		return printJSON(result)
	}
}

func consumablesCommand(fs *flag.FlagSet) func(context.Context, *app) error {
	id := fs.Int64("id", 0, "ID de la impresora")

	return func(ctx context.Context, a *app) error {
		report, err := a.printers.Consumables(ctx, *id)
		if err != nil {
			return err
		}
		return printJSON(report)
	}
}

func revalidateCommand(fs *flag.FlagSet) func(context.Context, *app) error {
	subnet := fs.String("subnet", "", "Etiqueta de subred para el límite de concurrencia")
	maxConcurrent := fs.Int("max-concurrent", -1, "Máximo de revalidaciones simultáneas por subred")

	return func(ctx context.Context, a *app) error {
		label := a.cfg.Revalidation.Subnet
		if *subnet != "" {
			label = *subnet
		}
		limit := a.cfg.Revalidation.MaxConcurrent
		if *maxConcurrent >= 0 {
			limit = *maxConcurrent
		}

		n, err := a.printers.RevalidateAll(ctx, a.runner, label, limit)
		if err != nil {
			return err
		}

		a.runner.Wait()
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		a.log.Info().Int("printers", n).Msg("Revalidation finished")
		return nil
	}
}

func markStaleCommand(fs *flag.FlagSet) func(context.Context, *app) error {
	days := fs.Int("days", 0, "Días sin chequeo (override de config)")

	return func(ctx context.Context, a *app) error {
		threshold := a.cfg.StaleThreshold()
		if *days > 0 {
			threshold = time.Duration(*days) * 24 * time.Hour
		}

		changed, err := a.printers.MarkStale(ctx, time.Now(), threshold)
		if err != nil {
			return err
		}
		return printJSON(map[string]int{"changed": changed})
	}
}

func refreshCommand(fs *flag.FlagSet) func(context.Context, *app) error {
	onlyEmpty := fs.Bool("only-empty", false, "Solo impresoras sin MAC, número de serie o sysObjectID")

	return func(ctx context.Context, a *app) error {
		report, err := a.printers.RefreshIdentities(ctx, *onlyEmpty)
		if err != nil {
			return err
		}
		return printJSON(report)
	}
}
