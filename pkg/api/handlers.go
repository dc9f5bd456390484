package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/asaavedra/printscan/pkg/printers"
	"github.com/asaavedra/printscan/pkg/profile"
	"github.com/asaavedra/printscan/pkg/scanner"
	"github.com/asaavedra/printscan/pkg/snmp"
	"github.com/asaavedra/printscan/pkg/store"
	"github.com/gorilla/mux"
)

// Límites de max_hosts aceptados por la API
const (
	minMaxHosts = 1
	maxMaxHosts = 65536
)

// decodeBody admite cuerpo vacío
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// handleError traduce errores de dominio a códigos HTTP
func (s *Server) handleError(w http.ResponseWriter, err error) {
	var (
		scanErr    *scanner.ValidationError
		requestErr *printers.ValidationError
	)

	switch {
	case errors.As(err, &scanErr), errors.As(err, &requestErr):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, printers.ErrNoConfig):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "Printer not found")
	case errors.Is(err, store.ErrConflict):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).Msg("Request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) printerFromPath(w http.ResponseWriter, r *http.Request) (*store.Printer, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Printer not found")
		return nil, false
	}

	p, err := s.deps.Devices.FindByID(r.Context(), id)
	if err != nil {
		s.handleError(w, err)
		return nil, false
	}
	return p, true
}

func (s *Server) listPrinters(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Devices.List(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	if list == nil {
		list = []*store.Printer{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (s *Server) showPrinter(w http.ResponseWriter, r *http.Request) {
	p, ok := s.printerFromPath(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": p})
}

// registeredPrinter vista resumida de la impresora recién registrada
type registeredPrinter struct {
	ID                int64                     `json:"id"`
	IP                string                    `json:"ip"`
	MAC               *string                   `json:"mac_address"`
	Serial            *string                   `json:"serial_number"`
	Brand             *string                   `json:"brand"`
	Model             *string                   `json:"model"`
	MonitoringProfile profile.MonitoringProfile `json:"monitoring_profile"`
	Capabilities      *profile.Capability       `json:"capabilities"`
}

func (s *Server) registerPrinter(w http.ResponseWriter, r *http.Request) {
	var req printers.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reg, err := s.deps.Printers.Register(r.Context(), req)
	if err != nil {
		s.handleError(w, err)
		return
	}

	p := reg.Printer
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"status": "ok",
		"data": registeredPrinter{
			ID:                p.ID,
			IP:                p.IP,
			MAC:               p.MAC,
			Serial:            p.Serial,
			Brand:             p.Brand,
			Model:             p.Model,
			MonitoringProfile: p.MonitoringProfile,
			Capabilities:      reg.Capability,
		},
		"warning":   reg.Warning,
		"reachable": reg.Reachable,
	})
}

type configRequest struct {
	Version   string `json:"version"`
	Community string `json:"community"`
}

func (s *Server) saveConfig(w http.ResponseWriter, r *http.Request) {
	p, ok := s.printerFromPath(w, r)
	if !ok {
		return
	}

	var req configRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := s.deps.Printers.ConfigureSNMP(r.Context(), p.ID, req.Version, req.Community)
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "SNMP config saved",
		"data":    cfg,
	})
}

func (s *Server) discover(w http.ResponseWriter, r *http.Request) {
	p, ok := s.printerFromPath(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Printers.Discover(r.Context(), p)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": result})
}

func (s *Server) consumables(w http.ResponseWriter, r *http.Request) {
	p, ok := s.printerFromPath(w, r)
	if !ok {
		return
	}

	report, err := s.deps.Printers.Consumables(r.Context(), p.ID)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// scanRequest cuerpo común de scan, scan/sync y resolve-ip
type scanRequest struct {
	Subnet    string `json:"subnet"`
	Community string `json:"community"`
	Version   string `json:"version"`
	MaxHosts  *int   `json:"max_hosts"`
	UsePing   bool   `json:"use_ping"`
	PrinterID *int64 `json:"printer_id"`
}

func (req scanRequest) options(defaultMaxHosts int) (scanner.Options, error) {
	if req.Subnet == "" {
		return scanner.Options{}, &scanner.ValidationError{Input: req.Subnet, Reason: "subnet is required"}
	}

	switch req.Version {
	case "", snmp.Version1, snmp.Version2c:
	default:
		return scanner.Options{}, &scanner.ValidationError{Input: req.Version, Reason: "version must be 1 or 2c"}
	}

	opts := scanner.Options{
		Community: req.Community,
		Version:   req.Version,
		MaxHosts:  defaultMaxHosts,
		UsePing:   req.UsePing,
	}
	if req.MaxHosts != nil {
		if *req.MaxHosts < minMaxHosts || *req.MaxHosts > maxMaxHosts {
			return scanner.Options{}, &scanner.ValidationError{
				Input:  strconv.Itoa(*req.MaxHosts),
				Reason: fmt.Sprintf("max_hosts must be between %d and %d", minMaxHosts, maxMaxHosts),
			}
		}
		opts.MaxHosts = *req.MaxHosts
	}
	return opts, nil
}

func (s *Server) decodeScanRequest(w http.ResponseWriter, r *http.Request, defaultMaxHosts int) (scanRequest, scanner.Options, bool) {
	var req scanRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return req, scanner.Options{}, false
	}

	opts, err := req.options(defaultMaxHosts)
	if err != nil {
		s.handleError(w, err)
		return req, scanner.Options{}, false
	}
	return req, opts, true
}

func (s *Server) submitScan(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.decodeScanRequest(w, r, scanner.DefaultMaxHosts)
	if !ok {
		return
	}

	scanID, snapshot, err := s.deps.Scanner.Submit(r.Context(), scanner.Request{Subnet: req.Subnet, Options: opts})
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "ok",
		"data": map[string]any{
			"scan_id": scanID,
			"status":  snapshot.Status,
		},
	})
}

func (s *Server) scanStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.deps.Progress.Get(r.Context(), mux.Vars(r)["scanId"])
	if err != nil {
		s.handleError(w, err)
		return
	}
	if snapshot == nil {
		s.writeError(w, http.StatusNotFound, "Scan not found or expired")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "data": snapshot})
}

func (s *Server) scanSync(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.decodeScanRequest(w, r, scanner.DefaultSyncMaxHosts)
	if !ok {
		return
	}

	result, err := s.deps.Scanner.ScanSync(r.Context(), req.Subnet, opts)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "data": result})
}

func (s *Server) resolveIP(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.decodeScanRequest(w, r, scanner.DefaultSyncMaxHosts)
	if !ok {
		return
	}

	result, err := s.deps.Resolver.ResolveBySerial(r.Context(), scanner.ResolveRequest{
		Subnet:    req.Subnet,
		Options:   opts,
		PrinterID: req.PrinterID,
	})
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "data": result})
}

func (s *Server) reachable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	result, err := s.deps.Printers.Reachable(r.Context(), q.Get("ip"), q.Get("community"), q.Get("version"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
