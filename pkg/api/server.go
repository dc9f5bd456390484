// Package api expone las operaciones de impresoras y escaneo por HTTP
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/asaavedra/printscan/pkg/printers"
	"github.com/asaavedra/printscan/pkg/scanner"
	"github.com/asaavedra/printscan/pkg/sink"
	"github.com/asaavedra/printscan/pkg/store"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 5 * time.Minute
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Deps colaboradores del servidor
type Deps struct {
	Printers *printers.Service
	Devices  store.DeviceStore
	Scanner  *scanner.Scanner
	Resolver *scanner.Resolver
	Progress sink.ProgressSink
}

// Server router HTTP de la API v1
type Server struct {
	deps   Deps
	router *mux.Router
	log    zerolog.Logger
}

// NewServer crea el servidor y registra las rutas
func NewServer(deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/printers", s.listPrinters).Methods(http.MethodGet)
	v1.HandleFunc("/printers", s.registerPrinter).Methods(http.MethodPost)
	v1.HandleFunc("/printers/scan", s.submitScan).Methods(http.MethodPost)
	v1.HandleFunc("/printers/scan/sync", s.scanSync).Methods(http.MethodPost)
	v1.HandleFunc("/printers/scan/{scanId}", s.scanStatus).Methods(http.MethodGet)
	v1.HandleFunc("/printers/resolve-ip", s.resolveIP).Methods(http.MethodPost)
	v1.HandleFunc("/printers/{id:[0-9]+}", s.showPrinter).Methods(http.MethodGet)
	v1.HandleFunc("/printers/{id:[0-9]+}/snmp-config", s.saveConfig).Methods(http.MethodPost)
	v1.HandleFunc("/printers/{id:[0-9]+}/snmp/discover", s.discover).Methods(http.MethodPost)
	v1.HandleFunc("/printers/{id:[0-9]+}/snmp/consumables", s.consumables).Methods(http.MethodGet)
	v1.HandleFunc("/snmp/reachable", s.reachable).Methods(http.MethodGet)
}

// Handler devuelve el router
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe atiende en addr hasta que ctx se cancela
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// writeJSON serializa data con el código indicado
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// errorResponse cuerpo de los errores
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Status: "error", Message: message})
}
