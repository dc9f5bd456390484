package sink

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ScanStatus ciclo de vida de un escaneo: queued -> running -> done|failed
type ScanStatus string

const (
	StatusQueued  ScanStatus = "queued"
	StatusRunning ScanStatus = "running"
	StatusDone    ScanStatus = "done"
	StatusFailed  ScanStatus = "failed"
)

// Terminal indica si el estado ya no cambia
func (s ScanStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Retención de snapshots, independiente del estado final
const SnapshotTTL = 6 * time.Hour

// ErrSnapshotFinal el snapshot ya está en done/failed
var ErrSnapshotFinal = errors.New("scan snapshot is final")

// Detection impresora encontrada durante el escaneo
type Detection struct {
	IP          string  `json:"ip"`
	SysDescr    string  `json:"sys_descr"`
	SysObjectID *string `json:"sys_object_id"`
	VendorGuess *string `json:"vendor_guess"`
}

// Snapshot estado publicado de un escaneo
type Snapshot struct {
	Status     ScanStatus  `json:"status"`
	Subnet     string      `json:"subnet,omitempty"`
	Scanned    int         `json:"scanned"`
	Total      *int        `json:"total"`
	Detected   []Detection `json:"detected"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Fields actualización parcial: clave JSON -> valor. Gana la última
// escritura por campo.
type Fields map[string]any

// ProgressSink destino de los snapshots de escaneo
type ProgressSink interface {
	Put(ctx context.Context, scanID string, snapshot Snapshot) error
	// Get devuelve nil si el snapshot no existe o expiró
	Get(ctx context.Context, scanID string) (*Snapshot, error)
	Merge(ctx context.Context, scanID string, fields Fields) error
}

// SinkError es un error personalizado que incluye contexto
type SinkError struct {
	Sink      string // nombre del sink (kv, memory, etc)
	Operation string // operación que falló (put, get, merge)
	Key       string
	Err       error // error subyacente
}

// Error implementa la interfaz error
func (se *SinkError) Error() string {
	return fmt.Sprintf("[%s] %s failed for %s: %v", se.Sink, se.Operation, se.Key, se.Err)
}

// Unwrap expone el error subyacente
func (se *SinkError) Unwrap() error {
	return se.Err
}

// IsRetryable indica si el error es recuperable (reintentos)
func (se *SinkError) IsRetryable() bool {
	return se.Err != nil && !errors.Is(se.Err, ErrSnapshotFinal)
}
