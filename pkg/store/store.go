// Package store persiste impresoras, su configuración SNMP y sus
// capacidades detectadas.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaavedra/printscan/pkg/profile"
)

var (
	// ErrNotFound el registro no existe
	ErrNotFound = errors.New("store: not found")
	// ErrConflict viola la unicidad de ip, mac_address o serial_number
	ErrConflict = errors.New("store: unique constraint violated")
	// ErrInvalidField nombre o tipo de campo no admitido por UpdateFields
	ErrInvalidField = errors.New("store: invalid field")
)

// DeviceStore registros de impresoras. ip es única; mac_address y
// serial_number lo son cuando no son NULL.
type DeviceStore interface {
	FindByID(ctx context.Context, id int64) (*Printer, error)
	FindByIP(ctx context.Context, ip string) (*Printer, error)
	// FindBySerial compara sin distinguir mayúsculas ni espacios externos
	FindBySerial(ctx context.Context, serial string) (*Printer, error)
	// List ordenado por id
	List(ctx context.Context) ([]*Printer, error)
	// Upsert inserta o reemplaza por ip. Conserva created_at y asigna p.ID.
	Upsert(ctx context.Context, p *Printer) error
	UpdateFields(ctx context.Context, id int64, fields Fields) error
	// MarkStale desactiva las impresoras sin chequeo desde cutoff (o creadas
	// antes de cutoff y nunca chequeadas). Devuelve cuántas cambiaron.
	MarkStale(ctx context.Context, cutoff time.Time) (int, error)
}

// ConfigStore una configuración SNMP por impresora
type ConfigStore interface {
	GetConfig(ctx context.Context, printerID int64) (*SnmpConfig, error)
	SaveConfig(ctx context.Context, cfg SnmpConfig) error
}

// CapabilityStore última detección de capacidades, reemplazada en cada sondeo
type CapabilityStore interface {
	GetCapability(ctx context.Context, printerID int64) (*profile.Capability, error)
	SaveCapability(ctx context.Context, printerID int64, c profile.Capability) error
}

// Store reúne los tres almacenes
type Store interface {
	DeviceStore
	ConfigStore
	CapabilityStore
	Close() error
}

// NormalizeSerial clave de comparación de números de serie
func NormalizeSerial(serial string) string {
	return strings.ToLower(strings.TrimSpace(serial))
}

// Nombres de columna aceptados por UpdateFields
const (
	FieldIP                = "ip"
	FieldHostname          = "hostname"
	FieldMAC               = "mac_address"
	FieldSerial            = "serial_number"
	FieldBrand             = "brand"
	FieldModel             = "model"
	FieldSysObjectID       = "sys_object_id"
	FieldProfile           = "monitoring_profile"
	FieldLocation          = "location"
	FieldNotes             = "notes"
	FieldIsActive          = "is_active"
	FieldLastCheckedAt     = "last_checked_at"
	FieldLastCheckDuration = "last_check_duration_ms"
	FieldAvgCheckDuration  = "avg_check_duration_ms"
)

// Fields actualización parcial columna -> valor. Las columnas de texto
// opcionales aceptan string ("" es NULL), *string o nil.
type Fields map[string]any

// normalize valida los campos y los lleva a su forma canónica: *string,
// string, bool, *time.Time (UTC) o *int64.
func (f Fields) normalize() (map[string]any, error) {
	out := make(map[string]any, len(f))

	for name, v := range f {
		var (
			value any
			err   error
		)

		switch name {
		case FieldIP:
			s, ok := v.(string)
			if !ok || strings.TrimSpace(s) == "" {
				err = fmt.Errorf("%w: ip must be a non-empty string", ErrInvalidField)
			}
			value = s
		case FieldHostname, FieldMAC, FieldSerial, FieldBrand, FieldModel,
			FieldSysObjectID, FieldLocation, FieldNotes:
			value, err = nullableString(name, v)
		case FieldProfile:
			value, err = profileValue(v)
		case FieldIsActive:
			b, ok := v.(bool)
			if !ok {
				err = fmt.Errorf("%w: is_active must be bool", ErrInvalidField)
			}
			value = b
		case FieldLastCheckedAt:
			value, err = nullableTime(v)
		case FieldLastCheckDuration, FieldAvgCheckDuration:
			value, err = nullableInt(name, v)
		default:
			err = fmt.Errorf("%w: unknown field %q", ErrInvalidField, name)
		}

		if err != nil {
			return nil, err
		}
		out[name] = value
	}

	return out, nil
}

func nullableString(name string, v any) (*string, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		if s == "" {
			return nil, nil
		}
		return &s, nil
	case *string:
		if s == nil || *s == "" {
			return nil, nil
		}
		return strPtr(*s), nil
	}
	return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidField, name)
}

func profileValue(v any) (string, error) {
	var p profile.MonitoringProfile

	switch s := v.(type) {
	case profile.MonitoringProfile:
		p = s
	case string:
		p = profile.MonitoringProfile(s)
	}

	if !p.Valid() {
		return "", fmt.Errorf("%w: monitoring_profile %v", ErrInvalidField, v)
	}
	return string(p), nil
}

func nullableTime(v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		u := t.UTC()
		return &u, nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		u := t.UTC()
		return &u, nil
	}
	return nil, fmt.Errorf("%w: last_checked_at must be a time", ErrInvalidField)
}

func nullableInt(name string, v any) (*int64, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case int:
		i := int64(n)
		return &i, nil
	case int64:
		return &n, nil
	case *int64:
		if n == nil {
			return nil, nil
		}
		i := *n
		return &i, nil
	}
	return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidField, name)
}

// apply copia valores ya normalizados sobre p
func (p *Printer) apply(values map[string]any) {
	for name, v := range values {
		switch name {
		case FieldIP:
			p.IP = v.(string)
		case FieldHostname:
			p.Hostname = v.(*string)
		case FieldMAC:
			p.MAC = v.(*string)
		case FieldSerial:
			p.Serial = v.(*string)
		case FieldBrand:
			p.Brand = v.(*string)
		case FieldModel:
			p.Model = v.(*string)
		case FieldSysObjectID:
			p.SysObjectID = v.(*string)
		case FieldProfile:
			p.MonitoringProfile = profile.MonitoringProfile(v.(string))
		case FieldLocation:
			p.Location = v.(*string)
		case FieldNotes:
			p.Notes = v.(*string)
		case FieldIsActive:
			p.IsActive = v.(bool)
		case FieldLastCheckedAt:
			p.LastCheckedAt = v.(*time.Time)
		case FieldLastCheckDuration:
			p.LastCheckDurationMs = v.(*int64)
		case FieldAvgCheckDuration:
			p.AvgCheckDurationMs = v.(*int64)
		}
	}
}
