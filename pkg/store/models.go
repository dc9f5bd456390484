package store

import (
	"time"

	"github.com/asaavedra/printscan/pkg/profile"
	"github.com/asaavedra/printscan/pkg/snmp"
)

// Printer registro persistido de una impresora. Los punteros nil son
// columnas NULL.
type Printer struct {
	ID                  int64                     `json:"id"`
	IP                  string                    `json:"ip"`
	Hostname            *string                   `json:"hostname"`
	MAC                 *string                   `json:"mac_address"`
	Serial              *string                   `json:"serial_number"`
	Brand               *string                   `json:"brand"`
	Model               *string                   `json:"model"`
	SysObjectID         *string                   `json:"sys_object_id"`
	MonitoringProfile   profile.MonitoringProfile `json:"monitoring_profile"`
	Location            *string                   `json:"location"`
	Notes               *string                   `json:"notes"`
	IsActive            bool                      `json:"is_active"`
	LastCheckedAt       *time.Time                `json:"last_checked_at"`
	LastCheckDurationMs *int64                    `json:"last_check_duration_ms"`
	AvgCheckDurationMs  *int64                    `json:"avg_check_duration_ms"`
	CreatedAt           time.Time                 `json:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at"`
}

// NewPrinter registro nuevo: activo y sin perfil
func NewPrinter(ip string) *Printer {
	return &Printer{
		IP:                ip,
		MonitoringProfile: profile.Desconocido,
		IsActive:          true,
	}
}

// MissingIdentity indica si falta MAC, serie o sysObjectID
func (p *Printer) MissingIdentity() bool {
	return p.MAC == nil || p.Serial == nil || p.SysObjectID == nil
}

func (p *Printer) clone() *Printer {
	c := *p
	return &c
}

// SnmpConfig credenciales SNMP de una impresora. Los campos v3 se guardan
// pero no se usan.
type SnmpConfig struct {
	PrinterID    int64     `json:"printer_id"`
	Version      string    `json:"version"`
	Community    string    `json:"community"`
	Username     *string   `json:"username,omitempty"`
	AuthProtocol *string   `json:"auth_protocol,omitempty"`
	AuthPassword *string   `json:"-"`
	PrivProtocol *string   `json:"priv_protocol,omitempty"`
	PrivPassword *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultSnmpConfig v2c con community public
func DefaultSnmpConfig(printerID int64) SnmpConfig {
	return SnmpConfig{PrinterID: printerID, Version: snmp.Version2c, Community: "public"}
}

// Target arma el destino SNMP para ip
func (c SnmpConfig) Target(ip string) snmp.Target {
	return snmp.Target{IP: ip, Community: c.Community, Version: c.Version}
}

func strPtr(s string) *string {
	return &s
}

// Text devuelve "" para nil
func Text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
