package profile

import "time"

// MonitoringProfile estrategia de telemetría de una impresora
type MonitoringProfile string

const (
	// LevelReal niveles numéricos de consumibles
	LevelReal MonitoringProfile = "level_real"
	// Estado solo estados discretos (centinelas)
	Estado MonitoringProfile = "estado"
	// Desconocido sin telemetría de consumibles utilizable
	Desconocido MonitoringProfile = "desconocido"
)

// Valid indica si p es uno de los perfiles conocidos
func (p MonitoringProfile) Valid() bool {
	switch p {
	case LevelReal, Estado, Desconocido:
		return true
	}
	return false
}

// Capability se recalcula completa en cada sondeo
type Capability struct {
	CanReadLevels      bool      `json:"can_read_levels"`
	CanReadStates      bool      `json:"can_read_states"`
	SupportsPrinterMib bool      `json:"supports_printer_mib"`
	DetectedAt         time.Time `json:"detected_at"`
}

// Sentinel resultado de leer la primera fila del nivel de suministros
type Sentinel string

const (
	SentinelLevel   Sentinel = "level"
	SentinelState   Sentinel = "state"
	SentinelUnknown Sentinel = "unknown"
)

// Result del sondeo de capacidades
type Result struct {
	Capability  Capability        `json:"capabilities"`
	Profile     MonitoringProfile `json:"monitoring_profile"`
	Brand       string            `json:"brand"`
	Model       string            `json:"model,omitempty"`
	SysDescr    string            `json:"sys_descr"`
	SysObjectID string            `json:"sys_object_id,omitempty"`
}
