package normalizer

// SupplyType tipo normalizado de consumible
type SupplyType string

const (
	BlackToner     SupplyType = "black_toner"
	CyanToner      SupplyType = "cyan_toner"
	MagentaToner   SupplyType = "magenta_toner"
	YellowToner    SupplyType = "yellow_toner"
	Toner          SupplyType = "toner"
	Ink            SupplyType = "ink"
	Drum           SupplyType = "drum"
	Waste          SupplyType = "waste"
	Fuser          SupplyType = "fuser"
	Developer      SupplyType = "developer"
	FuserOil       SupplyType = "fuser_oil"
	Wax            SupplyType = "wax"
	Maintenance    SupplyType = "maintenance"
	TransferRoller SupplyType = "transfer_roller"
	RetardRoller   SupplyType = "retard_roller"
	Roller         SupplyType = "roller"
	Unknown        SupplyType = "unknown"
)

// Status estado de un consumible. OK en mayúsculas es el centinela
// "someRemaining" (-3), distinto de ok por porcentaje.
type Status string

const (
	StatusOK            Status = "ok"
	StatusLow           Status = "low"
	StatusEmpty         Status = "empty"
	StatusUnknown       Status = "UNKNOWN"
	StatusSomeRemaining Status = "OK"
)

// Consumable entrada del modo por niveles (level_real)
type Consumable struct {
	Type        SupplyType `json:"type"`
	Color       *string    `json:"color"`
	Description *string    `json:"description"`
	Current     int        `json:"current"`
	Capacity    *int       `json:"capacity"`
	Percent     *int       `json:"percent"`
	Status      Status     `json:"status"`
	RawClass    *int       `json:"raw_class"`
	RawType     *int       `json:"raw_type"`
}

// StateEntry entrada del modo por estados (estado), con los valores crudos
// para diagnóstico
type StateEntry struct {
	Type           SupplyType `json:"type"`
	State          Status     `json:"state"`
	RawClass       *int       `json:"raw_class"`
	RawType        *int       `json:"raw_type"`
	RawDescription *string    `json:"raw_description"`
	RawLevel       *int       `json:"raw_level"`
	RawMax         *int       `json:"raw_max"`
	Index          string     `json:"index"`
}

// Tables columnas de prtMarkerSuppliesTable ya indexadas por fila ("1.1")
type Tables struct {
	Levels       map[string]string
	Max          map[string]string
	Classes      map[string]string
	Types        map[string]string
	Descriptions map[string]string
}
