package oids

// OIDs estándar (MIB-II, BRIDGE-MIB, Printer-MIB RFC 3805) usados por el
// descubrimiento. Son parte del contrato con los agentes SNMP reales.
const (
	// Identificación del sistema
	SysDescr    = "1.3.6.1.2.1.1.1.0"
	SysObjectID = "1.3.6.1.2.1.1.2.0"

	// Direcciones físicas (cadena de fallback para la MAC)
	IfPhysAddress     = "1.3.6.1.2.1.2.2.1.6"
	BridgeBaseAddress = "1.3.6.1.2.1.17.1.1.0"
	ArpPhysAddress    = "1.3.6.1.2.1.4.22.1.2"

	// prtGeneralSerialNumber
	SerialNumber = "1.3.6.1.2.1.43.5.1.1.17.1"

	// prtMarkerSuppliesTable, columnas
	SuppliesBase        = "1.3.6.1.2.1.43.11.1.1"
	SuppliesClass       = "1.3.6.1.2.1.43.11.1.1.4"
	SuppliesType        = "1.3.6.1.2.1.43.11.1.1.5"
	SuppliesDescription = "1.3.6.1.2.1.43.11.1.1.6"
	SuppliesMaxCapacity = "1.3.6.1.2.1.43.11.1.1.8"
	SuppliesLevel       = "1.3.6.1.2.1.43.11.1.1.9"

	// Primera fila de la tabla: clase (señal de "es impresora") y nivel
	// (prueba de centinelas del prober).
	SuppliesFirstClass = SuppliesClass + ".1.1"
	SuppliesFirstLevel = SuppliesLevel + ".1.1"
)

// Prefijos de empresa (sysObjectID) reconocidos
const (
	EnterprisesPrefix = "1.3.6.1.4.1"
	EnterpriseLexmark = "641"
	EnterpriseSamsung = "236"
)

// SupplyColumns lista las cinco columnas que se recorren para normalizar
// consumibles, en el orden en que se consultan.
func SupplyColumns() []string {
	return []string{
		SuppliesLevel,
		SuppliesMaxCapacity,
		SuppliesClass,
		SuppliesType,
		SuppliesDescription,
	}
}
