package snmp

import (
	"fmt"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// FormatPDU convierte un PDU a la convención "<TYPE>: <payload>". Devuelve
// false para las excepciones de v2c (noSuchObject, noSuchInstance,
// endOfMibView) y valores nulos.
func FormatPDU(pdu gosnmp.SnmpPDU) (string, bool) {
	switch pdu.Type {
	case gosnmp.OctetString:
		b, _ := pdu.Value.([]byte)
		return renderOctets(b), true
	case gosnmp.Integer:
		return fmt.Sprintf("INTEGER: %d", gosnmp.ToBigInt(pdu.Value).Int64()), true
	case gosnmp.Counter32:
		return fmt.Sprintf("Counter32: %d", gosnmp.ToBigInt(pdu.Value).Uint64()), true
	case gosnmp.Gauge32:
		return fmt.Sprintf("Gauge32: %d", gosnmp.ToBigInt(pdu.Value).Uint64()), true
	case gosnmp.Uinteger32:
		return fmt.Sprintf("UInteger32: %d", gosnmp.ToBigInt(pdu.Value).Uint64()), true
	case gosnmp.Counter64:
		return fmt.Sprintf("Counter64: %d", gosnmp.ToBigInt(pdu.Value).Uint64()), true
	case gosnmp.TimeTicks:
		return fmt.Sprintf("Timeticks: (%d)", gosnmp.ToBigInt(pdu.Value).Uint64()), true
	case gosnmp.ObjectIdentifier:
		oid, _ := pdu.Value.(string)
		return "OID: " + formatOID(oid), true
	case gosnmp.IPAddress:
		return fmt.Sprintf("IpAddress: %v", pdu.Value), true
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return "", false
	default:
		if pdu.Value == nil {
			return "", false
		}
		return fmt.Sprintf("%v", pdu.Value), true
	}
}

// formatOID usa la forma simbólica de net-snmp sin MIBs cargadas para el
// árbol de empresas: SNMPv2-SMI::enterprises.<n>...
func formatOID(oid string) string {
	oid = strings.TrimPrefix(oid, ".")

	const enterprises = "1.3.6.1.4.1."
	if strings.HasPrefix(oid, enterprises) {
		return "SNMPv2-SMI::enterprises." + strings.TrimPrefix(oid, enterprises)
	}

	return "." + oid
}
