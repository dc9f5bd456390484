package detector

import (
	"context"

	"github.com/asaavedra/printscan/pkg/oids"
	"github.com/asaavedra/printscan/pkg/snmp"
)

// Identity datos que identifican al equipo aunque cambie de IP. Vacío
// significa que el agente no los expone.
type Identity struct {
	MAC    string
	Serial string
}

// ResolveIdentity obtiene MAC y número de serie. La MAC sigue la cadena
// ifPhysAddress -> dirección base del bridge -> tabla ARP.
func ResolveIdentity(ctx context.Context, q snmp.Querier, t snmp.Target, opts ...snmp.Option) Identity {
	var id Identity

	if mac, ok := macFromTable(ctx, q, t, oids.IfPhysAddress, opts); ok {
		id.MAC = mac
	} else if raw, ok := q.Get(ctx, t, oids.BridgeBaseAddress, opts...); ok {
		if mac, ok := snmp.ParseMAC(raw); ok {
			id.MAC = mac
		}
	}

	if id.MAC == "" {
		if mac, ok := macFromTable(ctx, q, t, oids.ArpPhysAddress, opts); ok {
			id.MAC = mac
		}
	}

	if raw, ok := q.Get(ctx, t, oids.SerialNumber, opts...); ok {
		if serial, ok := snmp.ExtractText(raw); ok {
			id.Serial = serial
		}
	}

	return id
}

func macFromTable(ctx context.Context, q snmp.Querier, t snmp.Target, root string, opts []snmp.Option) (string, bool) {
	rows, ok := q.Walk(ctx, t, root, opts...)
	if !ok || len(rows) == 0 {
		return "", false
	}

	var macs []string
	for _, oid := range snmp.SortedOIDs(rows) {
		if mac, ok := snmp.ParseMAC(rows[oid]); ok {
			macs = append(macs, mac)
		}
	}

	return snmp.PickBestMAC(macs)
}
