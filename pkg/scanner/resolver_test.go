package scanner

import (
	"context"
	"testing"

	"github.com/asaavedra/printscan/pkg/oids"
	"github.com/asaavedra/printscan/pkg/snmp/snmptest"
	"github.com/asaavedra/printscan/pkg/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPrinter(t *testing.T, devices *store.Memory, ip, serial string, active bool) *store.Printer {
	t.Helper()

	p := store.NewPrinter(ip)
	p.Serial = &serial
	p.IsActive = active
	require.NoError(t, devices.Upsert(context.Background(), p))
	return p
}

func TestResolveBySerialRelocatesPrinter(t *testing.T) {
	ctx := context.Background()
	devices := store.NewMemory()
	moved := seedPrinter(t, devices, "10.0.0.50", "ABC123", false)
	seedPrinter(t, devices, "10.0.0.51", "ZZZ999", true)

	fake := snmptest.NewFake()
	fake.Host("192.168.5.2").
		Set(oids.SysDescr, `STRING: "HP LaserJet"`).
		Set(oids.SerialNumber, `STRING: "abc123"`)

	r := NewResolver(fake, devices, zerolog.Nop())
	result, err := r.ResolveBySerial(ctx, ResolveRequest{Subnet: "192.168.5.0/30"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.TotalHosts)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, []Relocation{{PrinterID: moved.ID, OldIP: "10.0.0.50", NewIP: "192.168.5.2"}}, result.Updated)

	got, err := devices.FindByID(ctx, moved.ID)
	require.NoError(t, err)
	assert.Equal(t, "192.168.5.2", got.IP)
	assert.True(t, got.IsActive)

	// Segunda pasada: coincide pero ya está correcta
	result, err = r.ResolveBySerial(ctx, ResolveRequest{Subnet: "192.168.5.0/30"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Empty(t, result.Updated)
}

func TestResolveBySerialSinglePrinter(t *testing.T) {
	ctx := context.Background()
	devices := store.NewMemory()
	first := seedPrinter(t, devices, "10.0.0.50", "AAA", true)
	other := seedPrinter(t, devices, "10.0.0.51", "BBB", true)

	fake := snmptest.NewFake()
	fake.Host("192.168.5.1").Set(oids.SysDescr, `STRING: "x"`).Set(oids.SerialNumber, `STRING: "AAA"`)
	fake.Host("192.168.5.2").Set(oids.SysDescr, `STRING: "x"`).Set(oids.SerialNumber, `STRING: "BBB"`)

	r := NewResolver(fake, devices, zerolog.Nop())
	result, err := r.ResolveBySerial(ctx, ResolveRequest{Subnet: "192.168.5.0/30", PrinterID: &other.ID})
	require.NoError(t, err)
	require.Len(t, result.Updated, 1)
	assert.Equal(t, other.ID, result.Updated[0].PrinterID)

	unchanged, err := devices.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.50", unchanged.IP)

	missing := int64(404)
	_, err = r.ResolveBySerial(ctx, ResolveRequest{Subnet: "192.168.5.0/30", PrinterID: &missing})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolveBySerialSkipsSilentHosts(t *testing.T) {
	devices := store.NewMemory()
	seedPrinter(t, devices, "10.0.0.50", "ABC123", true)

	fake := snmptest.NewFake()
	// Sin sysDescr no se consulta el número de serie
	fake.Host("192.168.5.1").Set(oids.SerialNumber, `STRING: "ABC123"`)

	r := NewResolver(fake, devices, zerolog.Nop())
	result, err := r.ResolveBySerial(context.Background(), ResolveRequest{Subnet: "192.168.5.0/30"})
	require.NoError(t, err)
	assert.Zero(t, result.Matched)
	assert.Empty(t, fake.CallsTo(oids.SerialNumber))
}

func TestResolveBySerialValidation(t *testing.T) {
	r := NewResolver(snmptest.NewFake(), store.NewMemory(), zerolog.Nop())

	_, err := r.ResolveBySerial(context.Background(), ResolveRequest{Subnet: "10.0.0.0/8"})
	assert.ErrorIs(t, err, ErrSubnetTooLarge)

	_, err = r.ResolveBySerial(context.Background(), ResolveRequest{Subnet: "10.0.0.1"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
