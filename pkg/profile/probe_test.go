package profile

import (
	"context"
	"testing"
	"time"

	"github.com/asaavedra/printscan/pkg/oids"
	"github.com/asaavedra/printscan/pkg/snmp"
	"github.com/asaavedra/printscan/pkg/snmp/snmptest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProber(fake *snmptest.Fake) *Prober {
	p := NewProber(fake, zerolog.Nop())
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p
}

func TestProbeLevelPrinter(t *testing.T) {
	fake := snmptest.NewFake()
	fake.Host("10.0.0.10").
		Set(oids.SysDescr, `STRING: "HP LaserJet M404"`).
		Set(oids.SysObjectID, "OID: SNMPv2-SMI::enterprises.11.2.3.9.1").
		Set(oids.SuppliesMaxCapacity+".1.1", "INTEGER: 10000").
		Set(oids.SuppliesFirstLevel, "INTEGER: 4200")

	res, err := newTestProber(fake).Probe(context.Background(), snmp.Target{IP: "10.0.0.10"})
	require.NoError(t, err)

	assert.True(t, res.Capability.CanReadLevels)
	assert.True(t, res.Capability.CanReadStates)
	assert.True(t, res.Capability.SupportsPrinterMib)
	assert.Equal(t, LevelReal, res.Profile)
	assert.Equal(t, "hp", res.Brand)
	assert.Equal(t, "HP LaserJet M404", res.Model)
	assert.Equal(t, "SNMPv2-SMI::enterprises.11.2.3.9.1", res.SysObjectID)
	assert.Equal(t, 2026, res.Capability.DetectedAt.Year())

	for _, c := range fake.Calls() {
		assert.Equal(t, time.Second, c.Options.Timeout)
		assert.Equal(t, 1, c.Options.Retries)
	}
}

func TestProbeStatePrinter(t *testing.T) {
	fake := snmptest.NewFake()
	fake.Host("10.0.0.11").
		Set(oids.SysDescr, `STRING: "Lexmark MS610dn"`).
		Set(oids.SysObjectID, "OID: SNMPv2-SMI::enterprises.641.2.1").
		Set(oids.SuppliesMaxCapacity+".1.1", "INTEGER: -2").
		Set(oids.SuppliesFirstLevel, "INTEGER: -3")

	res, err := newTestProber(fake).Probe(context.Background(), snmp.Target{IP: "10.0.0.11"})
	require.NoError(t, err)

	assert.False(t, res.Capability.CanReadLevels)
	assert.True(t, res.Capability.CanReadStates)
	assert.Equal(t, Estado, res.Profile)
	assert.Equal(t, "lexmark", res.Brand)
	assert.Equal(t, "MS610dn", res.Model)
}

func TestProbeNoPrinterMib(t *testing.T) {
	fake := snmptest.NewFake()
	fake.Host("10.0.0.12").Set(oids.SysDescr, `STRING: "Linux switch"`)

	res, err := newTestProber(fake).Probe(context.Background(), snmp.Target{IP: "10.0.0.12"})
	require.NoError(t, err)

	assert.Equal(t, Capability{DetectedAt: res.Capability.DetectedAt}, res.Capability)
	assert.Equal(t, Desconocido, res.Profile)
	assert.Empty(t, res.SysObjectID)
}

func TestProbeUnreachable(t *testing.T) {
	_, err := newTestProber(snmptest.NewFake()).Probe(context.Background(), snmp.Target{IP: "10.0.0.99"})
	require.ErrorIs(t, err, ErrSnmpUnreachable)
}

func TestClassifySentinel(t *testing.T) {
	assert.Equal(t, SentinelState, ClassifySentinel("INTEGER: -2", true))
	assert.Equal(t, SentinelState, ClassifySentinel("INTEGER: -3", true))
	assert.Equal(t, SentinelLevel, ClassifySentinel("INTEGER: 57", true))
	assert.Equal(t, SentinelLevel, ClassifySentinel("INTEGER: -1", true))
	assert.Equal(t, SentinelUnknown, ClassifySentinel(`STRING: "n/a"`, true))
	assert.Equal(t, SentinelUnknown, ClassifySentinel("", false))
}

func TestDecideOrder(t *testing.T) {
	assert.Equal(t, LevelReal, Decide(Capability{CanReadLevels: true, CanReadStates: true}))
	assert.Equal(t, Estado, Decide(Capability{CanReadStates: true}))
	assert.Equal(t, Desconocido, Decide(Capability{}))
}

func TestProfileForBrand(t *testing.T) {
	assert.Equal(t, LevelReal, ProfileForBrand("hp"))
	assert.Equal(t, LevelReal, ProfileForBrand("Samsung"))
	assert.Equal(t, Estado, ProfileForBrand("brother"))
	assert.Equal(t, Estado, ProfileForBrand("lexmark"))
	assert.Equal(t, Desconocido, ProfileForBrand("unknown"))
	assert.Equal(t, Desconocido, ProfileForBrand(""))
}
