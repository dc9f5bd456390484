package detector

import (
	"context"
	"testing"

	"github.com/asaavedra/printscan/pkg/oids"
	"github.com/asaavedra/printscan/pkg/snmp"
	"github.com/asaavedra/printscan/pkg/snmp/snmptest"
	"github.com/stretchr/testify/assert"
)

func TestGuessVendor(t *testing.T) {
	tests := []struct {
		descr  string
		vendor string
		ok     bool
	}{
		{"HP LaserJet 4250", "hp", true},
		{"Brother NC-8300h, Firmware Ver.1.03", "brother", true},
		{"Lexmark MS610dn version PP.02", "lexmark", true},
		{"Samsung M332x 382x 402x Series", "samsung", true},
		{"RICOH Aficio MP C3003", "ricoh", true},
		{"KYOCERA Document Solutions Printing System", "kyocera", true},
		{"Canon iR-ADV C5535", "canon", true},
		{"Xerox WorkCentre 7855", "xerox", true},
		{"EPSON Built-in 10Base-T/100Base-TX", "epson", true},
		{"KONICA MINOLTA bizhub C308", "konica_minolta", true},
		{"Generic minolta engine", "konica_minolta", true},
		{"Linux router 5.10", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.descr, func(t *testing.T) {
			vendor, ok := GuessVendor(tt.descr)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.vendor, vendor)
		})
	}
}

func TestGuessVendorPriority(t *testing.T) {
	// hp va antes que brother en el orden de prioridad
	vendor, _ := GuessVendor("Brother printer with HP emulation")
	assert.Equal(t, "hp", vendor)

	vendor, _ = GuessVendor("Samsung-branded Xerox engine")
	assert.Equal(t, "samsung", vendor)
}

func TestDetectBrandAndModel(t *testing.T) {
	tests := []struct {
		name     string
		descr    string
		objectID string
		brand    string
		model    string
	}{
		{"lexmark enterprise", "Lexmark MS610dn version PP.02", "SNMPv2-SMI::enterprises.641.2.1", "lexmark", "MS610dn"},
		{"lexmark numeric oid", "Lexmark CX725 9.1", ".1.3.6.1.4.1.641.1.5.7", "lexmark", "CX725"},
		{"lexmark without model", "network printer", "SNMPv2-SMI::enterprises.641", "lexmark", ""},
		{"samsung enterprise", "  M332x Series ", "SNMPv2-SMI::enterprises.236.11.5.1", "samsung", "M332x Series"},
		{"enterprise beats descr", "HP compatible", "SNMPv2-SMI::enterprises.236.1", "samsung", "HP compatible"},
		{"hp descr", "HP LaserJet 4250", "SNMPv2-SMI::enterprises.11.2.3.9.1", "hp", "HP LaserJet 4250"},
		{"brother descr", "Brother NC-8300h", "", "brother", "Brother NC-8300h"},
		{"samsung descr", "Samsung ML-2850", "", "samsung", "Samsung ML-2850"},
		{"other enterprise prefix", "Ricoh Aficio", "SNMPv2-SMI::enterprises.6410.1", BrandUnknown, ""},
		{"unknown", "Linux 5.10", "", BrandUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			brand, model := DetectBrandAndModel(tt.descr, tt.objectID)
			assert.Equal(t, tt.brand, brand)
			assert.Equal(t, tt.model, model)
		})
	}
}

func TestLooksLikePrinter(t *testing.T) {
	ctx := context.Background()
	fake := snmptest.NewFake()
	fake.Host("10.0.0.2").Set(oids.SerialNumber, `STRING: "CN12345"`)
	fake.Host("10.0.0.3").Set(oids.SuppliesFirstClass, "INTEGER: 3")
	fake.Host("10.0.0.4")

	target := func(ip string) snmp.Target { return snmp.Target{IP: ip, Community: "public", Version: "2c"} }

	assert.True(t, LooksLikePrinter(ctx, fake, target("10.0.0.1"), "HP LaserJet 4250"))
	assert.True(t, LooksLikePrinter(ctx, fake, target("10.0.0.1"), "Network MFP"))
	assert.Empty(t, fake.Calls(), "text match needs no queries")

	assert.True(t, LooksLikePrinter(ctx, fake, target("10.0.0.2"), "embedded device"))
	assert.True(t, LooksLikePrinter(ctx, fake, target("10.0.0.3"), "embedded device"))
	assert.False(t, LooksLikePrinter(ctx, fake, target("10.0.0.4"), "embedded device"))

	// sin serie ni suministros no basta con ser un equipo Samsung
	assert.False(t, LooksLikePrinter(ctx, fake, target("10.0.0.4"), "Samsung Smart Switch"))
	assert.Len(t, fake.CallsTo(oids.SerialNumber), 4)
	assert.Len(t, fake.CallsTo(oids.SuppliesFirstClass), 3)
}
