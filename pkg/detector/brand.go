package detector

import (
	"context"
	"regexp"
	"strings"

	"github.com/asaavedra/printscan/pkg/oids"
	"github.com/asaavedra/printscan/pkg/snmp"
)

// BrandUnknown marca sin identificar
const BrandUnknown = "unknown"

// Palabras que por sí solas identifican una impresora en sysDescr
var printerKeywords = []string{"printer", "laserjet", "mfp"}

// Fabricantes de impresoras reconocidos en sysDescr. Samsung no está: su
// sysDescr aparece también en equipos que no imprimen.
var printerVendorTokens = []string{
	"hp", "brother", "lexmark", "ricoh", "kyocera",
	"canon", "xerox", "epson", "konica", "minolta",
}

type vendorRule struct {
	vendor   string
	patterns []string
}

// Orden de prioridad de GuessVendor
var vendorRules = []vendorRule{
	{"hp", []string{"hp"}},
	{"brother", []string{"brother"}},
	{"lexmark", []string{"lexmark"}},
	{"samsung", []string{"samsung"}},
	{"ricoh", []string{"ricoh"}},
	{"kyocera", []string{"kyocera"}},
	{"canon", []string{"canon"}},
	{"xerox", []string{"xerox"}},
	{"epson", []string{"epson"}},
	{"konica_minolta", []string{"konica", "minolta"}},
}

// Reglas por descripción de DetectBrandAndModel, después del prefijo de empresa
var descrBrandRules = []vendorRule{
	{"hp", []string{"hp"}},
	{"brother", []string{"brother"}},
	{"samsung", []string{"samsung"}},
}

var (
	enterprisePattern   = regexp.MustCompile(`(?:enterprises|1\.3\.6\.1\.4\.1)\.(\d+)`)
	lexmarkModelPattern = regexp.MustCompile(`(?i)Lexmark\s+([A-Z0-9]+)`)
)

// matchesPatterns verifica si descLower contiene alguno de los patrones
func matchesPatterns(descLower string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(descLower, pattern) {
			return true
		}
	}
	return false
}

// DescribesPrinter evalúa solo el texto de sysDescr
func DescribesPrinter(sysDescr string) bool {
	descLower := strings.ToLower(sysDescr)
	return matchesPatterns(descLower, printerKeywords) || matchesPatterns(descLower, printerVendorTokens)
}

// LooksLikePrinter decide si el host es una impresora. Sin texto
// descriptivo consulta el número de serie de Printer-MIB y luego la primera
// fila de la tabla de suministros: la presencia de cualquiera basta.
func LooksLikePrinter(ctx context.Context, q snmp.Querier, t snmp.Target, sysDescr string, opts ...snmp.Option) bool {
	if DescribesPrinter(sysDescr) {
		return true
	}

	if _, ok := q.Get(ctx, t, oids.SerialNumber, opts...); ok {
		return true
	}

	_, ok := q.Get(ctx, t, oids.SuppliesFirstClass, opts...)
	return ok
}

// GuessVendor devuelve el primer fabricante que coincide en sysDescr
func GuessVendor(sysDescr string) (string, bool) {
	descLower := strings.ToLower(sysDescr)

	for _, rule := range vendorRules {
		if matchesPatterns(descLower, rule.patterns) {
			return rule.vendor, true
		}
	}

	return "", false
}

// DetectBrandAndModel usa primero el número de empresa de sysObjectID y
// luego sysDescr. model vacío significa desconocido.
func DetectBrandAndModel(sysDescr, sysObjectID string) (brand, model string) {
	placeholder := strings.TrimSpace(sysDescr)

	switch enterpriseNumber(sysObjectID) {
	case oids.EnterpriseLexmark:
		if m := lexmarkModelPattern.FindStringSubmatch(sysDescr); m != nil {
			return "lexmark", m[1]
		}
		return "lexmark", ""
	case oids.EnterpriseSamsung:
		return "samsung", placeholder
	}

	descLower := strings.ToLower(sysDescr)
	for _, rule := range descrBrandRules {
		if matchesPatterns(descLower, rule.patterns) {
			return rule.vendor, placeholder
		}
	}

	return BrandUnknown, ""
}

// enterpriseNumber extrae <n> de "SNMPv2-SMI::enterprises.<n>..." o
// ".1.3.6.1.4.1.<n>..."
func enterpriseNumber(sysObjectID string) string {
	if m := enterprisePattern.FindStringSubmatch(sysObjectID); m != nil {
		return m[1]
	}
	return ""
}
