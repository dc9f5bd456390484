package snmp

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ZeroMAC es la MAC que reportan interfaces sin dirección física (loopback)
const ZeroMAC = "00:00:00:00:00:00"

var (
	intPattern         = regexp.MustCompile(`-?\d+`)
	indexPairPattern   = regexp.MustCompile(`(\d+\.\d+)$`)
	indexSinglePattern = regexp.MustCompile(`\.(\d+)$`)
	macInlinePattern   = regexp.MustCompile(`([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}`)
	hexGroupPattern    = regexp.MustCompile(`^[0-9A-Fa-f]{1,2}$`)
)

// StripOID quita el prefijo "<oid> = " de una línea de salida; sin
// separador devuelve el texto recortado.
func StripOID(line string) string {
	if _, value, ok := strings.Cut(line, " = "); ok {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(line)
}

// ExtractInt devuelve el primer entero (con signo opcional) del valor
func ExtractInt(raw string) (int, bool) {
	match := intPattern.FindString(raw)
	if match == "" {
		return 0, false
	}

	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}

	return n, true
}

// ExtractString exige la etiqueta STRING: y quita las comillas
func ExtractString(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "STRING:") {
		return "", false
	}

	s = trimQuotes(strings.TrimPrefix(s, "STRING:"))
	return s, s != ""
}

// ExtractText como ExtractString pero con la etiqueta opcional. Se usa para
// el número de serie, que algunos agentes devuelven sin tipo.
func ExtractText(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = trimQuotes(strings.TrimPrefix(s, "STRING:"))
	return s, s != ""
}

func trimQuotes(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
}

// ExtractIndex obtiene el índice de tabla desde el sufijo del OID:
// "N.M" si existe, si no el último componente.
func ExtractIndex(oid string) (string, bool) {
	if m := indexPairPattern.FindStringSubmatch(oid); m != nil {
		return m[1], true
	}
	if m := indexSinglePattern.FindStringSubmatch(oid); m != nil {
		return m[1], true
	}
	return "", false
}

// ParseMAC reconoce "Hex-STRING: 1A 2B 3 4 5 6" o una MAC en línea con ':'
// o '-'. Resultado en minúsculas separado por ':'.
func ParseMAC(raw string) (string, bool) {
	if _, hex, ok := strings.Cut(raw, "Hex-STRING:"); ok {
		if mac, ok := macFromGroups(strings.Fields(hex)); ok {
			return mac, true
		}
	}

	if match := macInlinePattern.FindString(raw); match != "" {
		return strings.ToLower(strings.ReplaceAll(match, "-", ":")), true
	}

	// net-snmp muestra como STRING una MAC cuyos 6 bytes son imprimibles
	if b, ok := quotedOctets(raw); ok && len(b) == 6 {
		octets := make([]string, 6)
		for i, c := range b {
			octets[i] = fmt.Sprintf("%02x", c)
		}
		return strings.Join(octets, ":"), true
	}

	return "", false
}

// quotedOctets devuelve los bytes de `STRING: "..."`
func quotedOctets(raw string) ([]byte, bool) {
	s, ok := strings.CutPrefix(strings.TrimSpace(raw), "STRING:")
	if !ok {
		return nil, false
	}

	s = strings.TrimSpace(s)
	if unquoted, err := strconv.Unquote(s); err == nil {
		return []byte(unquoted), true
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return []byte(s[1 : len(s)-1]), true
	}
	return nil, false
}

func macFromGroups(groups []string) (string, bool) {
	if len(groups) < 6 {
		return "", false
	}

	octets := make([]string, 6)
	for i, g := range groups[:6] {
		if !hexGroupPattern.MatchString(g) {
			return "", false
		}
		if len(g) == 1 {
			g = "0" + g
		}
		octets[i] = strings.ToLower(g)
	}

	return strings.Join(octets, ":"), true
}

// PickBestMAC prefiere la primera MAC distinta de cero; si todas son cero
// devuelve la primera.
func PickBestMAC(macs []string) (string, bool) {
	if len(macs) == 0 {
		return "", false
	}

	for _, mac := range macs {
		if mac != ZeroMAC {
			return mac, true
		}
	}

	return macs[0], true
}

// SortedOIDs ordena las claves de un walk por sus componentes numéricos,
// el orden en que las recorre el agente.
func SortedOIDs(rows map[string]string) []string {
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, CompareOIDs)
	return keys
}

// CompareOIDs compara dos OIDs (o índices "N.M") componente a componente
func CompareOIDs(a, b string) int {
	pa := strings.Split(strings.TrimPrefix(a, "."), ".")
	pb := strings.Split(strings.TrimPrefix(b, "."), ".")

	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		if errA != nil || errB != nil {
			if c := strings.Compare(pa[i], pb[i]); c != 0 {
				return c
			}
			continue
		}
		if na != nb {
			return cmp.Compare(na, nb)
		}
	}

	return cmp.Compare(len(pa), len(pb))
}

// ExtractOID quita la etiqueta "OID:" de un valor de tipo OBJECT IDENTIFIER
func ExtractOID(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimPrefix(s, "OID:"))
	return s, s != ""
}
