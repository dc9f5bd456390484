package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Códigos de prtMarkerSuppliesType (RFC 3805)
var supplyTypeCodes = map[int]SupplyType{
	3:  Toner,
	4:  Waste,
	5:  Ink,
	6:  Ink,
	7:  Ink,
	8:  Waste,
	9:  Drum, // opc / fotoconductor
	10: Developer,
	11: FuserOil,
	12: Wax,
	13: Wax,
	14: Waste,
	15: Fuser,
}

// Códigos de prtMarkerSuppliesClass usados como segundo criterio
var supplyClassCodes = map[int]SupplyType{
	3: Toner,
	4: Ink,
	7: Waste,
	8: Drum,
}

type colorKeywords struct {
	color    string
	keywords []string
}

// Palabras de color en inglés y español, ya sin acentos
var colors = []colorKeywords{
	{"black", []string{"black", "negro"}},
	{"cyan", []string{"cyan", "cian"}},
	{"magenta", []string{"magenta"}},
	{"yellow", []string{"yellow", "amarillo"}},
}

type descriptionRule struct {
	match func(d string) bool
	typ   SupplyType
}

// Reglas por descripción, evaluadas en orden
var descriptionRules = []descriptionRule{
	{func(d string) bool { return hasColor(d, "black") && strings.Contains(d, "toner") }, BlackToner},
	{contains("cyan"), CyanToner},
	{contains("magenta"), MagentaToner},
	{contains("yellow"), YellowToner},
	{contains("imagen"), Drum},
	// colores en español después de "imagen": "Unidad de imagen cian" es tambor
	{func(d string) bool { return hasColor(d, "cyan") }, CyanToner},
	{func(d string) bool { return hasColor(d, "yellow") }, YellowToner},
	{contains("manten"), Maintenance},
	{contains("fuser"), Fuser},
	{containsAll("transfer", "roller"), TransferRoller},
	{containsAll("retard", "roller"), RetardRoller},
	{contains("roller"), Roller},
	{contains("drum"), Drum},
	{contains("waste"), Waste},
}

func contains(s string) func(string) bool {
	return func(d string) bool { return strings.Contains(d, s) }
}

func containsAll(words ...string) func(string) bool {
	return func(d string) bool {
		for _, w := range words {
			if !strings.Contains(d, w) {
				return false
			}
		}
		return true
	}
}

func hasColor(d, color string) bool {
	for _, c := range colors {
		if c.color != color {
			continue
		}
		for _, k := range c.keywords {
			if strings.Contains(d, k) {
				return true
			}
		}
	}
	return false
}

// foldDescription pasa a minúsculas y quita acentos ("Tóner" -> "toner").
// '?' se trata como 'o': agentes que envían Latin-1 mal decodificado.
func foldDescription(description string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, description)
	if err != nil {
		folded = description
	}

	folded = strings.ToLower(strings.TrimSpace(folded))
	return strings.ReplaceAll(folded, "?", "o")
}

// MapSupplyType traduce el código numérico de tipo
func MapSupplyType(code int) SupplyType {
	if t, ok := supplyTypeCodes[code]; ok {
		return t
	}
	return Unknown
}

// MapDescription aplica las reglas de texto libre
func MapDescription(description string) SupplyType {
	if description == "" {
		return Unknown
	}

	d := foldDescription(description)
	for _, rule := range descriptionRules {
		if rule.match(d) {
			return rule.typ
		}
	}

	return Unknown
}

// ResolveType: código de tipo, luego código de clase, luego descripción.
// nil significa columna ausente.
func ResolveType(class, typ *int, description string) SupplyType {
	if typ != nil {
		if t := MapSupplyType(*typ); t != Unknown {
			return t
		}
	}

	if class != nil {
		if t, ok := supplyClassCodes[*class]; ok {
			return t
		}
	}

	return MapDescription(description)
}

// ResolveColor usa el color del tipo y, si no tiene, la descripción.
// "" si ninguno lo indica.
func ResolveColor(typ SupplyType, description string) string {
	for _, c := range colors {
		if strings.Contains(string(typ), c.color) {
			return c.color
		}
	}

	if description == "" {
		return ""
	}

	d := foldDescription(description)
	for _, c := range colors {
		if hasColor(d, c.color) {
			return c.color
		}
	}

	return ""
}
