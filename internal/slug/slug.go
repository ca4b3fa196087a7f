// Package slug turns display names into URL slugs and resolves an
// ambiguous catalog path segment into the filter dimension it names.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Make returns the lowercase, diacritic-free, hyphen-joined form of s.
// "Barrio Los Caobos" -> "barrio-los-caobos", "Cúcuta" -> "cucuta".
func Make(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	pendingDash := false
	for _, r := range strings.ToLower(stripped) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// cities maps canonical city slugs to display names
var cities = map[string]string{
	"cucuta":            "Cúcuta",
	"los-patios":        "Los Patios",
	"villa-del-rosario": "Villa del Rosario",
	"el-zulia":          "El Zulia",
}

var cityAliases = map[string]string{
	"patios":        "los-patios",
	"villa-rosario": "villa-del-rosario",
	"zulia":         "el-zulia",
}

// types maps canonical (singular) property types to display names
var types = map[string]string{
	"casa":          "Casa",
	"apartamento":   "Apartamento",
	"apartaestudio": "Apartaestudio",
	"lote":          "Lote",
	"local":         "Local",
	"oficina":       "Oficina",
	"bodega":        "Bodega",
	"finca":         "Finca",
	"proyecto":      "Proyecto",
}

var typePlurals = map[string]string{
	"casas":          "casa",
	"apartamentos":   "apartamento",
	"apartaestudios": "apartaestudio",
	"lotes":          "lote",
	"locales":        "local",
	"oficinas":       "oficina",
	"bodegas":        "bodega",
	"fincas":         "finca",
	"proyectos":      "proyecto",
}

// NormalizeCity maps a city name, slug or alias to its canonical slug
func NormalizeCity(s string) (string, bool) {
	key := Make(s)
	if alias, ok := cityAliases[key]; ok {
		key = alias
	}
	_, ok := cities[key]
	return key, ok
}

// NormalizeType maps a type name, slug or plural to its canonical singular slug
func NormalizeType(s string) (string, bool) {
	key := Make(s)
	if singular, ok := typePlurals[key]; ok {
		key = singular
	}
	_, ok := types[key]
	return key, ok
}

// CityName returns the display name of a canonical city slug
func CityName(city string) string {
	if name, ok := cities[city]; ok {
		return name
	}
	return city
}

// TypeName returns the display name of a canonical type slug
func TypeName(t string) string {
	if name, ok := types[t]; ok {
		return name
	}
	return t
}
