package spots

import "strings"

// CanonicalField is a normalized field name every spot row resolves to.
type CanonicalField string

const (
	FieldLat      CanonicalField = "lat"
	FieldLng      CanonicalField = "lng"
	FieldLinea    CanonicalField = "linea"
	FieldPosicion CanonicalField = "posicion"
	FieldLote     CanonicalField = "lote_id"
)

// columnAliases maps each canonical field to the ordered list of source
// column names it accepts. Order matters: the first alias with a non-empty
// value wins and later aliases are ignored, even if also present. That keeps
// resolution deterministic when an export carries two spellings of the same
// column, at the cost of silently picking one of two conflicting values.
var columnAliases = map[CanonicalField][]string{
	FieldLat: {"lat", "Latitud", "latitude", "LAT", "LATITUD", "Lat"},
	FieldLng: {"lng", "Longitud", "longitude", "LNG", "LONGITUD", "Lng", "lon"},
	FieldLinea: {
		"linea", "Linea", "Línea", "Línea palma", "linea_palma",
		"LINEA", "line",
	},
	FieldPosicion: {
		"posicion", "Posicion", "Posición", "Posición palma",
		"posicion_palma", "Palma", "palma", "POSICION", "position", "pos",
	},
	FieldLote: {"lote_id", "Lote", "lote", "LOTE", "Lote ID", "lot"},
}

// ResolveField returns the trimmed value of the first alias of field that is
// present and non-empty in row, or "" when none matches.
func ResolveField(row RawRow, field CanonicalField) string {
	for _, alias := range columnAliases[field] {
		if v, ok := row[alias]; ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// Aliases returns a copy of the accepted source names for a canonical field,
// in resolution order.
func Aliases(field CanonicalField) []string {
	src := columnAliases[field]
	out := make([]string, len(src))
	copy(out, src)
	return out
}
