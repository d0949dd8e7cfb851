package spots

import (
	"math"
	"strconv"
	"strings"
)

// headerRowOffset converts a 0-based data position into the row number the
// user sees in their spreadsheet (row 1 is the header, data starts at row 2).
const headerRowOffset = 2

// Rejection reasons surfaced in FILA_REMOVIDA warnings and the report UI.
const (
	ReasonEmptyRow        = "Fila vacía"
	ReasonBadCoordinates  = "Coordenadas inválidas o faltantes"
	ReasonMissingLinea    = "Línea faltante"
	ReasonMissingPosicion = "Posición faltante"
	ReasonMissingLote     = "Lote faltante"
)

// CleaningResult holds the normalizer output: typed rows that survived and
// the rows dropped with their reasons.
type CleaningResult struct {
	Cleaned []CleanedRow
	Removed []RejectedRow
}

// loteIndex is a case-insensitive lookup from catalog names and siglas to
// lote ids, built once per run.
type loteIndex map[string]string

func buildLoteIndex(lotes []Lote) loteIndex {
	idx := make(loteIndex, len(lotes)*2)
	for _, l := range lotes {
		if k := strings.ToLower(strings.TrimSpace(l.Nombre)); k != "" {
			idx[k] = l.ID
		}
		if k := strings.ToLower(strings.TrimSpace(l.Sigla)); k != "" {
			idx[k] = l.ID
		}
	}
	return idx
}

// CleanAndNormalize turns raw spreadsheet rows into typed CleanedRows,
// rejecting rows that are empty or miss a mandatory field. Rejections are
// independent per row and never abort the run. Surviving rows keep their
// source order; OriginalIndex is the spreadsheet row number.
//
// Lote values matching a catalog nombre or sigla (case-insensitive) are
// substituted with the canonical id; unrecognized values pass through
// verbatim — membership is validated later, not here.
func CleanAndNormalize(rows []RawRow, lotes []Lote) CleaningResult {
	res := CleaningResult{
		Cleaned: make([]CleanedRow, 0, len(rows)),
	}
	loteIDs := buildLoteIndex(lotes)

	for i, row := range rows {
		rowNum := i + headerRowOffset

		if isEmptyRow(row) {
			res.Removed = append(res.Removed, RejectedRow{Index: rowNum, Reason: ReasonEmptyRow, Row: row})
			continue
		}

		lat, latOK := parseCoordinate(ResolveField(row, FieldLat))
		lng, lngOK := parseCoordinate(ResolveField(row, FieldLng))
		if !latOK || !lngOK {
			res.Removed = append(res.Removed, RejectedRow{Index: rowNum, Reason: ReasonBadCoordinates, Row: row})
			continue
		}

		linea := ResolveField(row, FieldLinea)
		if linea == "" {
			res.Removed = append(res.Removed, RejectedRow{Index: rowNum, Reason: ReasonMissingLinea, Row: row})
			continue
		}

		posicion := ResolveField(row, FieldPosicion)
		if posicion == "" {
			res.Removed = append(res.Removed, RejectedRow{Index: rowNum, Reason: ReasonMissingPosicion, Row: row})
			continue
		}

		loteValue := ResolveField(row, FieldLote)
		if loteValue == "" {
			res.Removed = append(res.Removed, RejectedRow{Index: rowNum, Reason: ReasonMissingLote, Row: row})
			continue
		}

		loteID := loteValue
		if id, ok := loteIDs[strings.ToLower(loteValue)]; ok {
			loteID = id
		}

		res.Cleaned = append(res.Cleaned, CleanedRow{
			Lat:           lat,
			Lng:           lng,
			Linea:         linea,
			Posicion:      posicion,
			LoteID:        loteID,
			LoteNombre:    loteValue,
			OriginalIndex: rowNum,
		})
	}

	return res
}

func isEmptyRow(row RawRow) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseCoordinate parses a decimal coordinate, rejecting NaN and infinities
// (strconv accepts both spellings, a spreadsheet cell must not).
func parseCoordinate(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
