package spots

import (
	"fmt"
	"strings"
)

// kindLabels is the hand-maintained label table for summary lines. Kinds
// missing here fall back to the lower-cased kind code.
var kindLabels = map[IssueKind]string{
	KindCoordenadasDuplicadas: "coordenadas duplicadas",
	KindLoteInvalido:          "lotes inválidos",
	KindLineaRepetida:         "líneas repetidas en lote",
	KindPosicionRepetida:      "posiciones repetidas en línea",
	KindFilaRemovida:          "filas removidas automáticamente",
	KindDuplicadoRemovido:     "duplicados removidos automáticamente",
}

// KindLabel returns the human label for an issue kind.
func KindLabel(kind IssueKind) string {
	if label, ok := kindLabels[kind]; ok {
		return label
	}
	return strings.ToLower(string(kind))
}

// buildSummary groups errors and warnings by kind (rows in encounter order)
// and produces the ordered list of human-readable summary lines.
func buildSummary(errors, warnings []Issue, totalRows int) Summary {
	s := Summary{
		Total:    totalRows,
		Errors:   len(errors),
		Warnings: len(warnings),
		ByKind:   make(map[IssueKind]*KindSummary),
	}

	// Kinds keep first-encounter order so summary lines are stable.
	var kindOrder []IssueKind
	for _, issue := range append(append([]Issue{}, errors...), warnings...) {
		ks, ok := s.ByKind[issue.Kind]
		if !ok {
			ks = &KindSummary{Severity: issue.Severity}
			s.ByKind[issue.Kind] = ks
			kindOrder = append(kindOrder, issue.Kind)
		}
		ks.Count++
		ks.Rows = append(ks.Rows, issue.Row)
	}

	if len(errors) == 0 && len(warnings) == 0 {
		s.Messages = []string{"Todos los datos son válidos"}
		return s
	}

	if len(errors) > 0 {
		s.Messages = append(s.Messages, fmt.Sprintf("Se encontraron %d %s", len(errors), pluralize(len(errors), "error", "errores")))
	}
	if len(warnings) > 0 {
		s.Messages = append(s.Messages, fmt.Sprintf("Se encontraron %d %s", len(warnings), pluralize(len(warnings), "advertencia", "advertencias")))
	}
	for _, kind := range kindOrder {
		ks := s.ByKind[kind]
		s.Messages = append(s.Messages, fmt.Sprintf("%d %s", ks.Count, KindLabel(kind)))
	}

	return s
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
