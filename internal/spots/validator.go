package spots

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Validate runs the full pipeline over raw rows: normalization,
// deduplication (when enabled), cross-row validation, and the outcome
// policy. It is a pure function of its inputs — same rows, catalog and
// options always produce the same Result — and never fails: every row-level
// defect becomes an Issue on the Result.
func Validate(rows []RawRow, lotes []Lote, opts Options) Result {
	cleaning := CleanAndNormalize(rows, lotes)
	cleaned := cleaning.Cleaned

	var duplicates []DuplicateRecord
	if opts.AutoRemoveDuplicates {
		dedup := RemoveDuplicates(cleaned)
		cleaned = dedup.Deduplicated
		duplicates = dedup.Duplicates
	}

	var errors, warnings []Issue

	// Rows dropped during cleaning surface as warnings regardless of the
	// final outcome; they were already filtered out.
	for _, removed := range cleaning.Removed {
		warnings = append(warnings, Issue{
			Kind:     KindFilaRemovida,
			Field:    "general",
			Message:  "Fila removida automáticamente: " + removed.Reason,
			Row:      removed.Index,
			Severity: SeverityWarning,
		})
	}
	for _, dup := range duplicates {
		warnings = append(warnings, Issue{
			Kind:          KindDuplicadoRemovido,
			Field:         "coordenadas",
			Message:       "Fila duplicada removida automáticamente: " + dup.Reason,
			Row:           dup.Index,
			Severity:      SeverityWarning,
			DuplicateWith: []int{dup.DuplicateOf},
		})
	}

	validLoteIDs := make(map[string]struct{}, len(lotes))
	for _, l := range lotes {
		validLoteIDs[l.ID] = struct{}{}
	}

	// Per-run trackers, discarded when the call returns.
	coordRows := make(map[string][]int)          // coord key -> row numbers seen
	loteLineas := make(map[string]map[string]int) // lote -> linea -> first row
	lineaPosiciones := make(map[string]map[string]int) // "lote-linea" -> posicion -> first row

	var validData []CleanedRow

	for _, row := range cleaned {
		rowNum := row.OriginalIndex
		var rowErrors []Issue

		// Coordinate collision. Redundant after deduplication, load-bearing
		// when auto-removal is turned off.
		key := coordKey(row.Lat, row.Lng)
		if prev, ok := coordRows[key]; ok {
			rowErrors = append(rowErrors, Issue{
				Kind:          KindCoordenadasDuplicadas,
				Field:         "coordenadas",
				Message:       fmt.Sprintf("Coordenadas duplicadas (también en %s)", describeRows(prev)),
				Row:           rowNum,
				Severity:      SeverityError,
				DuplicateWith: append([]int(nil), prev...),
			})
			coordRows[key] = append(prev, rowNum)
		} else {
			coordRows[key] = []int{rowNum}
		}

		// Lote membership. An empty catalog disables the check: it means
		// "no validation performed", not "everything invalid".
		if len(validLoteIDs) > 0 {
			if _, ok := validLoteIDs[row.LoteID]; !ok {
				rowErrors = append(rowErrors, Issue{
					Kind:     KindLoteInvalido,
					Field:    "lote",
					Message:  fmt.Sprintf("Lote %q no existe en la finca seleccionada", row.LoteID),
					Row:      rowNum,
					Severity: SeverityError,
					Value:    row.LoteID,
				})
			}
		}

		// Línea reuse within a lote is only a warning: some sources revisit
		// a plot legitimately.
		lineas, ok := loteLineas[row.LoteID]
		if !ok {
			lineas = make(map[string]int)
			loteLineas[row.LoteID] = lineas
		}
		if first, repeated := lineas[row.Linea]; repeated {
			warnings = append(warnings, Issue{
				Kind:     KindLineaRepetida,
				Field:    "linea",
				Message:  fmt.Sprintf("Línea %q se repite en el lote %q (también en fila %d)", row.Linea, row.LoteID, first),
				Row:      rowNum,
				Severity: SeverityWarning,
				Lote:     row.LoteID,
				Linea:    row.Linea,
			})
		} else {
			lineas[row.Linea] = rowNum
		}

		// Posición reuse within the same línea of the same lote.
		lineaKey := row.LoteID + "-" + row.Linea
		posiciones, ok := lineaPosiciones[lineaKey]
		if !ok {
			posiciones = make(map[string]int)
			lineaPosiciones[lineaKey] = posiciones
		}
		if first, repeated := posiciones[row.Posicion]; repeated {
			rowErrors = append(rowErrors, Issue{
				Kind:     KindPosicionRepetida,
				Field:    "posicion",
				Message:  fmt.Sprintf("Posición %q se repite en línea %q del lote %q (también en fila %d)", row.Posicion, row.Linea, row.LoteID, first),
				Row:      rowNum,
				Severity: SeverityError,
				Lote:     row.LoteID,
				Linea:    row.Linea,
				Posicion: row.Posicion,
			})
		} else {
			posiciones[row.Posicion] = rowNum
		}

		errors = append(errors, rowErrors...)

		// Rows with zero error-severity issues enter the valid set.
		if len(rowErrors) == 0 {
			valid := row
			valid.RowNumber = rowNum
			validData = append(validData, valid)
		}
	}

	return buildResult(rows, cleaning, duplicates, errors, warnings, validData)
}

// buildResult applies the outcome policy and assembles the terminal Result.
//
// The policy: as long as at least one row survived, the run is declared
// valid, every error is downgraded to an informational warning (keeping its
// original severity for auditing), and the error list is emptied. Only total
// data loss is reported as failure. The pipeline optimizes for "always
// produce something usable"; structural defects inform the operator but do
// not block progress.
func buildResult(rows []RawRow, cleaning CleaningResult, duplicates []DuplicateRecord, errors, warnings []Issue, validData []CleanedRow) Result {
	removedCount := len(cleaning.Removed)
	dupCount := len(duplicates)
	hasValidData := len(validData) > 0

	finalWarnings := warnings
	var finalErrors []Issue
	if hasValidData {
		finalWarnings = make([]Issue, 0, len(warnings)+len(errors))
		finalWarnings = append(finalWarnings, warnings...)
		for _, e := range errors {
			demoted := e
			demoted.Severity = SeverityInfo
			demoted.OriginalSeverity = SeverityError
			finalWarnings = append(finalWarnings, demoted)
		}
		finalErrors = []Issue{}
	} else {
		finalErrors = errors
	}

	summary := buildSummary(finalErrors, finalWarnings, len(rows))
	if hasValidData {
		summary.Message = fmt.Sprintf("%d datos válidos listos para usar (%d filas corregidas automáticamente)",
			len(validData), removedCount+dupCount)
	} else {
		summary.Message = "No hay datos válidos después de la limpieza"
	}

	return Result{
		IsValid:     hasValidData,
		HasWarnings: len(finalWarnings) > 0,
		Errors:      finalErrors,
		Warnings:    finalWarnings,
		ValidData:   validData,
		Summary:     summary,
		Stats: Stats{
			TotalRows:   len(rows),
			ValidRows:   len(validData),
			ErrorRows:   len(finalErrors),
			WarningRows: len(finalWarnings),
			CleaningStats: CleaningStats{
				RowsRemoved:       removedCount,
				DuplicatesRemoved: dupCount,
				CleanedRows:       len(cleaning.Cleaned),
				FinalValidRows:    len(validData),
				CorrectedIssues:   removedCount + dupCount + len(errors),
			},
		},
		CleaningInfo: CleaningInfo{
			RemovedRows:         cleaning.Removed,
			DuplicatesRemoved:   duplicates,
			AutoCleaningApplied: true,
			AutoCorrected:       hasValidData,
			Message:             fmt.Sprintf("Sistema corrigió automáticamente %d problemas", removedCount+dupCount),
		},
	}
}

// describeRows renders "fila 4" or "filas 4, 7" for collision messages.
func describeRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = strconv.Itoa(r)
	}
	noun := "fila"
	if len(rows) > 1 {
		noun = "filas"
	}
	return noun + " " + strings.Join(parts, ", ")
}

// FilterByLote returns the rows belonging to one lote, preserving order.
func FilterByLote(rows []CleanedRow, loteID string) []CleanedRow {
	var out []CleanedRow
	for _, r := range rows {
		if r.LoteID == loteID {
			out = append(out, r)
		}
	}
	return out
}

// UniqueLotes returns the sorted set of lote ids present in the rows.
func UniqueLotes(rows []CleanedRow) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		if r.LoteID == "" {
			continue
		}
		if _, ok := seen[r.LoteID]; !ok {
			seen[r.LoteID] = struct{}{}
			out = append(out, r.LoteID)
		}
	}
	sort.Strings(out)
	return out
}
