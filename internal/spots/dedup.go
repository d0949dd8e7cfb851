package spots

import "fmt"

// coordKey renders a coordinate pair rounded to 8 decimal places as a
// fixed-precision string. Two spots closer than ~1mm collapse to the same
// key; comparing strings sidesteps float-equality pitfalls.
func coordKey(lat, lng float64) string {
	return fmt.Sprintf("%.8f,%.8f", lat, lng)
}

// DedupResult holds the deduplicator output.
type DedupResult struct {
	Deduplicated []CleanedRow
	Duplicates   []DuplicateRecord
}

// RemoveDuplicates drops rows whose rounded coordinates collide with an
// earlier row, keeping the first occurrence. One pass, stable: surviving
// rows are never reordered. Each dropped row records the row number of the
// row it duplicates.
func RemoveDuplicates(rows []CleanedRow) DedupResult {
	res := DedupResult{
		Deduplicated: make([]CleanedRow, 0, len(rows)),
	}
	seen := make(map[string]int, len(rows))

	for _, row := range rows {
		key := coordKey(row.Lat, row.Lng)
		if first, ok := seen[key]; ok {
			res.Duplicates = append(res.Duplicates, DuplicateRecord{
				Index:       row.OriginalIndex,
				Reason:      fmt.Sprintf("Coordenadas duplicadas de fila %d", first),
				DuplicateOf: first,
				Row:         row,
			})
			continue
		}
		seen[key] = row.OriginalIndex
		res.Deduplicated = append(res.Deduplicated, row)
	}

	return res
}
