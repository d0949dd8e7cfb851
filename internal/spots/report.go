package spots

import (
	"strconv"
	"strings"
)

// DefaultReportFilename is used when the caller does not name the download.
const DefaultReportFilename = "reporte_errores.csv"

var reportHeader = []string{"Fila", "Tipo", "Severidad", "Campo", "Mensaje"}

// ErrorReportCSV renders the flat issue list (errors first, then warnings)
// as delimited text for download. Every cell is quoted so free-text messages
// with commas survive. Returns "" when there is nothing to report.
func ErrorReportCSV(errors, warnings []Issue) string {
	if len(errors)+len(warnings) == 0 {
		return ""
	}

	var b strings.Builder
	writeReportLine(&b, reportHeader)
	for _, issue := range errors {
		writeReportLine(&b, issueCells(issue))
	}
	for _, issue := range warnings {
		writeReportLine(&b, issueCells(issue))
	}
	return b.String()
}

func issueCells(issue Issue) []string {
	return []string{
		strconv.Itoa(issue.Row),
		string(issue.Kind),
		string(issue.Severity),
		issue.Field,
		issue.Message,
	}
}

func writeReportLine(b *strings.Builder, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}
