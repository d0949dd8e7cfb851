package spots

// RawRow is one source line from a spot file, keyed by the original column
// names. Header variants (accents, case, synonyms) are resolved later by the
// column alias table; values arrive as raw strings from the tabular parser.
type RawRow map[string]string

// Lote is one plot from the finca catalog. The catalog is fetched externally
// and passed read-only into every validation run.
type Lote struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
	Sigla  string `json:"sigla,omitempty"`
}

// Severity classifies how an Issue affects the outcome of a run.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IssueKind identifies the category of a data-quality finding. The values are
// the wire-level codes the report UI groups by.
type IssueKind string

const (
	KindFilaRemovida          IssueKind = "FILA_REMOVIDA"
	KindDuplicadoRemovido     IssueKind = "DUPLICADO_REMOVIDO"
	KindCoordenadasDuplicadas IssueKind = "COORDENADAS_DUPLICADAS"
	KindLoteInvalido          IssueKind = "LOTE_INVALIDO"
	KindLineaRepetida         IssueKind = "LINEA_REPETIDA"
	KindPosicionRepetida      IssueKind = "POSICION_REPETIDA"
)

// Issue is a single data-quality finding attached to one source row. Row-level
// defects never abort the pipeline; every defect becomes an Issue.
type Issue struct {
	Kind     IssueKind `json:"type"`
	Field    string    `json:"field"`
	Message  string    `json:"message"`
	Row      int       `json:"row"`
	Severity Severity  `json:"severity"`

	// OriginalSeverity records the pre-policy severity when the outcome
	// policy downgrades an error to informational.
	OriginalSeverity Severity `json:"originalSeverity,omitempty"`

	// Context for specific kinds.
	DuplicateWith []int  `json:"duplicateWith,omitempty"`
	Value         string `json:"value,omitempty"`
	Lote          string `json:"lote,omitempty"`
	Linea         string `json:"linea,omitempty"`
	Posicion      string `json:"posicion,omitempty"`
}

// CleanedRow is one spot after normalization: typed coordinates, trimmed
// non-empty fields, and the lote value mapped to its catalog id when a
// name/sigla match exists.
type CleanedRow struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Linea      string  `json:"linea"`
	Posicion   string  `json:"posicion"`
	LoteID     string  `json:"lote_id"`
	LoteNombre string  `json:"lote_nombre"`

	// OriginalIndex is the spreadsheet row number (1-based position in the
	// data plus the header row offset). Monotonic in emission order.
	OriginalIndex int `json:"originalIndex"`

	// RowNumber is stamped when the row enters the valid set. Equal to
	// OriginalIndex; kept separate so callers can tell a validated row
	// from a merely cleaned one.
	RowNumber int `json:"rowNumber,omitempty"`
}

// RejectedRow is a source row dropped during normalization, with the reason.
type RejectedRow struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Row    RawRow `json:"row,omitempty"`
}

// DuplicateRecord is a cleaned row dropped by the deduplicator because its
// rounded coordinates collide with an earlier row.
type DuplicateRecord struct {
	Index       int        `json:"index"`
	Reason      string     `json:"reason"`
	DuplicateOf int        `json:"duplicateOf"`
	Row         CleanedRow `json:"row"`
}

// KindSummary aggregates all issues of one kind.
type KindSummary struct {
	Count    int      `json:"count"`
	Severity Severity `json:"severity"`
	Rows     []int    `json:"rows"`
}

// Summary is the human-facing aggregation of a run's findings.
type Summary struct {
	Total    int                        `json:"total"`
	Errors   int                        `json:"errors"`
	Warnings int                        `json:"warnings"`
	ByKind   map[IssueKind]*KindSummary `json:"byType"`
	Messages []string                   `json:"messages"`
	Message  string                     `json:"message"`
}

// CleaningStats counts what the normalizer and deduplicator did.
type CleaningStats struct {
	RowsRemoved       int `json:"rowsRemoved"`
	DuplicatesRemoved int `json:"duplicatesRemoved"`
	CleanedRows       int `json:"cleanedRows"`
	FinalValidRows    int `json:"finalValidRows"`
	CorrectedIssues   int `json:"correctedIssues"`
}

// Stats are the per-run row counters.
type Stats struct {
	TotalRows     int           `json:"totalRows"`
	ValidRows     int           `json:"validRows"`
	ErrorRows     int           `json:"errorRows"`
	WarningRows   int           `json:"warningRows"`
	CleaningStats CleaningStats `json:"cleaningStats"`
}

// CleaningInfo itemizes the automatic corrections applied during a run.
type CleaningInfo struct {
	RemovedRows         []RejectedRow     `json:"removedRows"`
	DuplicatesRemoved   []DuplicateRecord `json:"duplicatesRemoved"`
	AutoCleaningApplied bool              `json:"autoCleaningApplied"`
	AutoCorrected       bool              `json:"autoCorrected"`
	Message             string            `json:"message"`
}

// Result is the terminal output of one validation run.
type Result struct {
	IsValid      bool         `json:"isValid"`
	HasWarnings  bool         `json:"hasWarnings"`
	Errors       []Issue      `json:"errors"`
	Warnings     []Issue      `json:"warnings"`
	ValidData    []CleanedRow `json:"validData"`
	Summary      Summary      `json:"summary"`
	Stats        Stats        `json:"stats"`
	CleaningInfo CleaningInfo `json:"cleaningInfo"`
}

// Options control optional pipeline stages.
type Options struct {
	// AutoRemoveDuplicates drops coordinate-collision rows before
	// validation, keeping the first occurrence. The cross-row check still
	// runs either way as a safety net.
	AutoRemoveDuplicates bool
}

// DefaultOptions matches the behavior of the upload UI: duplicates are
// removed automatically.
func DefaultOptions() Options {
	return Options{AutoRemoveDuplicates: true}
}
