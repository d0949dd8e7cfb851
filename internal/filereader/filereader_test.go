package filereader

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadSpotFileCSV(t *testing.T) {
	data := []byte("lat,lng,Línea,Posición,Lote\n" +
		"4.1,-75.2,1,1,LE\n" +
		"4.2,-75.3,1,2,LE\n")

	rows, err := ReadSpotFile(data, "spots.csv")
	if err != nil {
		t.Fatalf("ReadSpotFile: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["lat"] != "4.1" || rows[0]["Lote"] != "LE" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1]["Posición"] != "2" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestReadSpotFileCSVWithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("lat,lng\n1.0,2.0\n")...)

	rows, err := ReadSpotFile(data, "spots.csv")
	if err != nil {
		t.Fatalf("ReadSpotFile: %v", err)
	}
	if rows[0]["lat"] != "1.0" {
		t.Errorf("BOM not stripped from first header: %v", rows[0])
	}
}

func TestReadSpotFileCSVRaggedRows(t *testing.T) {
	data := []byte("lat,lng,linea\n1.0,2.0\n3.0,4.0,5,extra\n")

	rows, err := ReadSpotFile(data, "spots.csv")
	if err != nil {
		t.Fatalf("ReadSpotFile: %v", err)
	}
	if _, ok := rows[0]["linea"]; ok {
		t.Errorf("short row should not carry the missing column: %v", rows[0])
	}
	if rows[1]["linea"] != "5" {
		t.Errorf("long row lost a cell: %v", rows[1])
	}
}

func TestReadSpotFileCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty file", ""},
		{"header only", "lat,lng\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadSpotFile([]byte(tt.data), "spots.csv"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestReadSpotFileUnsupportedExtension(t *testing.T) {
	if _, err := ReadSpotFile([]byte("x"), "spots.pdf"); err == nil {
		t.Error("expected unsupported-format error")
	}
}

func TestReadSpotFileXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"lat", "lng", "linea", "posicion", "lote_id"},
		{"4.1", "-75.2", "1", "1", "A"},
		{"4.2", "-75.3", "1", "2", "A"},
	}
	for i, cells := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	parsed, err := ReadSpotFile(buf.Bytes(), "spots.xlsx")
	if err != nil {
		t.Fatalf("ReadSpotFile: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("rows = %d, want 2", len(parsed))
	}
	if parsed[0]["lote_id"] != "A" || parsed[1]["posicion"] != "2" {
		t.Errorf("parsed rows = %v", parsed)
	}
}
