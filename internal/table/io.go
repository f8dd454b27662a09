package table

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const sheetName = "Sheet1"

func readCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "table: open csv")
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // allow variable fields
	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, eris.Wrap(err, "table: read csv")
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[0], all[1:], nil
}

func readXLSX(path string) (header []string, rows [][]string, err error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "table: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, nil, eris.Errorf("table: %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if i == 0 {
			header = cells
			continue
		}
		rows = append(rows, cells)
	}
	return header, rows, nil
}

// Checkpoint atomically rewrites the sheet: a full write to a temp file in
// the same directory, then a rename over the original.
func (t *Table) Checkpoint() error {
	dir := filepath.Dir(t.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(t.path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "table: create temp")
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	if err := t.writeTo(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "table: rename checkpoint")
	}
	return nil
}

func (t *Table) writeTo(path string) error {
	if t.xlsx {
		return t.writeXLSX(path)
	}
	return t.writeCSV(path)
}

func (t *Table) writeCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "table: create csv")
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.header); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "table: write header")
	}
	if err := w.WriteAll(t.rows); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "table: write rows")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "table: flush csv")
	}
	return eris.Wrap(f.Close(), "table: close csv")
}

func (t *Table) writeXLSX(path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "table: add sheet")
	}

	hdr := sheet.AddRow()
	for _, name := range t.header {
		hdr.AddCell().SetString(name)
	}
	for _, row := range t.rows {
		r := sheet.AddRow()
		for _, val := range row {
			r.AddCell().SetString(val)
		}
	}

	return eris.Wrap(f.Save(path), "table: save xlsx")
}
