package dataset

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// sheetName is the sheet a new workbook starts with.
const sheetName = "Sheet1"

// DecodeXLSX reads every row of the first sheet of a workbook.
func DecodeXLSX(r io.Reader) (rows [][]string, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}
	rows, err = f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// EncodeXLSX writes rows to a single-sheet workbook. The first row is the
// header. Cells that parse as numbers are stored as numbers, except in the
// identifier and level name columns, which are always text so ids such as
// 00123 keep their leading zeros.
func EncodeXLSX(w io.Writer, rows [][]string) (err error) {
	f := excelize.NewFile()
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	var text map[int]bool
	if len(rows) > 0 {
		text = textColumns(rows[0])
	}
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = cellValue(c, i == 0 || text[j])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// textColumns returns the indexes of the header columns kept as text.
func textColumns(header []string) map[int]bool {
	text := make(map[int]bool)
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ColumnStudentID, ColumnLevelName:
			text[i] = true
		}
	}
	return text
}

func cellValue(c string, asText bool) interface{} {
	if asText {
		return c
	}
	if x, err := strconv.ParseFloat(c, 64); err == nil {
		return x
	}
	return c
}
