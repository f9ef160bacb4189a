package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
)

// DecodeCSV reads every row of a CSV stream. Rows may have differing
// lengths; short rows surface as missing cells.
func DecodeCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// EncodeCSV writes rows as CSV with "\n" line endings.
func EncodeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
