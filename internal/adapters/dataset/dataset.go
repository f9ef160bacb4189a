// Package dataset reads reference and real student records from tabular
// files and writes synthetic profile datasets. CSV and XLSX are supported,
// chosen by file extension.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/okian/xscaffold/internal/domain/constraints"
	"github.com/okian/xscaffold/internal/domain/model"
)

// Column names outside the feature set.
const (
	ColumnStudentID = "student_id"
	ColumnScore     = "learning_mastery_score"
	ColumnLevel     = "mastery_level"
	ColumnLevelName = "mastery_level_name"
)

// Format is a tabular file format.
type Format string

// Supported formats.
const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// FormatOf picks the format from a path's extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, nil
	case ".xlsx":
		return XLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Header returns the output column order: id, the features in vector order,
// score, level index and level name.
func Header() []string {
	h := make([]string, 0, model.NumFeatures+4)
	h = append(h, ColumnStudentID)
	h = append(h, model.FeatureNames()...)
	return append(h, ColumnScore, ColumnLevel, ColumnLevelName)
}

// Record is one input row resolved by header name.
type Record struct {
	Row      int // 1-based line in the file, header is row 1
	ID       string
	Features model.FeatureVector
}

// RowError reports an input row that could not be parsed.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// ReadTable loads every row of a CSV or XLSX file, header included.
func ReadTable(path string) ([][]string, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if format == XLSX {
		return DecodeXLSX(f)
	}
	return DecodeCSV(f)
}

// ParseRecords resolves the feature columns by header name. Extra columns
// are ignored; student_id is optional. A missing feature column fails the
// whole table, a bad cell only its row.
func ParseRecords(rows [][]string) ([]Record, []*RowError, error) {
	if len(rows) == 0 {
		return nil, nil, ErrEmptyTable
	}
	idx, idCol, err := resolveHeader(rows[0])
	if err != nil {
		return nil, nil, err
	}

	var records []Record
	var rejected []*RowError
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rowNum := i + 2
		rec := Record{Row: rowNum}
		if idCol >= 0 && idCol < len(row) {
			rec.ID = strings.TrimSpace(row[idCol])
		}
		if err := parseFeatures(row, idx, &rec.Features); err != nil {
			rejected = append(rejected, &RowError{Row: rowNum, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, rejected, nil
}

// ReadRecords reads real records for scoring, reporting bad rows instead of
// failing on them.
func ReadRecords(path string) ([]Record, []*RowError, error) {
	rows, err := ReadTable(path)
	if err != nil {
		return nil, nil, err
	}
	return ParseRecords(rows)
}

// ReadReference reads the reference dataset. Every row must parse: a
// single bad row would silently bias the statistics.
func ReadReference(path string) ([]model.FeatureVector, error) {
	rows, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	records, rejected, err := ParseRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(rejected) > 0 {
		return nil, fmt.Errorf("reference %s: %w", path, rejected[0])
	}
	out := make([]model.FeatureVector, len(records))
	for i, r := range records {
		out[i] = r.Features
	}
	return out, nil
}

func resolveHeader(header []string) ([model.NumFeatures]int, int, error) {
	var idx [model.NumFeatures]int
	for i := range idx {
		idx[i] = -1
	}
	idCol := -1
	for col, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if name == ColumnStudentID {
			idCol = col
			continue
		}
		if f, err := model.ParseFeature(name); err == nil && idx[f] < 0 {
			idx[f] = col
		}
	}
	var missing []string
	for f, col := range idx {
		if col < 0 {
			missing = append(missing, model.Feature(f).String())
		}
	}
	if len(missing) > 0 {
		return idx, idCol, &MissingColumnsError{Columns: missing}
	}
	return idx, idCol, nil
}

func parseFeatures(row []string, idx [model.NumFeatures]int, out *model.FeatureVector) error {
	for f, col := range idx {
		name := model.Feature(f).String()
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			return &model.InvalidFeatureError{Feature: name, Reason: "missing"}
		}
		raw := strings.TrimSpace(row[col])
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return &model.InvalidFeatureError{Feature: name, Reason: "not numeric: " + raw}
		}
		out[f] = x
	}
	return nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ProfileRows renders profiles as table rows, header first. Features use
// their domain precision and scores scorePrecision decimals.
func ProfileRows(profiles []model.StudentProfile, domains constraints.Table, scorePrecision int) [][]string {
	rows := make([][]string, 0, len(profiles)+1)
	rows = append(rows, Header())
	for _, p := range profiles {
		row := make([]string, 0, model.NumFeatures+4)
		row = append(row, p.ID)
		for f, x := range p.Features {
			row = append(row, strconv.FormatFloat(x, 'f', domains[f].Precision, 64))
		}
		row = append(row,
			strconv.FormatFloat(p.Score, 'f', scorePrecision, 64),
			strconv.Itoa(int(p.Level)),
			p.Level.String(),
		)
		rows = append(rows, row)
	}
	return rows
}

// WriteTable writes rows to path in the format its extension selects.
func WriteTable(path string, rows [][]string) (err error) {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return Encode(f, format, rows)
}

// Encode writes rows to w in format.
func Encode(w io.Writer, format Format, rows [][]string) error {
	if format == XLSX {
		return EncodeXLSX(w, rows)
	}
	return EncodeCSV(w, rows)
}

// WriteProfiles writes a profile dataset to path.
func WriteProfiles(path string, profiles []model.StudentProfile, domains constraints.Table, scorePrecision int) error {
	return WriteTable(path, ProfileRows(profiles, domains, scorePrecision))
}
