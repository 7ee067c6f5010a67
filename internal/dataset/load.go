package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadSamples reads the per-sample table and retains the values of keep columns
// (group keys and metadata). Every column in keep that is listed in required must exist.
func LoadSamples(path string, opt Options, required, keep []string) (*Samples, error) {
	header, rows, err := readTable(path, opt)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	idx := headerIndex(header)
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("missing key column %q", col)}
		}
	}
	keepIdx := map[string]int{}
	for _, col := range keep {
		if i, ok := idx[col]; ok {
			keepIdx[col] = i
		}
	}
	s := &Samples{Name: filepath.Base(path), Columns: header}
	s.Records = make([]SampleRecord, 0, len(rows))
	for _, rec := range rows {
		fields := make(map[string]string, len(keepIdx))
		for col, i := range keepIdx {
			fields[col] = strings.TrimSpace(rec[i])
		}
		s.Records = append(s.Records, SampleRecord{fields: fields})
	}
	return s, nil
}

// LoadSummary reads a group-summary table keyed by keyColumn and opt.FeatureColumn.
// All remaining columns not listed in opt.Exclude are statistics.
func LoadSummary(path, keyColumn string, opt Options) (*SummaryTable, error) {
	header, rows, err := readTable(path, opt)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	featureColumn := opt.FeatureColumn
	if featureColumn == "" {
		featureColumn = DefaultOptions().FeatureColumn
	}
	idx := headerIndex(header)
	keyIdx, ok := idx[keyColumn]
	if !ok {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("missing key column %q", keyColumn)}
	}
	featIdx, ok := idx[featureColumn]
	if !ok {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("missing feature column %q", featureColumn)}
	}
	skip := map[string]struct{}{keyColumn: {}, featureColumn: {}}
	for _, e := range opt.Exclude {
		skip[strings.TrimSpace(e)] = struct{}{}
	}
	t := &SummaryTable{
		Name:          filepath.Base(path),
		KeyColumn:     keyColumn,
		FeatureColumn: featureColumn,
		NonNumeric:    map[string]int{},
	}
	var statIdx []int
	for i, h := range header {
		if _, ok := skip[h]; ok {
			continue
		}
		t.Statistics = append(t.Statistics, h)
		statIdx = append(statIdx, i)
	}
	t.Rows = make([]SummaryRow, 0, len(rows))
	for _, rec := range rows {
		row := SummaryRow{
			Key:     strings.TrimSpace(rec[keyIdx]),
			Feature: strings.TrimSpace(rec[featIdx]),
			Values:  make([]float64, len(statIdx)),
		}
		for j, ci := range statIdx {
			v, ok := parseCell(rec[ci])
			if !ok {
				t.NonNumeric[t.Statistics[j]]++
			}
			row.Values[j] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// readTable reads a delimited file fully, padding short rows to the header width.
func readTable(path string, opt Options) ([]string, [][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return nil, nil, fmt.Errorf("%w: %s (export the table to CSV or TSV)", ErrUnsupportedFormat, filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	// Leading-space trimming would swallow empty fields in tab-separated files.
	r.TrimLeadingSpace = delim != '\t'
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("empty file: no header row")
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	ncol := len(header)
	var rows [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		if len(rec) < ncol {
			tmp := make([]string, ncol)
			copy(tmp, rec)
			rec = tmp
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out-of-range literals parse to ±Inf, which is what the scanner should see.
		var ne *strconv.NumError
		if errors.As(err, &ne) && errors.Is(ne.Err, strconv.ErrRange) {
			return f, nil
		}
		return 0, err
	}
	return f, nil
}
