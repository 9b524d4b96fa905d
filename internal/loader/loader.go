// Package loader reads raw oracle price exports (CSV or XLSX) and normalizes them into a
// time-sorted series with confidence in basis points.
package loader

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rewired-gh/oracleconf/internal/logger"
	"github.com/rewired-gh/oracleconf/internal/models"
)

// BasisPoints converts a fractional confidence into basis points.
const BasisPoints = 10000.0

// Columns names the raw columns holding each series field.
type Columns struct {
	Timestamp  string
	Price      string
	Confidence string
}

// DefaultColumns matches the column names of a Pyth price export.
func DefaultColumns() Columns {
	return Columns{
		Timestamp:  "publishTime",
		Price:      "price",
		Confidence: "confidence",
	}
}

// Options controls how a raw file is read and normalized.
type Options struct {
	Columns         Columns
	Sheet           string // xlsx only; empty = first sheet
	ConfidenceScale float64
	Location        *time.Location
}

// DefaultOptions returns options for a Pyth export in UTC.
func DefaultOptions() Options {
	return Options{
		Columns:         DefaultColumns(),
		ConfidenceScale: BasisPoints,
		Location:        time.UTC,
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Load reads path as CSV (.csv) or XLSX (.xlsx) and returns the normalized series.
func Load(path string, opts Options) (models.Series, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("input file not accessible: %w", err)
	}

	var rows [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path, opts.Sheet)
	default:
		return nil, fmt.Errorf("unsupported input file type: %q", ext)
	}
	if err != nil {
		return nil, err
	}

	series, err := Normalize(rows, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logger.Info("Loaded %d records from %s", len(series), path)
	logger.Info("Time range: %s to %s",
		time.Unix(series[0].Time, 0).UTC().Format(time.RFC3339),
		time.Unix(series[len(series)-1].Time, 0).UTC().Format(time.RFC3339))
	return series, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("excel file has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// Normalize keeps the configured columns of rows (header first), sorts by time, scales
// confidence into basis points and validates the result.
func Normalize(rows [][]string, opts Options) (models.Series, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("input must have a header row and at least one data row")
	}
	if opts.ConfidenceScale <= 0 {
		return nil, fmt.Errorf("confidence scale must be positive, got %v", opts.ConfidenceScale)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		header[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	tsIdx, ok := header[opts.Columns.Timestamp]
	if !ok {
		return nil, fmt.Errorf("missing timestamp column %q", opts.Columns.Timestamp)
	}
	priceIdx, ok := header[opts.Columns.Price]
	if !ok {
		return nil, fmt.Errorf("missing price column %q", opts.Columns.Price)
	}
	confIdx, ok := header[opts.Columns.Confidence]
	if !ok {
		return nil, fmt.Errorf("missing confidence column %q", opts.Columns.Confidence)
	}

	series := make(models.Series, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if isBlank(row) {
			continue
		}
		ts, err := parseTimestamp(cell(row, tsIdx), loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		price, err := parseNumber(cell(row, priceIdx))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid price: %w", line, err)
		}
		conf, err := parseNumber(cell(row, confIdx))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid confidence: %w", line, err)
		}
		series = append(series, models.Observation{
			Time:       ts,
			Price:      price,
			Confidence: conf * opts.ConfidenceScale,
		})
	}

	sort.SliceStable(series, func(a, b int) bool {
		return series[a].Time < series[b].Time
	})

	if err := series.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Processed data: %d records", len(series))
	return series, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// parseTimestamp accepts epoch seconds or a date-time string and returns epoch seconds.
func parseTimestamp(s string, loc *time.Location) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return int64(math.Floor(v)), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized timestamp %q", s)
}
