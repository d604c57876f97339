// Package repository loads and stores spend records in CSV files and Postgres.
package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend"
)

// RequiredColumns are the headers a spend CSV must carry.
var RequiredColumns = []string{"campaign", "month", "year", "channel", "spend"}

// spendRow is the raw CSV row; numeric fields stay strings so one bad cell
// skips a row instead of failing the whole file.
type spendRow struct {
	Campaign string `csv:"campaign"`
	Month    string `csv:"month"`
	Year     string `csv:"year"`
	Channel  string `csv:"channel"`
	Spend    string `csv:"spend"`
}

// RowError describes a CSV row that could not be turned into a record.
type RowError struct {
	Line    int
	Column  string
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d, column %s: %s", e.Line, e.Column, e.Message)
}

// ParseResult contains the records parsed from a CSV file
type ParseResult struct {
	Records   []spend.Record
	Errors    []RowError
	TotalRows int
}

// Parse reads spend records from r. An empty input yields no records and no
// error; a header without one of RequiredColumns is an error.
func Parse(r io.Reader) (*ParseResult, error) {
	result := &ParseResult{Records: make([]spend.Record, 0, 64)}

	reader := &headerRecorder{CSVReader: newCSVReader(r)}
	var rows []spendRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	if missing := missingColumns(reader.header); len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	result.TotalRows = len(rows)
	for i, row := range rows {
		line := i + 2 // 1-indexed plus header

		record, rowErr := processRow(row, line)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Records = append(result.Records, record)
	}

	return result, nil
}

func processRow(row spendRow, line int) (spend.Record, *RowError) {
	month, err := strconv.Atoi(strings.TrimSpace(row.Month))
	if err != nil {
		return spend.Record{}, &RowError{Line: line, Column: "month", Message: "not an integer: " + row.Month}
	}
	year, err := strconv.Atoi(strings.TrimSpace(row.Year))
	if err != nil {
		return spend.Record{}, &RowError{Line: line, Column: "year", Message: "not an integer: " + row.Year}
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(row.Spend), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return spend.Record{}, &RowError{Line: line, Column: "spend", Message: "not a number: " + row.Spend}
	}

	record := spend.Record{
		Campaign: strings.TrimSpace(row.Campaign),
		Month:    month,
		Year:     year,
		Channel:  strings.TrimSpace(row.Channel),
		Spend:    amount,
	}
	if err := record.Validate(); err != nil {
		return spend.Record{}, &RowError{Line: line, Column: "record", Message: err.Error()}
	}
	return record, nil
}

func missingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}

	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	return reader
}

// headerRecorder keeps the header row gocsv consumed.
type headerRecorder struct {
	gocsv.CSVReader
	header []string
}

func (h *headerRecorder) Read() ([]string, error) {
	record, err := h.CSVReader.Read()
	if err == nil && h.header == nil {
		h.header = append([]string(nil), record...)
	}
	return record, err
}

func (h *headerRecorder) ReadAll() ([][]string, error) {
	records, err := h.CSVReader.ReadAll()
	if err == nil && h.header == nil && len(records) > 0 {
		h.header = append([]string(nil), records[0]...)
	}
	return records, err
}

// CSVRepository reads and writes the spend dataset as a CSV file.
type CSVRepository struct {
	path   string
	logger *slog.Logger
}

// NewCSVRepository creates a repository bound to one CSV file.
func NewCSVRepository(path string, logger *slog.Logger) *CSVRepository {
	return &CSVRepository{path: path, logger: logger}
}

// Path returns the file the repository reads and writes.
func (r *CSVRepository) Path() string {
	return r.path
}

// Load reads every valid record from the CSV file. A file that does not exist
// or cannot be opened is reported as a spend.MissingInputError.
func (r *CSVRepository) Load(ctx context.Context) ([]spend.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(r.path)
	if err != nil {
		return nil, &spend.MissingInputError{Source: r.path, Err: err}
	}
	if info.IsDir() {
		return nil, &spend.MissingInputError{Source: r.path, Err: errors.New("path is a directory")}
	}

	file, err := os.Open(r.path)
	if err != nil {
		return nil, &spend.MissingInputError{Source: r.path, Err: err}
	}
	defer file.Close()

	result, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.path, err)
	}

	for _, rowErr := range result.Errors {
		r.logger.Warn("skipping malformed spend row",
			slog.String("file", r.path),
			slog.Int("line", rowErr.Line),
			slog.String("column", rowErr.Column),
			slog.String("reason", rowErr.Message),
		)
	}

	r.logger.Debug("loaded spend records",
		slog.String("file", r.path),
		slog.Int("rows", result.TotalRows),
		slog.Int("records", len(result.Records)),
		slog.Int("skipped", len(result.Errors)),
	)

	return result.Records, nil
}

// Save replaces the CSV file with records, creating parent directories. The
// data goes to a temporary file in the same directory that is renamed over the
// target, so readers never see a partial file.
func (r *CSVRepository) Save(ctx context.Context, records []spend.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.CreateTemp(dir, ".spend-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", r.path, err)
	}
	tmp := file.Name()

	if records == nil {
		records = []spend.Record{}
	}
	if err := gocsv.Marshal(&records, file); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", r.path, err)
	}

	r.logger.Info("wrote spend dataset",
		slog.String("file", r.path),
		slog.Int("records", len(records)),
	)
	return nil
}
