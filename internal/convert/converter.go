package convert

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"cagedcli/internal/config"
	"cagedcli/internal/pipeline"
	"cagedcli/pkg/contracts/domain"
)

// cleanColumns is the fixed column order of normalized CSV files. The
// aggregator depends on it.
var cleanColumns = []string{
	"competencia_mov", "municipio", "cnae20subclasse", "cbo2002ocupacao",
	"grau_instrucao", "idade", "raca_cor", "genero", "salario",
	"tipo_movimentacao", "tipo_deficiencia",
}

// admissionTypes are the tipomovimentação codes that record an admission.
var admissionTypes = map[int]bool{10: true, 20: true, 25: true}

// FileResult summarizes the conversion of one raw file.
type FileResult struct {
	File        string
	Encoding    string
	RowsRead    int64
	RowsKept    int64
	RowsFiltered int64 // non-admission movements
	RowsDropped int64  // unparseable wage/age/period or truncated row
	Periods     []string
}

// Converter owns the conversion stage.
type Converter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewConverter builds the conversion stage.
func NewConverter(paths *config.Paths, logger *slog.Logger) *Converter {
	return &Converter{
		paths:  paths,
		logger: logger.With(slog.String("component", "converter")),
	}
}

// Name implements pipeline.Stage.
func (c *Converter) Name() string { return "convert" }

// Run implements pipeline.Stage: extract archives, then convert every raw
// TXT file in the downloads directory. A file whose header cannot be
// resolved is skipped with a logged error; other files proceed.
func (c *Converter) Run(ctx context.Context) error {
	_, err := c.Convert(ctx)
	return err
}

// Convert runs the stage and returns per-file results.
func (c *Converter) Convert(ctx context.Context) ([]FileResult, error) {
	if err := ExtractArchives(c.paths.DownloadsDir, c.logger); err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(c.paths.DownloadsDir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("glob raw files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("downloads directory %s: %w", c.paths.DownloadsDir, pipeline.ErrNoInputData)
	}
	sort.Strings(files)

	writers := newCleanWriterSet(c.paths)
	defer writers.CloseAll()

	var results []FileResult
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := c.convertFile(path, writers)
		if err != nil {
			c.logger.Error("skipping raw file",
				slog.String("file", filepath.Base(path)),
				slog.String("error", err.Error()))
			continue
		}
		c.logger.Info("converted raw file",
			slog.String("file", filepath.Base(path)),
			slog.String("encoding", result.Encoding),
			slog.Int64("rows_read", result.RowsRead),
			slog.Int64("rows_kept", result.RowsKept),
			slog.Int64("rows_filtered", result.RowsFiltered),
			slog.Int64("rows_dropped", result.RowsDropped))
		results = append(results, *result)
	}

	if err := writers.CloseAll(); err != nil {
		return results, err
	}
	return results, nil
}

func (c *Converter) convertFile(path string, writers *cleanWriterSet) (*FileResult, error) {
	r, err := openRaw(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return c.convertRows(filepath.Base(path), r, writers)
}

func (c *Converter) convertRows(name string, r *rawReader, writers *cleanWriterSet) (*FileResult, error) {
	result := &FileResult{File: name, Encoding: r.encoding}
	seen := make(map[string]bool)

	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			result.RowsRead++
			result.RowsDropped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		result.RowsRead++

		rec, outcome := c.normalizeRow(r, row)
		switch outcome {
		case rowKept:
			if err := writers.Write(rec); err != nil {
				return nil, err
			}
			result.RowsKept++
			if key := rec.Period.String(); !seen[key] {
				seen[key] = true
				result.Periods = append(result.Periods, key)
			}
		case rowFiltered:
			result.RowsFiltered++
		case rowDropped:
			result.RowsDropped++
		}
	}

	sort.Strings(result.Periods)
	return result, nil
}

type rowOutcome int

const (
	rowKept rowOutcome = iota
	rowFiltered
	rowDropped
)

var digitsOnly = regexp.MustCompile(`[^0-9]`)

// normalizeRow applies the documented row policy to one raw row.
func (c *Converter) normalizeRow(r *rawReader, row []string) (*domain.MovementRecord, rowOutcome) {
	movement := strings.TrimSpace(r.Field(row, colMovementType))
	if !isAdmission(movement, strings.TrimSpace(r.Field(row, colBalance))) {
		return nil, rowFiltered
	}

	periodStr := digitsOnly.ReplaceAllString(r.Field(row, colPeriod), "")
	period, err := domain.ParsePeriod(periodStr)
	if err != nil {
		return nil, rowDropped
	}

	wage, ok := parseWage(r.Field(row, colWage))
	if !ok {
		return nil, rowDropped
	}
	age, err := strconv.Atoi(strings.TrimSpace(r.Field(row, colAge)))
	if err != nil {
		return nil, rowDropped
	}

	disability := domain.CodeUnknown
	if r.Has(colDisability) {
		disability = domain.DimensionDisability.Normalize(strings.TrimSpace(r.Field(row, colDisability)))
	}

	return &domain.MovementRecord{
		Period:       period,
		Municipality: strings.TrimSpace(r.Field(row, colMunicipality)),
		CNAESubclass: strings.TrimSpace(r.Field(row, colCNAE)),
		Occupation:   strings.TrimSpace(r.Field(row, colOccupation)),
		Education:    domain.DimensionEducation.Normalize(strings.TrimSpace(r.Field(row, colEducation))),
		Age:          age,
		Race:         domain.DimensionRace.Normalize(strings.TrimSpace(r.Field(row, colRace))),
		Gender:       domain.DimensionGender.Normalize(strings.TrimSpace(r.Field(row, colGender))),
		Wage:         wage,
		MovementType: movement,
		Disability:   disability,
	}, rowKept
}

// isAdmission applies the admission filter: numeric movement codes 10/20/25,
// a textual "admissão" variant, or a +1 movement balance when the layout
// carries one.
func isAdmission(movement, balance string) bool {
	if n, err := strconv.Atoi(movement); err == nil && admissionTypes[n] {
		return true
	}
	if strings.Contains(normalizeHeader(movement), "admi") {
		return true
	}
	return balance == "1"
}

// parseWage parses the Brazilian decimal format: thousands dots, comma
// decimal separator ("1.234,56").
func parseWage(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	wage, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return wage, true
}

// cleanWriterSet holds one open clean CSV per period, created lazily. A
// period touched in this run starts from a truncated file, so conversion is
// overwrite-by-period idempotent.
type cleanWriterSet struct {
	paths   *config.Paths
	writers map[string]*cleanWriter
}

type cleanWriter struct {
	file *os.File
	csv  *csv.Writer
}

func newCleanWriterSet(paths *config.Paths) *cleanWriterSet {
	return &cleanWriterSet{paths: paths, writers: make(map[string]*cleanWriter)}
}

func (s *cleanWriterSet) Write(rec *domain.MovementRecord) error {
	key := rec.Period.String()
	w, ok := s.writers[key]
	if !ok {
		file, err := os.Create(s.paths.CleanCSVPath(key))
		if err != nil {
			return fmt.Errorf("create clean file for %s: %w", key, err)
		}
		w = &cleanWriter{file: file, csv: csv.NewWriter(file)}
		if err := w.csv.Write(cleanColumns); err != nil {
			return fmt.Errorf("write clean header: %w", err)
		}
		s.writers[key] = w
	}

	return w.csv.Write([]string{
		rec.Period.String(),
		rec.Municipality,
		rec.CNAESubclass,
		rec.Occupation,
		rec.Education,
		strconv.Itoa(rec.Age),
		rec.Race,
		rec.Gender,
		strconv.FormatFloat(rec.Wage, 'f', 2, 64),
		rec.MovementType,
		rec.Disability,
	})
}

// CloseAll flushes and closes every writer. Safe to call twice.
func (s *cleanWriterSet) CloseAll() error {
	var firstErr error
	for key, w := range s.writers {
		w.csv.Flush()
		if err := w.csv.Error(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush clean file %s: %w", key, err)
		}
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close clean file %s: %w", key, err)
		}
		delete(s.writers, key)
	}
	return firstErr
}
