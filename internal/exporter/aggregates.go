package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"cagedcli/internal/config"
	"cagedcli/internal/store"
	"cagedcli/pkg/contracts/domain"
)

// StoreReader is the slice of the store the exporter reads.
type StoreReader interface {
	AggregateRows(ctx context.Context, f store.AggregateFilter) ([]domain.AggregateRow, error)
	QualityReports(ctx context.Context) (map[domain.Period]*domain.QualityReport, error)
}

// WorkbookName is the file name of the Excel summary in the exports
// directory.
const WorkbookName = "caged_summary.xlsx"

// AggregateExporter writes the per-dimension aggregate tables to CSV files
// and to one Excel workbook.
type AggregateExporter struct {
	store  StoreReader
	paths  *config.Paths
	csv    *CSVWriter
	logger *slog.Logger
}

// NewAggregateExporter creates an exporter over an open store.
func NewAggregateExporter(st StoreReader, paths *config.Paths, logger *slog.Logger) *AggregateExporter {
	return &AggregateExporter{
		store:  st,
		paths:  paths,
		csv:    NewCSVWriter(paths),
		logger: logger.With(slog.String("component", "exporter")),
	}
}

var aggregateHeaders = []string{
	"period", "category", "category_name", "admissions",
	"mean_wage", "mean_age", "low_confidence",
}

// ExportAll writes the CSV files and the workbook.
func (e *AggregateExporter) ExportAll(ctx context.Context) error {
	if err := e.ExportCSV(ctx); err != nil {
		return err
	}
	return e.ExportWorkbook(ctx)
}

// ExportCSV writes one aggregates_<dimension>.csv per dimension.
func (e *AggregateExporter) ExportCSV(ctx context.Context) error {
	for _, dim := range domain.Dimensions() {
		rows, err := e.store.AggregateRows(ctx, store.AggregateFilter{Dimension: dim})
		if err != nil {
			return fmt.Errorf("read aggregates for %s: %w", dim, err)
		}

		records := make([][]string, 0, len(rows))
		for i := range rows {
			records = append(records, aggregateRecord(&rows[i]))
		}

		name := fmt.Sprintf("aggregates_%s.csv", dim)
		if err := e.csv.WriteSimpleCSV(name, aggregateHeaders, records); err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
		e.logger.InfoContext(ctx, "csv exported",
			slog.String("file", name), slog.Int("rows", len(records)))
	}
	return nil
}

func aggregateRecord(row *domain.AggregateRow) []string {
	meanWage, meanAge := "", ""
	if v, ok := row.MeanWage(); ok {
		meanWage = formatFloat(v)
	}
	if v, ok := row.MeanAge(); ok {
		meanAge = formatFloat(v)
	}
	return []string{
		row.Period.Key(),
		row.Category,
		row.Dimension.CategoryName(row.Category),
		formatInt(row.Admissions),
		meanWage,
		meanAge,
		formatBool(row.LowConfidence),
	}
}

// ExportWorkbook writes the Excel summary: one sheet per dimension plus a
// quality sheet.
func (e *AggregateExporter) ExportWorkbook(ctx context.Context) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, dim := range domain.Dimensions() {
		sheet := sheetName(dim)
		if i == 0 {
			// Rename the default sheet instead of leaving it empty.
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}

		rows, err := e.store.AggregateRows(ctx, store.AggregateFilter{Dimension: dim})
		if err != nil {
			return fmt.Errorf("read aggregates for %s: %w", dim, err)
		}
		if err := e.writeDimensionSheet(f, sheet, rows); err != nil {
			return err
		}
	}

	if err := e.writeQualitySheet(ctx, f); err != nil {
		return err
	}

	path := e.paths.ExportPath(WorkbookName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	e.logger.InfoContext(ctx, "workbook exported", slog.String("file", path))
	return nil
}

func (e *AggregateExporter) writeDimensionSheet(f *excelize.File, sheet string, rows []domain.AggregateRow) error {
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{
		"Mês", "Categoria", "Admissões", "Salário médio", "Idade média", "Baixa amostra",
	}); err != nil {
		return fmt.Errorf("write header on %s: %w", sheet, err)
	}

	for i := range rows {
		row := &rows[i]
		cells := []interface{}{
			row.Period.Key(),
			row.Dimension.CategoryName(row.Category),
			row.Admissions,
			nil,
			nil,
			row.LowConfidence,
		}
		if v, ok := row.MeanWage(); ok {
			cells[3] = v
		}
		if v, ok := row.MeanAge(); ok {
			cells[4] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write row on %s: %w", sheet, err)
		}
	}
	return nil
}

func (e *AggregateExporter) writeQualitySheet(ctx context.Context, f *excelize.File) error {
	const sheet = "Qualidade"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{
		"Mês", "Linhas", "Incluídas", "Outliers", "Mediana salarial", "P90 salarial", "Peso",
	}); err != nil {
		return fmt.Errorf("write quality header: %w", err)
	}

	reports, err := e.store.QualityReports(ctx)
	if err != nil {
		return fmt.Errorf("read quality reports: %w", err)
	}
	periods := make([]domain.Period, 0, len(reports))
	for p := range reports {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	for i, p := range periods {
		q := reports[p]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{
			p.Key(), q.TotalRows, q.IncludedRows, q.OutlierRows,
			q.WageMedian, q.WageP90, q.Weight(),
		}); err != nil {
			return fmt.Errorf("write quality row: %w", err)
		}
	}
	return nil
}

func sheetName(dim domain.Dimension) string {
	switch dim {
	case domain.DimensionGender:
		return "Sexo"
	case domain.DimensionRace:
		return "Raça"
	case domain.DimensionEducation:
		return "Escolaridade"
	case domain.DimensionDisability:
		return "Deficiência"
	}
	return string(dim)
}
