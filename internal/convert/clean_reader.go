package convert

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"cagedcli/pkg/contracts/domain"
)

// CleanReader streams normalized records back from a clean CSV.
type CleanReader struct {
	file *os.File
	csv  *csv.Reader
	idx  map[string]int
}

// OpenClean opens a clean CSV written by the converter.
func OpenClean(path string) (*CleanReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clean file: %w", err)
	}

	cr := csv.NewReader(file)
	header, err := cr.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read clean header of %s: %w", path, err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, name := range cleanColumns {
		if _, ok := idx[name]; !ok {
			file.Close()
			return nil, fmt.Errorf("clean file %s missing column %s", path, name)
		}
	}
	return &CleanReader{file: file, csv: cr, idx: idx}, nil
}

// Next returns the next record, io.EOF at the end. Clean files are written
// by this pipeline, so a malformed row here is a real error rather than a
// skip case.
func (r *CleanReader) Next() (*domain.MovementRecord, error) {
	row, err := r.csv.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read clean row: %w", err)
	}

	period, err := domain.ParsePeriod(row[r.idx["competencia_mov"]])
	if err != nil {
		return nil, err
	}
	age, err := strconv.Atoi(row[r.idx["idade"]])
	if err != nil {
		return nil, fmt.Errorf("parse clean age: %w", err)
	}
	wage, err := strconv.ParseFloat(row[r.idx["salario"]], 64)
	if err != nil {
		return nil, fmt.Errorf("parse clean wage: %w", err)
	}

	return &domain.MovementRecord{
		Period:       period,
		Municipality: row[r.idx["municipio"]],
		CNAESubclass: row[r.idx["cnae20subclasse"]],
		Occupation:   row[r.idx["cbo2002ocupacao"]],
		Education:    row[r.idx["grau_instrucao"]],
		Age:          age,
		Race:         row[r.idx["raca_cor"]],
		Gender:       row[r.idx["genero"]],
		Wage:         wage,
		MovementType: row[r.idx["tipo_movimentacao"]],
		Disability:   row[r.idx["tipo_deficiencia"]],
	}, nil
}

// Close closes the underlying file.
func (r *CleanReader) Close() error {
	return r.file.Close()
}
