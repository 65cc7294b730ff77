package convert

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// candidate encodings in detection order. The ministry has shipped all
// three across extractions.
var candidateEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", unicode.UTF8},
	{"cp1252", charmap.Windows1252},
	{"latin-1", charmap.ISO8859_1},
}

// minResolvedColumns is how many required columns a decoded header must
// resolve for the encoding to be accepted. Below that the header is
// probably mojibake from the wrong charset.
const minResolvedColumns = 5

// rawReader decodes one raw TXT file with a detected encoding and resolved
// header layout.
type rawReader struct {
	file     *os.File
	csv      *csv.Reader
	encoding string
	columns  map[column]int
	missing  []column
}

// openRaw tries each candidate encoding until the header resolves. The file
// is re-opened per attempt; the returned reader is positioned after the
// header row.
func openRaw(path string) (*rawReader, error) {
	var lastMissing []column
	for _, cand := range candidateEncodings {
		r, err := tryEncoding(path, cand.name, cand.enc)
		if err != nil {
			return nil, err
		}
		if len(r.columns) >= minResolvedColumns {
			if len(r.missing) > 0 {
				r.file.Close()
				return nil, fmt.Errorf("%s: missing required columns %v (encoding %s)", path, r.missing, cand.name)
			}
			return r, nil
		}
		lastMissing = r.missing
		r.file.Close()
	}
	return nil, fmt.Errorf("%s: header unresolvable in any known encoding, missing %v", path, lastMissing)
}

func tryEncoding(path, name string, enc encoding.Encoding) (*rawReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	cr := csv.NewReader(enc.NewDecoder().Reader(file))
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		file.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("%s: empty file", path)
		}
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	columns, missing := resolveColumns(header)
	return &rawReader{
		file:     file,
		csv:      cr,
		encoding: name,
		columns:  columns,
		missing:  missing,
	}, nil
}

// Next returns the next data row, io.EOF at the end.
func (r *rawReader) Next() ([]string, error) {
	return r.csv.Read()
}

// Field returns the row's value for a canonical column, or "" when the row
// is too short or the column was not present in this file.
func (r *rawReader) Field(row []string, c column) string {
	idx, ok := r.columns[c]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Has reports whether the file carries an optional column.
func (r *rawReader) Has(c column) bool {
	_, ok := r.columns[c]
	return ok
}

func (r *rawReader) Close() error {
	return r.file.Close()
}
