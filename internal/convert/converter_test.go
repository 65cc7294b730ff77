package convert

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"cagedcli/internal/config"
	"cagedcli/internal/pipeline"
	"cagedcli/pkg/contracts/domain"
)

const rawHeader = "competênciamov;município;cnae20subclasse;cbo2002ocupação;graudeinstrução;idade;raçacor;sexo;salário;tipomovimentação;tipodedeficiência"

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	dir := t.TempDir()
	paths := &config.Paths{
		DataDir:      dir,
		DownloadsDir: filepath.Join(dir, "downloads"),
		CleanDir:     filepath.Join(dir, "clean"),
		ExportsDir:   filepath.Join(dir, "exports"),
		StoreFile:    filepath.Join(dir, "caged.db"),
		ManifestFile: filepath.Join(dir, "manifest.txt"),
	}
	require.NoError(t, paths.EnsureDirectories())
	return paths
}

func writeRaw(t *testing.T, paths *config.Paths, name string, lines ...string) {
	t.Helper()
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(paths.DownloadsDir, name), []byte(content), 0644))
}

func newTestConverter(paths *config.Paths) *Converter {
	return NewConverter(paths, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func readCleanFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestConvert(t *testing.T) {
	t.Run("admissions are normalized into per-period clean files", func(t *testing.T) {
		paths := testPaths(t)
		writeRaw(t, paths, "CAGEDMOV202301.txt",
			rawHeader,
			"202301;355030;4711301;521110;5;30;1;1;1.234,56;10;0",
			"202301;410690;4711301;521110;7;45;2;3;3.500,00;20;1",
			"202301;355030;4711301;521110;5;28;1;1;2.000,00;31;0", // desligamento, filtered
			"202302;292740;4711301;521110;3;22;3;1;1.800,99;25;0",
		)

		results, err := newTestConverter(paths).Convert(context.Background())
		require.NoError(t, err)
		require.Len(t, results, 1)

		r := results[0]
		assert.Equal(t, "CAGEDMOV202301.txt", r.File)
		assert.Equal(t, "utf-8", r.Encoding)
		assert.Equal(t, int64(4), r.RowsRead)
		assert.Equal(t, int64(3), r.RowsKept)
		assert.Equal(t, int64(1), r.RowsFiltered)
		assert.Equal(t, int64(0), r.RowsDropped)
		assert.Equal(t, []string{"202301", "202302"}, r.Periods)

		jan := readCleanFile(t, paths.CleanCSVPath("202301"))
		require.Len(t, jan, 3) // header + 2 admissions
		assert.Equal(t, cleanColumns, jan[0])
		assert.Equal(t, []string{"202301", "355030", "4711301", "521110", "5", "30", "1", "1", "1234.56", "10", "0"}, jan[1])
		assert.Equal(t, []string{"202301", "410690", "4711301", "521110", "7", "45", "2", "3", "3500.00", "20", "1"}, jan[2])

		feb := readCleanFile(t, paths.CleanCSVPath("202302"))
		require.Len(t, feb, 2)
		assert.Equal(t, "1800.99", feb[1][8])
	})

	t.Run("unparseable rows are dropped and counted", func(t *testing.T) {
		paths := testPaths(t)
		writeRaw(t, paths, "CAGEDMOV202301.txt",
			rawHeader,
			"202301;355030;4711301;521110;5;30;1;1;1.000,00;10;0",
			"199901;355030;4711301;521110;5;30;1;1;1.000,00;10;0", // pre-2020 period
			"202301;355030;4711301;521110;5;trinta;1;1;1.000,00;10;0",
			"202301;355030;4711301;521110;5;30;1;1;;10;0",
		)

		results, err := newTestConverter(paths).Convert(context.Background())
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, int64(1), results[0].RowsKept)
		assert.Equal(t, int64(3), results[0].RowsDropped)
	})

	t.Run("rows the csv parser rejects count as read and dropped", func(t *testing.T) {
		paths := testPaths(t)
		raw := strings.Join([]string{
			rawHeader,
			"202301;355030;4711301;521110;5;30;1;1;1.000,00;10;0",
			"202301;355030", // ragged, rejected by a strict field count
			"202301;410690;4711301;521110;7;45;2;3;2.000,00;20;1",
		}, "\n") + "\n"

		cr := csv.NewReader(strings.NewReader(raw))
		cr.Comma = ';'
		header, err := cr.Read()
		require.NoError(t, err)
		columns, missing := resolveColumns(header)
		require.Empty(t, missing)
		r := &rawReader{csv: cr, encoding: "utf-8", columns: columns}

		writers := newCleanWriterSet(paths)
		defer writers.CloseAll()

		result, err := newTestConverter(paths).convertRows("CAGEDMOV202301.txt", r, writers)
		require.NoError(t, err)
		assert.Equal(t, int64(3), result.RowsRead)
		assert.Equal(t, int64(2), result.RowsKept)
		assert.Equal(t, int64(1), result.RowsDropped)
		assert.Equal(t, result.RowsKept+result.RowsFiltered+result.RowsDropped, result.RowsRead)
	})

	t.Run("out of domain codes become the unknown category", func(t *testing.T) {
		paths := testPaths(t)
		writeRaw(t, paths, "CAGEDMOV202301.txt",
			rawHeader,
			"202301;355030;4711301;521110;88;30;77;2;1.000,00;10;x",
		)

		_, err := newTestConverter(paths).Convert(context.Background())
		require.NoError(t, err)

		rows := readCleanFile(t, paths.CleanCSVPath("202301"))
		require.Len(t, rows, 2)
		assert.Equal(t, "99", rows[1][4]) // education
		assert.Equal(t, "9", rows[1][6])  // race
		assert.Equal(t, "9", rows[1][7])  // gender
		assert.Equal(t, "9", rows[1][10]) // disability
	})

	t.Run("missing disability column defaults to unknown", func(t *testing.T) {
		paths := testPaths(t)
		header := rawHeader[:strings.LastIndex(rawHeader, ";")]
		writeRaw(t, paths, "CAGEDMOV202007.txt",
			header,
			"202007;355030;4711301;521110;5;30;1;1;1.500,00;10",
		)

		_, err := newTestConverter(paths).Convert(context.Background())
		require.NoError(t, err)

		rows := readCleanFile(t, paths.CleanCSVPath("202007"))
		require.Len(t, rows, 2)
		assert.Equal(t, "9", rows[1][10])
	})

	t.Run("cp1252 files are detected by re-decoding the header", func(t *testing.T) {
		paths := testPaths(t)
		encoded, err := charmap.Windows1252.NewEncoder().String(
			rawHeader + "\n202301;355030;4711301;521110;5;30;1;1;1.234,56;10;0\n")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(paths.DownloadsDir, "CAGEDMOV202301.txt"), []byte(encoded), 0644))

		results, err := newTestConverter(paths).Convert(context.Background())
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "cp1252", results[0].Encoding)
		assert.Equal(t, int64(1), results[0].RowsKept)
	})

	t.Run("re-converting overwrites instead of appending", func(t *testing.T) {
		paths := testPaths(t)
		writeRaw(t, paths, "CAGEDMOV202301.txt",
			rawHeader,
			"202301;355030;4711301;521110;5;30;1;1;1.000,00;10;0",
		)

		conv := newTestConverter(paths)
		_, err := conv.Convert(context.Background())
		require.NoError(t, err)
		_, err = conv.Convert(context.Background())
		require.NoError(t, err)

		rows := readCleanFile(t, paths.CleanCSVPath("202301"))
		assert.Len(t, rows, 2)
	})

	t.Run("unresolvable file is skipped, others convert", func(t *testing.T) {
		paths := testPaths(t)
		writeRaw(t, paths, "CAGEDMOV202301.txt",
			"colA;colB;colC",
			"1;2;3",
		)
		writeRaw(t, paths, "CAGEDMOV202302.txt",
			rawHeader,
			"202302;355030;4711301;521110;5;30;1;1;1.000,00;10;0",
		)

		results, err := newTestConverter(paths).Convert(context.Background())
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "CAGEDMOV202302.txt", results[0].File)
	})

	t.Run("empty downloads directory reports no input", func(t *testing.T) {
		paths := testPaths(t)
		_, err := newTestConverter(paths).Convert(context.Background())
		assert.ErrorIs(t, err, pipeline.ErrNoInputData)
	})
}

func TestIsAdmission(t *testing.T) {
	assert.True(t, isAdmission("10", ""))
	assert.True(t, isAdmission("20", ""))
	assert.True(t, isAdmission("25", ""))
	assert.True(t, isAdmission("Admissão por primeiro emprego", ""))
	assert.True(t, isAdmission("99", "1"))
	assert.False(t, isAdmission("31", ""))
	assert.False(t, isAdmission("Desligamento", "-1"))
}

func TestParseWage(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.234,56", 1234.56, true},
		{"1234,56", 1234.56, true},
		{"950", 950, true},
		{" 2.500,00 ", 2500, true},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, c := range cases {
		got, ok := parseWage(c.in)
		assert.Equal(t, c.ok, ok, "input %q", c.in)
		if c.ok {
			assert.InDelta(t, c.want, got, 1e-9, "input %q", c.in)
		}
	}
}

func TestCleanReaderRoundTrip(t *testing.T) {
	paths := testPaths(t)
	writeRaw(t, paths, "CAGEDMOV202301.txt",
		rawHeader,
		"202301;355030;4711301;521110;5;30;1;3;1.234,56;10;0",
	)
	_, err := newTestConverter(paths).Convert(context.Background())
	require.NoError(t, err)

	r, err := OpenClean(paths.CleanCSVPath("202301"))
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, domain.MustParsePeriod("202301"), rec.Period)
	assert.Equal(t, "355030", rec.Municipality)
	assert.Equal(t, "5", rec.Education)
	assert.Equal(t, 30, rec.Age)
	assert.Equal(t, "3", rec.Gender)
	assert.InDelta(t, 1234.56, rec.Wage, 1e-9)
	assert.Equal(t, "0", rec.Disability)
	assert.Equal(t, "SUDESTE", rec.Region())

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestOpenCleanMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("competencia_mov,idade\n202301,30\n"), 0644))

	_, err := OpenClean(path)
	assert.ErrorContains(t, err, "missing column")
}

func TestExtractArchivesLeavesCorruptArchive(t *testing.T) {
	paths := testPaths(t)
	bad := filepath.Join(paths.DownloadsDir, "CAGEDMOV202301.7z")
	require.NoError(t, os.WriteFile(bad, []byte("not a 7z archive"), 0644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, ExtractArchives(paths.DownloadsDir, logger))

	_, err := os.Stat(bad)
	assert.NoError(t, err)
}
