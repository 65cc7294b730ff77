package fetch

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Manifest tracks which months have been fully downloaded, keyed by year.
// The file format is one line per year: "2023 - 01,02,03". A month is only
// registered after every file in its directory has been fetched, so a
// crashed run re-visits the month and the skip-if-present check does the
// de-duplication.
type Manifest struct {
	months map[string][]string // year -> sorted mm values
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{months: make(map[string][]string)}
}

// LoadManifest reads the manifest file. A missing file yields an empty
// manifest, matching first-run behavior.
func LoadManifest(path string) (*Manifest, error) {
	m := NewManifest()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		year, monthsStr, found := strings.Cut(line, " - ")
		if !found {
			return nil, fmt.Errorf("malformed manifest line %q", line)
		}
		year = strings.TrimSpace(year)
		for _, mm := range strings.Split(monthsStr, ",") {
			if mm = strings.TrimSpace(mm); mm != "" {
				m.Register(year, mm)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return m, nil
}

// Save writes the manifest atomically (write to temp file, then rename).
func (m *Manifest) Save(path string) error {
	var sb strings.Builder
	for _, year := range m.Years() {
		sb.WriteString(year)
		sb.WriteString(" - ")
		sb.WriteString(strings.Join(m.months[year], ","))
		sb.WriteString("\n")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// Has reports whether year/mm is registered as complete.
func (m *Manifest) Has(year, mm string) bool {
	for _, registered := range m.months[year] {
		if registered == mm {
			return true
		}
	}
	return false
}

// Register marks year/mm as complete. Registering twice is a no-op.
func (m *Manifest) Register(year, mm string) {
	if m.Has(year, mm) {
		return
	}
	m.months[year] = append(m.months[year], mm)
	sort.Strings(m.months[year])
}

// Years returns the registered years in ascending order.
func (m *Manifest) Years() []string {
	years := make([]string, 0, len(m.months))
	for year := range m.months {
		years = append(years, year)
	}
	sort.Strings(years)
	return years
}

// Months returns the registered months of a year in ascending order.
func (m *Manifest) Months(year string) []string {
	return append([]string(nil), m.months[year]...)
}
