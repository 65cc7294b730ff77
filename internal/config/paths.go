package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths is the resolved on-disk layout shared by the pipeline stages.
//
//	data/
//	  downloads/   raw CAGEDMOV archives and extracted TXT files
//	  clean/       normalized per-period CSV files
//	  exports/     researcher exports (xlsx, csv)
//	  caged.db     SQLite store
//	  periods_registered.txt  fetcher period manifest
type Paths struct {
	DataDir      string
	DownloadsDir string
	CleanDir     string
	ExportsDir   string
	StoreFile    string
	ManifestFile string
}

// resolve fills the derived entries of a PathsConfig from DataDir.
func (p *PathsConfig) resolve() {
	if p.DataDir == "" {
		p.DataDir = "data"
	}
	if p.DownloadsDir == "" {
		p.DownloadsDir = filepath.Join(p.DataDir, "downloads")
	}
	if p.CleanDir == "" {
		p.CleanDir = filepath.Join(p.DataDir, "clean")
	}
	if p.ExportsDir == "" {
		p.ExportsDir = filepath.Join(p.DataDir, "exports")
	}
	if p.StoreFile == "" {
		p.StoreFile = filepath.Join(p.DataDir, "caged.db")
	}
	if p.ManifestFile == "" {
		p.ManifestFile = filepath.Join(p.DataDir, "periods_registered.txt")
	}
}

func newPaths(pc PathsConfig) *Paths {
	return &Paths{
		DataDir:      pc.DataDir,
		DownloadsDir: pc.DownloadsDir,
		CleanDir:     pc.CleanDir,
		ExportsDir:   pc.ExportsDir,
		StoreFile:    pc.StoreFile,
		ManifestFile: pc.ManifestFile,
	}
}

// EnsureDirectories creates the stage directories if they do not exist.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.DownloadsDir, p.CleanDir, p.ExportsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// CleanCSVPath returns the normalized CSV path for a period's yyyymm key.
func (p *Paths) CleanCSVPath(period string) string {
	return filepath.Join(p.CleanDir, fmt.Sprintf("CAGEDMOV_clean_%s.csv", period))
}

// DownloadPath returns the local path for a raw file name.
func (p *Paths) DownloadPath(filename string) string {
	return filepath.Join(p.DownloadsDir, filename)
}

// ExportPath returns the path for a researcher export file.
func (p *Paths) ExportPath(filename string) string {
	return filepath.Join(p.ExportsDir, filename)
}

// FileExists reports whether path exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
