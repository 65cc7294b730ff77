package convert

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// ExtractArchives unpacks every .7z archive in dir into dir and deletes the
// archive on success. Extraction failures are logged and leave the archive
// in place for the next run.
func ExtractArchives(dir string, logger *slog.Logger) error {
	archives, err := filepath.Glob(filepath.Join(dir, "*.7z"))
	if err != nil {
		return fmt.Errorf("glob archives: %w", err)
	}

	for _, archive := range archives {
		if err := extractArchive(archive, dir); err != nil {
			logger.Warn("failed to extract archive",
				slog.String("archive", filepath.Base(archive)),
				slog.String("error", err.Error()))
			continue
		}
		if err := os.Remove(archive); err != nil {
			return fmt.Errorf("remove extracted archive %s: %w", archive, err)
		}
		logger.Info("extracted archive", slog.String("archive", filepath.Base(archive)))
	}
	return nil
}

func extractArchive(archive, destDir string) error {
	r, err := sevenzip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open 7z: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// Flatten: archive members land directly in destDir under their
		// base name, which is how the publisher packs them anyway.
		name := filepath.Base(filepath.FromSlash(f.Name))
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		if err := extractMember(f, filepath.Join(destDir, name)); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractMember(f *sevenzip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}
