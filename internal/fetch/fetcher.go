package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	gopath "path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"cagedcli/internal/config"
	apperrors "cagedcli/internal/errors"
)

// RawFilePrefix is the naming convention of movement microdata files. Other
// CAGED products (CAGEDFOR, CAGEDEXC) share the directories and are ignored.
const RawFilePrefix = "CAGEDMOV"

// Summary reports what one fetcher run did.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
	NewMonths  []string // yyyymm keys completed this run
}

// Fetcher mirrors the remote period layout into the downloads directory.
type Fetcher struct {
	cfg    config.FetchConfig
	paths  *config.Paths
	dial   Dialer
	logger *slog.Logger

	// sleep is swappable in tests so retry waits do not slow them down.
	sleep func(time.Duration)
}

// NewFetcher builds a Fetcher that dials the configured FTP endpoint.
func NewFetcher(cfg config.FetchConfig, paths *config.Paths, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		paths:  paths,
		dial:   NewFTPDialer(cfg.Host, ftp.DialWithTimeout(cfg.Timeout)),
		logger: logger.With(slog.String("component", "fetcher")),
		sleep:  time.Sleep,
	}
}

// NewFetcherWithDialer is NewFetcher with an explicit dialer, for tests.
func NewFetcherWithDialer(cfg config.FetchConfig, paths *config.Paths, logger *slog.Logger, dial Dialer) *Fetcher {
	f := NewFetcher(cfg, paths, logger)
	f.dial = dial
	return f
}

// Run scans the remote year/month tree and downloads every missing CAGEDMOV
// file. Months already in the manifest are not revisited; a month is only
// registered once all of its files are local. Per-file failures are retried
// up to the configured bound, then skipped without aborting the run.
func (f *Fetcher) Run(ctx context.Context) (*Summary, error) {
	manifest, err := LoadManifest(f.paths.ManifestFile)
	if err != nil {
		return nil, err
	}

	client, err := f.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Quit()

	years, err := f.listYears(client)
	if err != nil {
		return nil, err
	}
	f.logger.Info("remote listing complete",
		slog.Int("years", len(years)),
		slog.String("root", f.cfg.RootDir))

	summary := &Summary{}
	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := f.fetchYear(ctx, client, manifest, year, summary); err != nil {
			return summary, err
		}
	}

	if err := manifest.Save(f.paths.ManifestFile); err != nil {
		return summary, err
	}
	f.logger.Info("fetch run finished",
		slog.Int("downloaded", summary.Downloaded),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Int("new_months", len(summary.NewMonths)))
	return summary, nil
}

// connect dials with bounded retries; a government FTP server being briefly
// unreachable is the normal case, not the exceptional one.
func (f *Fetcher) connect(ctx context.Context) (Client, error) {
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.logger.Warn("connection failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()))
			f.sleep(f.cfg.RetryWait)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		client, err := f.dial(ctx)
		if err == nil {
			return client, nil
		}
		lastErr = err
	}
	return nil, apperrors.NewNetworkError("connect to ftp server", lastErr).
		WithContext("host", f.cfg.Host).
		WithContext("attempts", f.cfg.MaxRetries+1)
}

func (f *Fetcher) listYears(client Client) ([]string, error) {
	entries, err := client.List(f.cfg.RootDir)
	if err != nil {
		return nil, apperrors.NewNetworkError("list year directories", err).
			WithContext("dir", f.cfg.RootDir)
	}
	var years []string
	for _, entry := range entries {
		name := gopath.Base(entry)
		if len(name) == 4 && isDigits(name) {
			years = append(years, name)
		}
	}
	return years, nil
}

func (f *Fetcher) fetchYear(ctx context.Context, client Client, manifest *Manifest, year string, summary *Summary) error {
	yearDir := gopath.Join(f.cfg.RootDir, year)
	entries, err := client.List(yearDir)
	if err != nil {
		// One unreadable year directory should not kill the run.
		f.logger.Warn("cannot list year directory",
			slog.String("year", year),
			slog.String("error", err.Error()))
		return nil
	}

	for _, entry := range entries {
		name := gopath.Base(entry)
		if len(name) != 6 || !isDigits(name) || !strings.HasPrefix(name, year) {
			continue
		}
		mm := name[4:]
		if manifest.Has(year, mm) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		complete, err := f.fetchMonth(ctx, client, gopath.Join(yearDir, name), summary)
		if err != nil {
			return err
		}
		if complete {
			manifest.Register(year, mm)
			summary.NewMonths = append(summary.NewMonths, name)
			// Persist after each completed month so an aborted run keeps
			// its progress.
			if err := manifest.Save(f.paths.ManifestFile); err != nil {
				return err
			}
		}
	}
	return nil
}

// fetchMonth downloads a month's CAGEDMOV files. It returns complete=true
// only when the directory had at least one movement file and none failed;
// empty directories stay unregistered so later runs re-check them once the
// ministry publishes the data.
func (f *Fetcher) fetchMonth(ctx context.Context, client Client, monthDir string, summary *Summary) (bool, error) {
	entries, err := client.List(monthDir)
	if err != nil {
		f.logger.Warn("cannot list month directory",
			slog.String("dir", monthDir),
			slog.String("error", err.Error()))
		return false, nil
	}

	var files []string
	for _, entry := range entries {
		if name := gopath.Base(entry); strings.HasPrefix(name, RawFilePrefix) {
			files = append(files, name)
		}
	}
	if len(files) == 0 {
		f.logger.Info("month has no movement files yet", slog.String("dir", monthDir))
		return false, nil
	}

	complete := true
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		local := f.paths.DownloadPath(name)
		if config.FileExists(local) {
			f.logger.Info("file already present, skipping", slog.String("file", name))
			summary.Skipped++
			continue
		}
		if err := f.downloadFile(client, gopath.Join(monthDir, name), local); err != nil {
			f.logger.Warn("giving up on file",
				slog.String("file", name),
				slog.String("error", err.Error()))
			summary.Failed++
			complete = false
			continue
		}
		f.logger.Info("downloaded", slog.String("file", name), slog.String("path", local))
		summary.Downloaded++
	}
	return complete, nil
}

// downloadFile retrieves one remote file with bounded retries, writing to a
// temp file first so a partial download never looks complete to the
// skip-if-present check.
func (f *Fetcher) downloadFile(client Client, remote, local string) error {
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.logger.Warn("download failed, retrying",
				slog.String("file", remote),
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()))
			f.sleep(f.cfg.RetryWait)
		}
		lastErr = f.tryDownload(client, remote, local)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("download %s after %d attempts: %w", remote, f.cfg.MaxRetries+1, lastErr)
}

func (f *Fetcher) tryDownload(client Client, remote, local string) error {
	tmp := local + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	if err := client.Retrieve(remote, file); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, local)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
