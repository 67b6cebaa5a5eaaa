package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/zip"
	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/fetch"
)

// ErrArchiveNotCreated is returned when there is nothing to archive or the
// archive could not be written.
var ErrArchiveNotCreated = fmt.Errorf("%w: archive could not be created", domain.ErrArchive)

// Entry is a file to include in the archive.
type Entry struct {
	// Name is the file name inside the archive.
	Name string
	// Path is the current location. The file is moved, not copied.
	Path string
}

// UseFunc receives the finished archive. The archive is deleted once it
// returns.
type UseFunc func(ctx context.Context, zipPath string) error

// Packager builds archives under a working directory.
type Packager struct {
	workDir string
	logger  *slog.Logger
	now     func() time.Time
}

// NewPackager creates a Packager that places temporary state in workDir.
func NewPackager(workDir string, logger *slog.Logger) *Packager {
	return &Packager{
		workDir: workDir,
		logger:  logger.With("component", "packager"),
		now:     time.Now,
	}
}

// Package moves entries into a fresh directory, zips it and passes the
// archive to use. The directory and the archive are always removed before
// Package returns. With no entries ErrArchiveNotCreated is returned and use
// is not called.
func (p *Packager) Package(ctx context.Context, jobID string, entries []Entry, use UseFunc) (err error) {
	log := p.logger.With("job_id", jobID)

	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveNotCreated, err)
	}

	dir, err := os.MkdirTemp(p.workDir, "archive-"+jobID+"-")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveNotCreated, err)
	}
	zipPath := dir + ".zip"

	defer func() {
		if cleanupErr := cleanup(dir, zipPath); cleanupErr != nil {
			log.Error("failed to remove archive files", "error", cleanupErr)
		}
	}()

	moved := p.moveEntries(dir, entries, log)
	if len(moved) == 0 {
		log.Warn("no files to archive")
		return ErrArchiveNotCreated
	}

	if err := p.writeZip(zipPath, dir, moved); err != nil {
		log.Error("failed to write archive", "error", err)
		return fmt.Errorf("%w: %v", ErrArchiveNotCreated, err)
	}

	log.Info("archive created", "files", len(moved), "path", filepath.Base(zipPath))
	return use(ctx, zipPath)
}

// moveEntries moves each entry into dir under a unique name and returns the
// names that arrived. Entries that cannot be moved are logged and dropped.
func (p *Packager) moveEntries(dir string, entries []Entry, log *slog.Logger) []string {
	taken := make(map[string]bool, len(entries))
	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := uniqueName(filepath.Base(entry.Name), taken)
		if err := moveFile(entry.Path, filepath.Join(dir, name)); err != nil {
			log.Warn("failed to move file into archive directory",
				"name", entry.Name,
				"error", err)
			continue
		}
		taken[strings.ToLower(name)] = true
		names = append(names, name)
	}
	return names
}

func (p *Packager) writeZip(zipPath, dir string, names []string) (err error) {
	file, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	zw := zip.NewWriter(file)
	modified := p.now()
	for _, name := range names {
		if err := addFile(zw, filepath.Join(dir, name), name, modified); err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, path, name string, modified time.Time) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// uniqueName appends " (n)" before the extension until name is unused,
// shortening the base so the result stays within fetch.MaxFileNameLength.
// Comparison ignores case for case-insensitive filesystems.
func uniqueName(name string, taken map[string]bool) string {
	if !taken[strings.ToLower(name)] {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		suffix := fmt.Sprintf(" (%d)%s", i, ext)
		candidate := fetch.TruncateUTF8(base, fetch.MaxFileNameLength-len(suffix)) + suffix
		if !taken[strings.ToLower(candidate)] {
			return candidate
		}
	}
}

// moveFile renames src to dst, falling back to copy and remove when a
// rename is not possible, e.g. across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

func cleanup(dir, zipPath string) error {
	var result *multierror.Error
	if err := os.RemoveAll(dir); err != nil {
		result = multierror.Append(result, fmt.Errorf("remove directory: %w", err))
	}
	if err := os.Remove(zipPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		result = multierror.Append(result, fmt.Errorf("remove archive: %w", err))
	}
	return result.ErrorOrNil()
}
