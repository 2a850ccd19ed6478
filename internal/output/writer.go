// Package output writes generated bundles to disk.
package output

import (
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

const (
	dirMode  = 0o755
	fileMode = 0o644
)

// Writer places a bundle under Dir.
//
// With Clean set the bundle is written to a sibling staging directory and
// promoted with a rename, so the previous site is replaced as a whole and a
// failed write leaves it untouched. Without Clean files are written in place
// and unrelated files in Dir survive.
//
// A successful Write returns a Commit. Until it is finalized the previous
// state can be restored with Rollback.
type Writer struct {
	Dir    string
	Clean  bool
	Logger *slog.Logger
}

// Commit is a completed write that can still be undone.
type Commit struct {
	// Files is the number of files written; Bytes their total content size.
	Files int
	Bytes int

	dir     string
	prev    string // clean mode: backup of the replaced tree, empty if there was none
	clean   bool
	touched []priorFile
	logger  *slog.Logger
	done    bool
}

// priorFile remembers what an in-place write replaced.
type priorFile struct {
	path    string
	existed bool
	content []byte
	mode    os.FileMode
}

// Write stores every bundle file.
func (w *Writer) Write(b *site.Bundle) (*Commit, error) {
	if b == nil {
		return nil, errors.InternalError("nil bundle").Build()
	}
	if strings.TrimSpace(w.Dir) == "" {
		return nil, errors.ConfigError("output directory is empty").Build()
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Clean(w.Dir)
	c := &Commit{Files: len(b.Files), Bytes: b.Size(), dir: dir, clean: w.Clean, logger: logger}

	if !w.Clean {
		if err := c.writeInPlace(b); err != nil {
			if rerr := c.Rollback(); rerr != nil {
				logger.Warn("Failed to restore output after write error", logfields.Path(dir), logfields.Error(rerr))
			}
			return nil, err
		}
		logger.Info("Wrote site bundle", logfields.Path(dir), logfields.Count(c.Files))
		return c, nil
	}

	stage := dir + "_stage"
	if err := os.RemoveAll(stage); err != nil {
		return nil, fsError(err, "failed to clear staging directory", stage)
	}
	if err := writeFiles(stage, b); err != nil {
		abort(stage, logger)
		return nil, err
	}
	prev, err := promote(stage, dir, logger)
	if err != nil {
		abort(stage, logger)
		return nil, err
	}
	c.prev = prev
	logger.Info("Promoted site bundle", logfields.Path(dir), logfields.Count(c.Files))
	return c, nil
}

// Finalize drops what Rollback would need. It is a no-op after Rollback.
func (c *Commit) Finalize() {
	if c == nil || c.done {
		return
	}
	c.done = true
	c.touched = nil
	if c.prev == "" {
		return
	}
	if err := os.RemoveAll(c.prev); err != nil {
		c.logger.Warn("Failed to remove previous backup", logfields.Path(c.prev), logfields.Error(err))
		return
	}
	c.logger.Debug("Removed previous backup", logfields.Path(c.prev))
}

// Rollback restores Dir to its state before the write. It is a no-op after
// Finalize.
func (c *Commit) Rollback() error {
	if c == nil || c.done {
		return nil
	}
	c.done = true
	if c.clean {
		if err := os.RemoveAll(c.dir); err != nil {
			return fsError(err, "failed to remove written output", c.dir)
		}
		if c.prev != "" {
			if err := os.Rename(c.prev, c.dir); err != nil {
				return fsError(err, "failed to restore previous output", c.dir)
			}
		}
		c.logger.Info("Rolled back site bundle", logfields.Path(c.dir))
		return nil
	}

	var errs []error
	for i := len(c.touched) - 1; i >= 0; i-- {
		f := c.touched[i]
		if f.existed {
			if err := os.WriteFile(f.path, f.content, f.mode); err != nil {
				errs = append(errs, fsError(err, "failed to restore file", f.path))
			}
			continue
		}
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fsError(err, "failed to remove written file", f.path))
			continue
		}
		removeEmptyParents(filepath.Dir(f.path), c.dir)
	}
	c.touched = nil
	c.logger.Info("Rolled back site bundle", logfields.Path(c.dir), logfields.Count(c.Files))
	return stderrors.Join(errs...)
}

func (c *Commit) writeInPlace(b *site.Bundle) error {
	if err := os.MkdirAll(c.dir, dirMode); err != nil {
		return fsError(err, "failed to create output directory", c.dir)
	}
	for _, rel := range b.Paths() {
		target, err := SafeJoin(c.dir, rel)
		if err != nil {
			return err
		}
		prior, err := snapshot(target)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
			return fsError(err, "failed to create directory", filepath.Dir(target))
		}
		c.touched = append(c.touched, prior)
		if err := os.WriteFile(target, []byte(b.Files[rel]), fileMode); err != nil {
			return fsError(err, "failed to write file", target)
		}
	}
	return nil
}

func snapshot(path string) (priorFile, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return priorFile{path: path}, nil
	}
	if err != nil {
		return priorFile{}, fsError(err, "failed to stat file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return priorFile{}, fsError(err, "failed to read file", path)
	}
	return priorFile{path: path, existed: true, content: data, mode: info.Mode().Perm()}, nil
}

// removeEmptyParents removes empty directories from dir up to, but not including, root.
func removeEmptyParents(dir, root string) {
	for dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func writeFiles(root string, b *site.Bundle) error {
	if err := os.MkdirAll(root, dirMode); err != nil {
		return fsError(err, "failed to create output directory", root)
	}
	for _, rel := range b.Paths() {
		target, err := SafeJoin(root, rel)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
			return fsError(err, "failed to create directory", filepath.Dir(target))
		}
		if err := os.WriteFile(target, []byte(b.Files[rel]), fileMode); err != nil {
			return fsError(err, "failed to write file", target)
		}
	}
	return nil
}

// promote swaps stage into dir and returns where the replaced tree was kept,
// or "" when dir did not exist.
func promote(stage, dir string, logger *slog.Logger) (string, error) {
	prev := dir + ".prev"
	if err := os.RemoveAll(prev); err != nil {
		logger.Warn("Failed to remove previous backup", logfields.Path(prev), logfields.Error(err))
	}
	hadPrev := false
	if _, err := os.Stat(dir); err == nil {
		if err := os.Rename(dir, prev); err != nil {
			return "", fsError(err, "failed to back up existing output", dir)
		}
		hadPrev = true
	}
	if err := os.Rename(stage, dir); err != nil {
		if hadPrev {
			_ = os.Rename(prev, dir)
		}
		return "", fsError(err, "failed to promote staging directory", stage)
	}
	if !hadPrev {
		return "", nil
	}
	return prev, nil
}

func abort(stage string, logger *slog.Logger) {
	if err := os.RemoveAll(stage); err != nil {
		logger.Warn("Failed to remove staging directory after abort", logfields.Path(stage), logfields.Error(err))
	}
}

// SafeJoin joins rel under root and rejects paths that would escape it.
func SafeJoin(root, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", errors.ValidationError("invalid bundle path").WithContext("path", rel).Build()
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", errors.ValidationError("bundle path escapes output directory").WithContext("path", rel).Build()
	}
	return filepath.Join(root, cleaned), nil
}

func fsError(err error, msg, path string) error {
	return errors.WrapError(err, errors.CategoryFileSystem, msg).WithContext("path", path).Build()
}
