// Package stage prepares disposable working copies of a source tree.
package stage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/qiniu/x/log"
)

// SkipFunc reports whether the entry at rel (slash-separated, relative to
// the copy root) should be left out. Skipping a directory skips its contents.
type SkipFunc func(rel string, d fs.DirEntry) bool

// SkipNames returns a SkipFunc that skips entries whose base name is one of
// names, at any depth.
func SkipNames(names ...string) SkipFunc {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(_ string, d fs.DirEntry) bool {
		return set[d.Name()]
	}
}

// VCSDirs are version-control metadata directories never worth staging.
var VCSDirs = []string{".git", ".hg", ".svn"}

// Fresh removes dir and everything in it, then recreates it empty.
func Fresh(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("cannot remove %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return nil
}

// Stage replaces dst with a copy of src, leaving out VCS metadata.
// Running it twice yields the same tree as running it once.
func Stage(src, dst string) error {
	if err := Fresh(dst); err != nil {
		return err
	}
	log.Debugf("stage: %s -> %s", src, dst)
	return CopyTree(src, dst, SkipNames(VCSDirs...))
}

// CopyTree copies the contents of src into dst, which must exist.
// Directories are recreated and regular files copied byte for byte with
// their permission bits; files already at the destination are replaced.
// Symlinks are recreated as symlinks. skip may be nil.
func CopyTree(src, dst string, skip SkipFunc) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if skip != nil && skip(filepath.ToSlash(rel), d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		switch mode := d.Type(); {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("cannot create %s: %w", target, err)
			}
		case mode&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("cannot read link %s: %w", path, err)
			}
			os.Remove(target)
			if err := os.Symlink(link, target); err != nil {
				return fmt.Errorf("cannot link %s: %w", target, err)
			}
		case mode.IsRegular():
			if err := CopyFile(path, target); err != nil {
				return err
			}
		default:
			log.Debugf("stage: skipping irregular file %s", path)
		}
		return nil
	})
}

// CopyFile copies a regular file, preserving its permission bits.
// An existing dst is removed first, so read-only destinations are replaced.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", src, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", src, err)
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot replace %s: %w", dst, err)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("cannot copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("cannot write %s: %w", dst, err)
	}
	return nil
}

// CopyWritable copies src to dst and makes dst writable by its owner.
// Vendored trees sometimes carry read-only files that the build rewrites.
func CopyWritable(src, dst string) error {
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", dst, err)
	}
	if err := os.Chmod(dst, info.Mode().Perm()|0o200); err != nil {
		return fmt.Errorf("cannot chmod %s: %w", dst, err)
	}
	return nil
}
