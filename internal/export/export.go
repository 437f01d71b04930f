// Package export writes a finished build's output directory to a
// destination directory or archive.
package export

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/qiniu/x/log"
)

// Format is an output format, chosen from the destination's suffix.
type Format int

const (
	Dir Format = iota
	Zip
	TarGz
	TarZst
)

var suffixes = []struct {
	suffix string
	format Format
}{
	{".zip", Zip},
	{".tar.gz", TarGz},
	{".tgz", TarGz},
	{".tar.zst", TarZst},
}

// FormatOf returns the format implied by dest's name; anything without a
// known archive suffix is a directory.
func FormatOf(dest string) Format {
	for _, s := range suffixes {
		if strings.HasSuffix(dest, s.suffix) {
			return s.format
		}
	}
	return Dir
}

// Output writes the contents of srcDir to dest. When names are given, only
// those top-level entries of srcDir are written.
// If dest ends with ".zip", ".tar.gz", ".tgz" or ".tar.zst" an archive is
// created; otherwise the directory is copied.
func Output(srcDir, dest string, names ...string) error {
	log.Debugf("export: writing %s to %s", srcDir, dest)
	roots := []string{srcDir}
	if len(names) > 0 {
		roots = roots[:0]
		for _, name := range names {
			roots = append(roots, filepath.Join(srcDir, name))
		}
	}
	switch FormatOf(dest) {
	case Zip:
		return zipDir(srcDir, roots, dest)
	case TarGz:
		return createFile(dest, func(f io.Writer) error {
			gz := pgzip.NewWriter(f)
			if err := tarDir(srcDir, roots, gz); err != nil {
				gz.Close()
				return err
			}
			return gz.Close()
		})
	case TarZst:
		return createFile(dest, func(f io.Writer) error {
			zw, err := zstd.NewWriter(f)
			if err != nil {
				return err
			}
			if err := tarDir(srcDir, roots, zw); err != nil {
				zw.Close()
				return err
			}
			return zw.Close()
		})
	}
	if len(names) == 0 {
		return os.CopyFS(dest, os.DirFS(srcDir))
	}
	for _, name := range names {
		if err := os.CopyFS(filepath.Join(dest, name), os.DirFS(filepath.Join(srcDir, name))); err != nil {
			return err
		}
	}
	return nil
}

func createFile(dest string, write func(io.Writer) error) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("cannot write %s: %w", dest, err)
	}
	return f.Close()
}

// zipDir creates a zip archive at dest from the files under roots, named
// relative to srcDir.
func zipDir(srcDir string, roots []string, dest string) error {
	return createFile(dest, func(f io.Writer) error {
		w := zip.NewWriter(f)
		err := walkFiles(srcDir, roots, func(path, rel string, info fs.FileInfo) error {
			header, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			header.Name = rel
			header.Method = zip.Deflate

			writer, err := w.CreateHeader(header)
			if err != nil {
				return err
			}
			return copyFrom(writer, path)
		})
		if err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
}

// tarDir writes the regular files under roots as a tar stream to out.
func tarDir(srcDir string, roots []string, out io.Writer) error {
	tw := tar.NewWriter(out)
	err := walkFiles(srcDir, roots, func(path, rel string, info fs.FileInfo) error {
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = rel
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		return copyFrom(tw, path)
	})
	if err != nil {
		return err
	}
	return tw.Close()
}

// walkFiles calls fn for each regular file under roots with its
// slash-separated name relative to base.
func walkFiles(base string, roots []string, fn func(path, rel string, info fs.FileInfo) error) error {
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(base, path)
			if err != nil {
				return err
			}
			return fn(path, filepath.ToSlash(rel), info)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func copyFrom(w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(w, file)
	return err
}
