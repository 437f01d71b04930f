package toolchain

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Probe answers the filesystem questions toolchain discovery asks.
type Probe interface {
	// IsFile reports whether path names an executable regular file.
	IsFile(path string) bool
	// LookPath searches for an executable named name. A name containing a
	// path separator is checked directly and not searched for.
	LookPath(name string) (string, error)
}

// ErrNotFound is returned by LookPath when no executable matches.
var ErrNotFound = errors.New("executable file not found")

// OSProbe returns a Probe over the real filesystem that searches the given
// PATH list rather than the process's own.
func OSProbe(pathList string) Probe {
	return &osProbe{dirs: filepath.SplitList(pathList)}
}

type osProbe struct {
	dirs []string
}

func (p *osProbe) IsFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return isExecutable(path, info)
}

func (p *osProbe) LookPath(name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		for _, cand := range withExts(name) {
			if p.IsFile(cand) {
				return filepath.Abs(cand)
			}
		}
		return "", &fs.PathError{Op: "lookpath", Path: name, Err: ErrNotFound}
	}
	for _, dir := range p.dirs {
		if dir == "" {
			// An empty element means the current directory.
			continue
		}
		for _, cand := range withExts(filepath.Join(dir, name)) {
			if p.IsFile(cand) {
				return filepath.Abs(cand)
			}
		}
	}
	return "", &fs.PathError{Op: "lookpath", Path: name, Err: ErrNotFound}
}
