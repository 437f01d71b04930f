package toolchain

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qiniu/x/log"
)

// A Strategy proposes one location for a tool.
type Strategy interface {
	// Find returns the tool's path, or ok == false if this strategy has nothing.
	Find(p Probe) (path string, ok bool)
	String() string
}

// InDir looks for name as an executable file in dir.
func InDir(dir, name string) Strategy {
	return inDir{dir: dir, name: name}
}

// OnPath searches for name on the search path.
func OnPath(name string) Strategy {
	return onPath(name)
}

type inDir struct {
	dir, name string
}

func (s inDir) Find(p Probe) (string, bool) {
	path := filepath.Join(s.dir, s.name)
	return path, p.IsFile(path)
}

func (s inDir) String() string {
	return filepath.Join(s.dir, s.name)
}

type onPath string

func (s onPath) Find(p Probe) (string, bool) {
	path, err := p.LookPath(string(s))
	return path, err == nil
}

func (s onPath) String() string {
	return "$PATH/" + string(s)
}

// ToolNotFoundError reports that no strategy located a tool.
type ToolNotFoundError struct {
	Tool  string
	Tried []string
}

func (e *ToolNotFoundError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("cannot find %s", e.Tool)
	}
	return fmt.Sprintf("cannot find %s (tried %s)", e.Tool, strings.Join(e.Tried, ", "))
}

// First evaluates strategies in order and returns the first hit.
func First(p Probe, tool string, strategies ...Strategy) (string, error) {
	tried := make([]string, 0, len(strategies))
	for _, s := range strategies {
		if path, ok := s.Find(p); ok {
			log.Debugf("toolchain: %s -> %s", tool, path)
			return path, nil
		}
		tried = append(tried, s.String())
	}
	return "", &ToolNotFoundError{Tool: tool, Tried: tried}
}

// CompanionStrategies lists where to look for a binutils-style tool
// ("ar", "strip") that belongs with a compiler installed in bindir.
func CompanionStrategies(tool, prefix, bindir string, fam Family) []Strategy {
	s := []Strategy{InDir(bindir, prefix+tool)}
	switch fam {
	case Clang:
		s = append(s, InDir(bindir, "llvm-"+tool))
	case GNU:
		s = append(s, InDir(bindir, tool))
	}
	return append(s, OnPath(prefix+tool))
}
