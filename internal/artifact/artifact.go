// Package artifact collects the headers and static library produced by a
// LuaJIT build and renders the linker directives that consume them.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/goplus/luajit-src/internal/stage"
	"github.com/goplus/luajit-src/internal/toolchain"
)

// Headers are the public LuaJIT headers, copied from the build's src dir.
var Headers = []string{"lauxlib.h", "lua.h", "luaconf.h", "luajit.h", "lualib.h"}

// ErrMissingLibrary is returned when the build succeeded but left no
// static library behind.
var ErrMissingLibrary = errors.New("static library not produced")

// Library returns the file name and link name of the static library.
func Library(msvc bool) (file, name string) {
	if msvc {
		return "lua51.lib", "lua51"
	}
	return "libluajit.a", "luajit"
}

// Artifacts describes a finished build. Libs holds undecorated library
// names suitable for "-l" or "rustc-link-lib".
type Artifacts struct {
	IncludeDir string   `json:"include_dir"`
	LibDir     string   `json:"lib_dir"`
	Libs       []string `json:"libs"`
}

// Collect copies headers and the static library out of buildDir/src.
func Collect(buildDir, includeDir, libDir string, msvc bool) (*Artifacts, error) {
	src := filepath.Join(buildDir, "src")
	for _, h := range Headers {
		if err := stage.CopyFile(filepath.Join(src, h), filepath.Join(includeDir, h)); err != nil {
			return nil, err
		}
	}

	file, name := Library(msvc)
	lib := filepath.Join(src, file)
	if _, err := os.Stat(lib); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", lib, ErrMissingLibrary)
	}
	if err := stage.CopyFile(lib, filepath.Join(libDir, file)); err != nil {
		return nil, err
	}
	log.Debugf("artifact: collected %s and %d headers", file, len(Headers))

	return &Artifacts{
		IncludeDir: includeDir,
		LibDir:     libDir,
		Libs:       []string{name},
	}, nil
}

// Root returns the directory containing both IncludeDir and LibDir, or ""
// when they do not share a parent.
func (a *Artifacts) Root() string {
	root := filepath.Dir(a.IncludeDir)
	if filepath.Dir(a.LibDir) != root {
		return ""
	}
	return root
}

// CargoMetadata writes the Cargo build-script directives for a.
func (a *Artifacts) CargoMetadata(w io.Writer) error {
	var b strings.Builder
	for _, v := range toolchain.Overrides {
		fmt.Fprintf(&b, "cargo:rerun-if-env-changed=%s\n", v)
	}
	fmt.Fprintf(&b, "cargo:rustc-link-search=native=%s\n", a.LibDir)
	for _, lib := range a.Libs {
		fmt.Fprintf(&b, "cargo:rustc-link-lib=static=%s\n", lib)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// CgoFlags returns the CFLAGS and LDFLAGS for a cgo package linking LuaJIT.
func (a *Artifacts) CgoFlags() (cflags, ldflags string) {
	cflags = "-I" + a.IncludeDir
	parts := []string{"-L" + a.LibDir}
	for _, lib := range a.Libs {
		parts = append(parts, "-l"+lib)
	}
	return cflags, strings.Join(parts, " ")
}

// WriteJSON writes a as indented JSON.
func (a *Artifacts) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
