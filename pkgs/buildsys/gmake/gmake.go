// Package gmake drives LuaJIT's makefile on Unix-like hosts.
package gmake

import (
	"context"
	"io"
	"strings"

	"github.com/goplus/luajit-src/internal/env"
	"github.com/goplus/luajit-src/pkgs/buildsys"
)

// Make runs "<driver> -e" so that environment variables override the
// makefile's own assignments.
type Make struct {
	driver  string
	dir     string
	base    env.Env
	env     map[string]string
	xcflags []string
	stdout  io.Writer
	stderr  io.Writer
}

var _ buildsys.BuildSystem = (*Make)(nil)

// New returns a Make that runs driver (usually "make" or "gmake") in dir,
// inheriting base.
func New(driver, dir string, base env.Env) *Make {
	return &Make{
		driver: driver,
		dir:    dir,
		base:   base,
		env:    make(map[string]string),
	}
}

// Env sets key=value for the make process only.
func (m *Make) Env(key, value string) {
	m.env[key] = value
}

// XCFLAGS appends extra C flags for the LuaJIT build.
func (m *Make) XCFLAGS(flags ...string) *Make {
	m.xcflags = append(m.xcflags, flags...)
	return m
}

// Output redirects the build's stdout and stderr.
func (m *Make) Output(stdout, stderr io.Writer) *Make {
	m.stdout, m.stderr = stdout, stderr
	return m
}

func (m *Make) Dir() string { return m.dir }

func (m *Make) Command() []string {
	return []string{m.driver, "-e"}
}

// Environ returns the variables exported to make on top of the inherited
// environment. BUILDMODE and XCFLAGS are always set.
func (m *Make) Environ() map[string]string {
	vars := make(map[string]string, len(m.env)+2)
	for k, v := range m.env {
		vars[k] = v
	}
	vars["BUILDMODE"] = "static"
	vars["XCFLAGS"] = strings.Join(m.xcflags, " ")
	return vars
}

// Build runs make to completion.
func (m *Make) Build(ctx context.Context) error {
	argv := m.Command()
	return buildsys.Run(ctx, &buildsys.Cmd{
		Path:   argv[0],
		Args:   argv[1:],
		Dir:    m.dir,
		Base:   m.base,
		Env:    m.Environ(),
		Stdout: m.stdout,
		Stderr: m.stderr,
	})
}
