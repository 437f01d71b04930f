// Package buildsys runs the external build systems that compile LuaJIT.
package buildsys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/qiniu/x/log"

	"github.com/goplus/luajit-src/internal/env"
)

// BuildSystem captures shared capabilities of the build drivers (make,
// msvcbuild.bat). Implementations add their own extras.
type BuildSystem interface {
	// Env sets a variable for the spawned build only.
	Env(key, val string)

	// Dir is the working directory of the build.
	Dir() string

	// Command is the argv that Build runs.
	Command() []string

	// Build runs the build to completion.
	Build(ctx context.Context) error
}

// Cmd is one external process invocation.
type Cmd struct {
	Path string
	Args []string
	Dir  string

	// Base is the inherited environment; Env is applied on top of it.
	Base env.Env
	Env  map[string]string

	// Stdout and Stderr default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// Argv returns Path followed by Args.
func (c *Cmd) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// Run executes c synchronously. The child's output goes straight to
// Stdout/Stderr; success is judged by exit status alone.
func Run(ctx context.Context, c *Cmd) error {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Base.Merge(c.Env)
	cmd.Stdout = c.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = c.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	log.Debugf("buildsys: running %s in %s", shellquote.Join(c.Argv()...), c.Dir)
	if err := cmd.Run(); err != nil {
		return &ExitError{
			Argv: c.Argv(),
			Dir:  c.Dir,
			Env:  c.Env,
			Err:  err,
		}
	}
	return nil
}

// ExitError reports an external build that could not start or did not
// exit successfully.
type ExitError struct {
	Argv []string
	Dir  string
	// Env is the environment delta given to the process.
	Env map[string]string
	Err error
}

// ExitCode returns the process exit code, or -1 if it did not exit normally.
func (e *ExitError) ExitCode() int {
	var ee *exec.ExitError
	if errors.As(e.Err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func (e *ExitError) Error() string {
	var b strings.Builder
	b.WriteString("error building LuaJIT:\n")
	fmt.Fprintf(&b, "    Command: %s\n", shellquote.Join(e.Argv...))
	fmt.Fprintf(&b, "    Directory: %s\n", e.Dir)
	if len(e.Env) > 0 {
		fmt.Fprintf(&b, "    Environment: %s\n", formatEnv(e.Env))
	}
	var ee *exec.ExitError
	if errors.As(e.Err, &ee) {
		fmt.Fprintf(&b, "    Exit status: %s", ee.ProcessState)
	} else {
		fmt.Fprintf(&b, "    Failed to start: %v", e.Err)
	}
	return b.String()
}

func formatEnv(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+shellquote.Join(vars[k]))
	}
	return strings.Join(parts, " ")
}
