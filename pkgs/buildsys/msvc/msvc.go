// Package msvc drives LuaJIT's msvcbuild.bat for MSVC targets.
package msvc

import (
	"context"
	"io"
	"path/filepath"

	"github.com/goplus/luajit-src/internal/env"
	"github.com/goplus/luajit-src/pkgs/buildsys"
)

// Script is the batch file in LuaJIT's src directory.
const Script = "msvcbuild.bat"

// MSVCBuild runs "msvcbuild.bat [lua52compat] static".
type MSVCBuild struct {
	dir         string
	lua52compat bool
	base        env.Env
	env         map[string]string
	stdout      io.Writer
	stderr      io.Writer
}

var _ buildsys.BuildSystem = (*MSVCBuild)(nil)

// New returns an MSVCBuild for the script in dir, inheriting base.
func New(dir string, base env.Env) *MSVCBuild {
	return &MSVCBuild{
		dir:  dir,
		base: base,
		env:  make(map[string]string),
	}
}

// Lua52Compat enables LuaJIT's Lua 5.2 compatibility features.
func (b *MSVCBuild) Lua52Compat(on bool) *MSVCBuild {
	b.lua52compat = on
	return b
}

// Output redirects the build's stdout and stderr.
func (b *MSVCBuild) Output(stdout, stderr io.Writer) *MSVCBuild {
	b.stdout, b.stderr = stdout, stderr
	return b
}

// Env sets key=value for the script only.
func (b *MSVCBuild) Env(key, value string) {
	b.env[key] = value
}

// Envs applies every variable in vars, as returned by a Locator.
func (b *MSVCBuild) Envs(vars map[string]string) *MSVCBuild {
	for k, v := range vars {
		b.Env(k, v)
	}
	return b
}

func (b *MSVCBuild) Dir() string { return b.dir }

// Command returns the script invocation. The compatibility flag must
// precede "static".
func (b *MSVCBuild) Command() []string {
	argv := []string{filepath.Join(b.dir, Script)}
	if b.lua52compat {
		argv = append(argv, "lua52compat")
	}
	return append(argv, "static")
}

func (b *MSVCBuild) Build(ctx context.Context) error {
	argv := b.Command()
	return buildsys.Run(ctx, &buildsys.Cmd{
		Path:   argv[0],
		Args:   argv[1:],
		Dir:    b.dir,
		Base:   b.base,
		Env:    b.env,
		Stdout: b.stdout,
		Stderr: b.stderr,
	})
}
