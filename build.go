package luajit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qiniu/x/log"

	"github.com/goplus/luajit-src/internal/artifact"
	"github.com/goplus/luajit-src/internal/stage"
	"github.com/goplus/luajit-src/internal/toolchain"
	"github.com/goplus/luajit-src/pkgs/buildsys"
	"github.com/goplus/luajit-src/pkgs/buildsys/gmake"
	"github.com/goplus/luajit-src/pkgs/buildsys/msvc"
)

// Layout of the vendor directory and the output directory.
const (
	SourceDir   = "luajit2"
	RelverFile  = "luajit_relver.txt"
	BuildDir    = "luajit-build"
	LibDir      = "lib"
	IncludeDir  = "include"
	relverStage = ".relver"
)

// Build stages the vendored sources under the output directory, runs the
// platform's build and collects the results.
//
// Targets containing "msvc" are built with msvcbuild.bat; everything else
// with LuaJIT's makefile. Missing settings are reported as ErrConfig before
// anything is written. On failure no Artifacts are returned.
func (b *Build) Build(ctx context.Context) (*Artifacts, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	msvcTarget := toolchain.IsMSVC(b.target)

	var bs buildsys.BuildSystem
	var err error
	out := b.outDir
	buildDir := filepath.Join(out, BuildDir)
	srcDir := filepath.Join(buildDir, "src")
	if msvcTarget {
		bs, err = b.msvcBuild(ctx, srcDir)
	} else {
		bs, err = b.makeBuild(srcDir)
	}
	if err != nil {
		return nil, err
	}

	includeDir := filepath.Join(out, IncludeDir)
	libDir := filepath.Join(out, LibDir)
	for _, dir := range []string{libDir, includeDir} {
		if err := stage.Fresh(dir); err != nil {
			return nil, err
		}
	}
	if err := stage.Stage(filepath.Join(b.vendorDir, SourceDir), buildDir); err != nil {
		return nil, err
	}
	if err := stage.CopyWritable(filepath.Join(b.vendorDir, RelverFile), filepath.Join(buildDir, relverStage)); err != nil {
		return nil, err
	}

	log.Debugf("luajit: building %s on %s", b.target, b.host)
	if err := bs.Build(ctx); err != nil {
		return nil, err
	}
	return artifact.Collect(buildDir, includeDir, libDir, msvcTarget)
}

func (b *Build) validate() error {
	missing := func(what, key string) error {
		return fmt.Errorf("%w: %s is not set (use %s)", ErrConfig, what, key)
	}
	switch {
	case b.outDir == "":
		return missing("output directory", EnvOutDir)
	case b.target == "":
		return missing("target triple", EnvTarget)
	case b.host == "":
		return missing("host triple", EnvHost)
	case b.vendorDir == "":
		return missing("vendor directory", EnvVendorDir)
	}
	src := filepath.Join(b.vendorDir, SourceDir)
	if fi, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: vendored sources: %w", ErrConfig, err)
	} else if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrConfig, src)
	}
	return nil
}

func (b *Build) makeBuild(srcDir string) (buildsys.BuildSystem, error) {
	width := b.pointerWidth
	if width == 0 {
		width = toolchain.PointerWidth(b.target)
	}
	if width == 0 {
		return nil, fmt.Errorf("%w: pointer width of %s is unknown (use %s)", ErrConfig, b.target, EnvPointerWidth)
	}
	plan, err := toolchain.Resolve(toolchain.Options{
		Target:       b.target,
		Host:         b.host,
		PointerWidth: width,
		Lua52Compat:  b.lua52compat,
		Debug:        b.debug,
		Env:          b.env,
		Probe:        b.probe,
	})
	if err != nil {
		return nil, err
	}
	m := gmake.New(plan.Make, srcDir, b.env).XCFLAGS(plan.XCFLAGS...).Output(b.stdout, b.stderr)
	for k, v := range plan.Env {
		m.Env(k, v)
	}
	return m, nil
}

func (b *Build) msvcBuild(ctx context.Context, srcDir string) (buildsys.BuildSystem, error) {
	locator := b.locator
	if locator == nil {
		locator = msvc.VSLocator{Env: b.env, Host: b.host}
	}
	vars, err := locator.Find(ctx, b.target)
	if err != nil {
		return nil, err
	}
	return msvc.New(srcDir, b.env).Lua52Compat(b.lua52compat).Envs(vars).Output(b.stdout, b.stderr), nil
}
