// Package luajit builds the vendored LuaJIT sources into a static library
// and headers that a downstream linker step can consume.
//
// A Build is configured from the environment a Cargo build script sees
// (OUT_DIR, TARGET, HOST and so on) and may be adjusted with setters before
// calling Build:
//
//	a, err := luajit.New().Lua52Compat(true).Build(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	a.CargoMetadata(os.Stdout)
package luajit

import (
	"errors"
	"io"
	"strconv"

	"github.com/goplus/luajit-src/internal/artifact"
	"github.com/goplus/luajit-src/internal/env"
	"github.com/goplus/luajit-src/internal/toolchain"
	"github.com/goplus/luajit-src/pkgs/buildsys/msvc"
)

// ErrConfig is wrapped by every error reporting a missing or invalid
// setting. Build returns it before touching the filesystem.
var ErrConfig = errors.New("luajit: invalid configuration")

// Artifacts describes the headers and library a successful Build produced.
type Artifacts = artifact.Artifacts

// Environment variables read by New.
const (
	EnvOutDir       = "OUT_DIR"
	EnvTarget       = "TARGET"
	EnvHost         = "HOST"
	EnvDebug        = "DEBUG"
	EnvProfile      = "PROFILE"
	EnvPointerWidth = "CARGO_CFG_TARGET_POINTER_WIDTH"
	EnvVendorDir    = "LUAJIT_VENDOR_DIR"
	EnvManifestDir  = "CARGO_MANIFEST_DIR"
)

// Build is the configuration of one LuaJIT build.
type Build struct {
	env env.Env

	outDir       string
	target       string
	host         string
	vendorDir    string
	lua52compat  bool
	debug        bool
	pointerWidth int

	stdout  io.Writer
	stderr  io.Writer
	probe   toolchain.Probe
	locator msvc.Locator
}

// An Option adjusts how New reads its defaults or how Build reaches the
// outside world.
type Option func(*Build)

// WithEnv replaces the process environment with environ, a list of
// "KEY=VALUE" pairs. Defaults, overrides and the build's child environment
// all come from it.
func WithEnv(environ []string) Option {
	return func(b *Build) {
		b.env = env.FromList(environ)
	}
}

// WithProbe replaces filesystem access during toolchain discovery.
func WithProbe(p toolchain.Probe) Option {
	return func(b *Build) {
		b.probe = p
	}
}

// WithMSVC replaces the Visual Studio locator used for MSVC targets.
func WithMSVC(l msvc.Locator) Option {
	return func(b *Build) {
		b.locator = l
	}
}

// New returns a Build initialized from the environment.
//
// DEBUG is parsed as a boolean; when it is absent, PROFILE=debug enables
// debug mode. The vendor directory is LUAJIT_VENDOR_DIR, falling back to
// CARGO_MANIFEST_DIR.
func New(opts ...Option) *Build {
	b := &Build{env: env.OS()}
	for _, opt := range opts {
		opt(b)
	}
	e := b.env
	b.outDir = e.Get(EnvOutDir)
	b.target = e.Get(EnvTarget)
	b.host = e.Get(EnvHost)
	if v, ok := e.Lookup(EnvDebug); ok {
		b.debug, _ = strconv.ParseBool(v)
	} else {
		b.debug = e.Get(EnvProfile) == "debug"
	}
	b.pointerWidth, _ = strconv.Atoi(e.Get(EnvPointerWidth))
	b.vendorDir = e.Get(EnvVendorDir)
	if b.vendorDir == "" {
		b.vendorDir = e.Get(EnvManifestDir)
	}
	return b
}

// OutDir sets the directory that receives luajit-build, lib and include.
func (b *Build) OutDir(dir string) *Build {
	b.outDir = dir
	return b
}

// Target sets the triple the library is built for.
func (b *Build) Target(triple string) *Build {
	b.target = triple
	return b
}

// Host sets the triple of the machine running the build.
func (b *Build) Host(triple string) *Build {
	b.host = triple
	return b
}

// Lua52Compat enables LuaJIT's optional Lua 5.2 features.
func (b *Build) Lua52Compat(on bool) *Build {
	b.lua52compat = on
	return b
}

// Debug enables assertions, API checks and debug symbols.
func (b *Build) Debug(on bool) *Build {
	b.debug = on
	return b
}

// VendorDir sets the directory holding luajit2/ and luajit_relver.txt.
func (b *Build) VendorDir(dir string) *Build {
	b.vendorDir = dir
	return b
}

// PointerWidth sets the target's pointer width in bits. Zero means infer
// it from the target triple.
func (b *Build) PointerWidth(bits int) *Build {
	b.pointerWidth = bits
	return b
}

// Stdout sets where the external build's standard output goes.
func (b *Build) Stdout(w io.Writer) *Build {
	b.stdout = w
	return b
}

// Stderr sets where the external build's standard error goes.
func (b *Build) Stderr(w io.Writer) *Build {
	b.stderr = w
	return b
}
