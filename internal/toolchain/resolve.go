// Package toolchain decides which native tools drive a LuaJIT build and which
// environment variables tell LuaJIT's makefile about them.
package toolchain

import (
	"errors"
	"path/filepath"

	"github.com/qiniu/x/log"
	"golang.org/x/mod/semver"

	"github.com/goplus/luajit-src/internal/env"
)

// Variables the caller may set to bypass discovery. When present in the
// environment, their values are used verbatim.
const (
	EnvHostCC           = "HOST_CC"
	EnvStaticCC         = "STATIC_CC"
	EnvTargetLD         = "TARGET_LD"
	EnvTargetAR         = "TARGET_AR"
	EnvTargetStrip      = "TARGET_STRIP"
	EnvDeploymentTarget = "MACOSX_DEPLOYMENT_TARGET"

	EnvTargetSys = "TARGET_SYS"
)

// Overrides lists the variables that, when changed, invalidate a build.
var Overrides = []string{
	EnvHostCC,
	EnvStaticCC,
	EnvTargetLD,
	EnvTargetAR,
	EnvTargetStrip,
	EnvDeploymentTarget,
}

// Options are the inputs to Resolve.
type Options struct {
	Target string
	Host   string
	// PointerWidth of the target in bits.
	PointerWidth int
	Lua52Compat  bool
	Debug        bool
	// Env is the caller's environment; overrides are read from it.
	Env env.Env
	// Probe defaults to OSProbe over Env's PATH.
	Probe Probe
}

// Plan is the resolved toolchain for one build. It is not modified after
// Resolve returns.
type Plan struct {
	// Make is the make driver resolved on the search path.
	Make     string
	Compiler Compiler
	// StaticCC, Linker, Archiver, Strip and HostCC hold the command each
	// slot resolves to, overrides included.
	StaticCC string
	Linker   string
	Archiver string
	Strip    string
	HostCC   string

	// DeploymentTarget is MACOSX_DEPLOYMENT_TARGET for Apple targets.
	DeploymentTarget string

	// Env holds the variables to export to the build that the caller's
	// environment does not already define.
	Env map[string]string
	// XCFLAGS are extra flags passed to the LuaJIT makefile.
	XCFLAGS []string
}

var errNoTarget = errors.New("target triple is not set")

// Resolve computes the toolchain plan for a Unix-style build.
func Resolve(opts Options) (*Plan, error) {
	if opts.Target == "" {
		return nil, errNoTarget
	}
	driver, err := MakeDriver(opts.Host)
	if err != nil {
		return nil, err
	}
	probe := opts.Probe
	if probe == nil {
		probe = OSProbe(opts.Env.Get("PATH"))
	}
	if driver, err = resolveTool(probe, driver); err != nil {
		return nil, err
	}
	e := opts.Env
	p := &Plan{
		Make: driver,
		Env:  make(map[string]string),
	}

	cc, err := FindCompiler(e, opts.Target, opts.Host)
	if err != nil {
		return nil, err
	}
	prefix := CrossPrefix(cc.Name)
	if cc.Path, err = resolveTool(probe, cc.Name); err != nil {
		return nil, err
	}
	p.Compiler = cc
	bindir := filepath.Dir(cc.Path)
	log.Debugf("toolchain: compiler %s (%s), prefix %q", cc.Path, cc.Family, prefix)

	command := func() (string, error) { return cc.Command(), nil }
	if p.StaticCC, err = p.setDefault(e, EnvStaticCC, command); err != nil {
		return nil, err
	}
	if p.Linker, err = p.setDefault(e, EnvTargetLD, command); err != nil {
		return nil, err
	}
	p.Archiver, err = p.setDefault(e, EnvTargetAR, func() (string, error) {
		ar, err := First(probe, prefix+"ar", CompanionStrategies("ar", prefix, bindir, cc.Family)...)
		if err != nil {
			return "", err
		}
		return ar + " rcus", nil
	})
	if err != nil {
		return nil, err
	}
	p.Strip, err = p.setDefault(e, EnvTargetStrip, func() (string, error) {
		return First(probe, prefix+"strip", CompanionStrategies("strip", prefix, bindir, cc.Family)...)
	})
	if err != nil {
		return nil, err
	}

	if sys, ok := TargetSys(opts.Target); ok {
		p.setDefault(e, EnvTargetSys, constant(sys))
	}
	if floor, ok := DeploymentTarget(opts.Target); ok {
		p.DeploymentTarget, _ = p.setDefault(e, EnvDeploymentTarget, constant(floor))
		if belowFloor(p.DeploymentTarget, floor) {
			log.Warnf("toolchain: %s=%s is below %s, the minimum for %s", EnvDeploymentTarget, p.DeploymentTarget, floor, opts.Target)
		}
	}

	// 32-bit cross builds need a host compiler that emits 32-bit code for
	// the buildvm and minilua helpers.
	if opts.PointerWidth == 32 {
		p.HostCC, err = p.setDefault(e, EnvHostCC, func() (string, error) {
			hcc, err := FindCompiler(e, opts.Host, opts.Host)
			if err != nil {
				return "", err
			}
			path, err := resolveTool(probe, hcc.Name)
			if err != nil {
				return "", err
			}
			return path + " -m32", nil
		})
		if err != nil {
			return nil, err
		}
	}

	p.XCFLAGS = XCFLAGS(opts.Lua52Compat, opts.Debug)
	return p, nil
}

// belowFloor reports whether the macOS version v is older than floor.
// Versions that do not parse are never below.
func belowFloor(v, floor string) bool {
	return semver.IsValid("v"+v) && semver.Compare("v"+v, "v"+floor) < 0
}

// resolveTool finds name on the probe's search path.
func resolveTool(probe Probe, name string) (string, error) {
	path, err := probe.LookPath(name)
	if err != nil {
		return "", &ToolNotFoundError{Tool: name, Tried: []string{OnPath(name).String()}}
	}
	return path, nil
}

// setDefault returns the caller's value for key if set; otherwise it
// computes one, records it in p.Env and returns it.
func (p *Plan) setDefault(e env.Env, key string, compute func() (string, error)) (string, error) {
	if v, ok := e.Lookup(key); ok {
		log.Debugf("toolchain: %s overridden by environment", key)
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return "", err
	}
	p.Env[key] = v
	return v, nil
}

func constant(v string) func() (string, error) {
	return func() (string, error) { return v, nil }
}

// XCFLAGS returns the extra C flags for LuaJIT's makefile.
func XCFLAGS(lua52compat, debug bool) []string {
	flags := []string{"-fPIC"}
	if lua52compat {
		flags = append(flags, "-DLUAJIT_ENABLE_LUA52COMPAT")
	}
	if debug {
		flags = append(flags, "-DLUA_USE_ASSERT", "-DLUA_USE_APICHECK", "-g")
	}
	return flags
}
