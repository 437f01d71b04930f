package toolchain

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/goplus/luajit-src/internal/env"
)

// Family identifies the command-line dialect of a C compiler.
type Family int

const (
	GNU Family = iota
	Clang
	MSVC
)

func (f Family) String() string {
	switch f {
	case Clang:
		return "clang"
	case MSVC:
		return "msvc"
	default:
		return "gnu"
	}
}

// Compiler is a C compiler invocation for one target.
type Compiler struct {
	// Name is the compiler as configured: a bare name or a path.
	Name string
	// Path is Name resolved to an absolute path. Empty until resolved.
	Path string
	// Flags are the default flags for the target, including any words
	// that followed the compiler in a CC-style variable.
	Flags  []string
	Family Family
}

// Command returns the shell-quoted compiler command line with its flags.
func (c Compiler) Command() string {
	bin := c.Path
	if bin == "" {
		bin = c.Name
	}
	return shellquote.Join(append([]string{bin}, c.Flags...)...)
}

// FindCompiler determines the C compiler for target when building on host.
// It consults, in order, CC_<target>, CC_<target with underscores>,
// TARGET_CC (or HOST_CC when target == host) and CC, falling back to the
// conventional compiler name for the target. The result is not resolved
// on PATH.
func FindCompiler(e env.Env, target, host string) (Compiler, error) {
	native := target == host
	cmdline, ok := lookupTargetVar(e, "CC", target, native)
	if !ok {
		cmdline = defaultCompiler(target, host)
	}
	words, err := shellquote.Split(cmdline)
	if err != nil {
		return Compiler{}, fmt.Errorf("parse compiler %q: %w", cmdline, err)
	}
	if len(words) == 0 {
		return Compiler{}, fmt.Errorf("empty compiler command for %s", target)
	}
	cc := Compiler{
		Name:   words[0],
		Family: familyOf(words[0], target),
	}
	cc.Flags = append(cc.Flags, words[1:]...)
	cc.Flags = append(cc.Flags, defaultFlags(cc.Family, target, host, e)...)

	cflags, _ := lookupTargetVar(e, "CFLAGS", target, native)
	extra, err := shellquote.Split(cflags)
	if err != nil {
		return Compiler{}, fmt.Errorf("parse CFLAGS %q: %w", cflags, err)
	}
	cc.Flags = append(cc.Flags, extra...)
	return cc, nil
}

// lookupTargetVar resolves a cc-style variable such as CC or CFLAGS.
func lookupTargetVar(e env.Env, name, target string, native bool) (string, bool) {
	kind := "TARGET_"
	if native {
		kind = "HOST_"
	}
	for _, key := range []string{
		name + "_" + target,
		name + "_" + strings.ReplaceAll(target, "-", "_"),
		kind + name,
		name,
	} {
		if v, ok := e.Lookup(key); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

func defaultCompiler(target, host string) string {
	if IsMSVC(target) {
		return "cl.exe"
	}
	if target == host {
		return "cc"
	}
	switch {
	case IsApple(target):
		return "clang"
	case strings.Contains(target, "android"):
		// NDK standalone toolchains embed the API level in the name.
		t := target
		if Arch(t) == "armv7" {
			t = "armv7a" + t[len("armv7"):]
		}
		return t + "21-clang"
	case strings.Contains(target, "-wasi"):
		return "clang"
	}
	return gnuTriple(target) + "-gcc"
}

func familyOf(compiler, target string) Family {
	name := strings.TrimSuffix(strings.ToLower(filepath.Base(compiler)), ".exe")
	switch {
	case name == "cl" || name == "clang-cl":
		return MSVC
	case strings.Contains(name, "clang"):
		return Clang
	case strings.Contains(name, "gcc"), strings.Contains(name, "g++"):
		return GNU
	case name == "cc" || name == "c++":
		if IsApple(target) || strings.Contains(target, "freebsd") || strings.Contains(target, "openbsd") {
			return Clang
		}
	}
	return GNU
}

func defaultFlags(fam Family, target, host string, e env.Env) []string {
	if fam == MSVC {
		return []string{"-nologo", "-MD", "-Brepro"}
	}
	var flags []string
	if opt := e.Get("OPT_LEVEL"); opt != "" {
		flags = append(flags, "-O"+opt)
	}
	flags = append(flags, "-ffunction-sections", "-fdata-sections")
	if !strings.Contains(target, "windows") {
		flags = append(flags, "-fPIC")
	}
	switch {
	case IsApple(target):
		flags = append(flags, "-arch", appleArch(target))
	case Arch(target) == "x86_64" && !strings.HasSuffix(target, "gnux32"):
		flags = append(flags, "-m64")
	case PointerWidth(target) == 32 && (Arch(target) == "x86" || strings.HasSuffix(Arch(target), "86")):
		flags = append(flags, "-m32")
	}
	if fam == Clang && target != host {
		flags = append(flags, "--target="+target)
	}
	return flags
}

// CrossPrefix returns the toolchain prefix encoded in a GCC- or Clang-style
// compiler name, such as "arm-linux-gnueabihf-" for
// "arm-linux-gnueabihf-gcc". It returns "" for unprefixed compilers.
func CrossPrefix(compiler string) string {
	name := filepath.Base(compiler)
	switch {
	case strings.HasSuffix(name, "-gcc"):
		return strings.TrimSuffix(name, "gcc")
	case strings.HasSuffix(name, "-clang"):
		return strings.TrimSuffix(name, "clang")
	}
	return ""
}
