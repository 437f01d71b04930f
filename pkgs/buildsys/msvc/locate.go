package msvc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/goplus/luajit-src/internal/env"
	"github.com/goplus/luajit-src/internal/toolchain"
)

// A Locator finds the environment cl.exe needs to compile for a target:
// typically PATH, INCLUDE and LIB.
type Locator interface {
	Find(ctx context.Context, target string) (map[string]string, error)
}

// VSLocator locates Visual Studio through vswhere and vcvarsall.bat.
type VSLocator struct {
	// Env is the caller's environment.
	Env env.Env
	// Host is the host triple; it selects the cross tools vcvarsall sets up.
	Host string
}

// Find returns nil if Env already belongs to a developer prompt for target
// (VCINSTALLDIR set and cl.exe on PATH). Otherwise it runs vcvarsall.bat and
// returns the variables it changed.
func (l VSLocator) Find(ctx context.Context, target string) (map[string]string, error) {
	arch := Arch(target)
	if arch == "" {
		return nil, fmt.Errorf("msvc: unsupported target %s", target)
	}
	if l.Env.Has("VCINSTALLDIR") {
		if _, err := toolchain.OSProbe(l.Env.Get("PATH")).LookPath("cl.exe"); err == nil {
			log.Debugf("msvc: reusing developer prompt at %s", l.Env.Get("VCINSTALLDIR"))
			return nil, nil
		}
	}
	install, err := l.installPath(ctx)
	if err != nil {
		return nil, err
	}
	vcvars := filepath.Join(install, "VC", "Auxiliary", "Build", "vcvarsall.bat")
	if _, err := os.Stat(vcvars); err != nil {
		return nil, &toolchain.ToolNotFoundError{Tool: "cl.exe", Tried: []string{vcvars}}
	}

	archArg := arch
	if host := Arch(l.Host); host != "" && host != arch {
		archArg = host + "_" + arch
	}
	out, err := runVcvars(ctx, vcvars, archArg, l.Env)
	if err != nil {
		return nil, err
	}
	return ParseSet(out, l.Env), nil
}

func (l VSLocator) installPath(ctx context.Context) (string, error) {
	pf := l.Env.Get("ProgramFiles(x86)")
	if pf == "" {
		pf = `C:\Program Files (x86)`
	}
	vswhere := filepath.Join(pf, "Microsoft Visual Studio", "Installer", "vswhere.exe")
	cmd := exec.CommandContext(ctx, vswhere,
		"-latest", "-products", "*",
		"-requires", "Microsoft.VisualStudio.Component.VC.Tools.x86.x64",
		"-property", "installationPath")
	cmd.Env = l.Env.Environ()
	out, err := cmd.Output()
	if err != nil {
		return "", &toolchain.ToolNotFoundError{Tool: "cl.exe", Tried: []string{vswhere}}
	}
	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", &toolchain.ToolNotFoundError{Tool: "cl.exe", Tried: []string{vswhere}}
	}
	return path, nil
}

func runVcvars(ctx context.Context, vcvars, arch string, base env.Env) ([]byte, error) {
	dir, err := os.MkdirTemp("", "luajit-vcvars-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	script := filepath.Join(dir, "env.bat")
	body := fmt.Sprintf("@call \"%s\" %s >nul\r\n@set\r\n", vcvars, arch)
	if err := os.WriteFile(script, []byte(body), 0o644); err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, "cmd.exe", "/d", "/c", script)
	cmd.Env = base.Environ()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("msvc: %s %s: %w: %s", vcvars, arch, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// ParseSet parses the output of cmd.exe's "set" and returns the variables
// that are new or differ from base.
func ParseSet(out []byte, base env.Env) map[string]string {
	delta := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		k, v, ok := strings.Cut(line, "=")
		if !ok || k == "" {
			continue
		}
		if old, had := base.Lookup(k); had && old == v {
			continue
		}
		delta[k] = v
	}
	return delta
}

// Arch maps a triple's architecture to the name vcvarsall.bat uses.
func Arch(triple string) string {
	switch a := toolchain.Arch(triple); {
	case a == "x86_64":
		return "x64"
	case a == "aarch64":
		return "arm64"
	case a == "i586" || a == "i686":
		return "x86"
	case strings.HasPrefix(a, "thumbv7a"), strings.HasPrefix(a, "armv7"):
		return "arm"
	}
	return ""
}
