package luajit

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/qiniu/x/log"

	"github.com/goplus/luajit-src/internal/artifact"
	"github.com/goplus/luajit-src/internal/toolchain"
	"github.com/goplus/luajit-src/pkgs/buildsys"
)

// vendorTree lays out a vendor directory: luajit2/ with headers and a
// .git dir, plus a read-only luajit_relver.txt.
func vendorTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, SourceDir, "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, h := range artifact.Headers {
		if err := os.WriteFile(filepath.Join(src, h), []byte("/* "+h+" */\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(src, "msvcbuild.bat"), []byte("@exit /b 1\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	git := filepath.Join(dir, SourceDir, ".git")
	if err := os.MkdirAll(git, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(git, "HEAD"), []byte("ref: refs/heads/v2.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, RelverFile), []byte("1700000000\n"), 0o444); err != nil {
		t.Fatal(err)
	}
	return dir
}

// fakeTools puts stand-ins for make, cc, ar and strip into a directory for
// use as the build's PATH. The fake make records its environment to
// record.txt next to the tools and leaves a static library behind.
func fakeTools(t *testing.T) (bin, record string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	bin = t.TempDir()
	record = filepath.Join(bin, "record.txt")
	scripts := map[string]string{
		"make": `#!/bin/sh
{
  echo "args=$*"
  echo "TARGET_SYS=$TARGET_SYS"
  echo "XCFLAGS=$XCFLAGS"
  echo "BUILDMODE=$BUILDMODE"
  echo "STATIC_CC=$STATIC_CC"
  echo "TARGET_AR=$TARGET_AR"
  echo "TARGET_STRIP=$TARGET_STRIP"
  echo "HOST_CC=$HOST_CC"
} > "` + record + `"
echo "!<arch>" > libluajit.a
`,
		"cc":    "#!/bin/sh\nexit 0\n",
		"ar":    "#!/bin/sh\nexit 0\n",
		"strip": "#!/bin/sh\nexit 0\n",
	}
	for name, body := range scripts {
		if err := os.WriteFile(filepath.Join(bin, name), []byte(body), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return bin, record
}

func TestBuildUnix(t *testing.T) {
	bin, record := fakeTools(t)
	vendor := vendorTree(t)
	out := t.TempDir()
	const triple = "x86_64-unknown-linux-gnu"

	// Leftovers from an earlier failed build must not survive.
	stale := filepath.Join(out, BuildDir, "stale.o")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	var output bytes.Buffer
	b := New(WithEnv([]string{
		"PATH=" + bin,
		"OUT_DIR=" + out,
		"TARGET=" + triple,
		"HOST=" + triple,
		"LUAJIT_VENDOR_DIR=" + vendor,
	})).Stdout(&output).Stderr(&output)

	a, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(a.Libs) != 1 || a.Libs[0] != "luajit" {
		t.Errorf("Libs = %v, want [luajit]", a.Libs)
	}
	if a.LibDir != filepath.Join(out, LibDir) || a.IncludeDir != filepath.Join(out, IncludeDir) {
		t.Errorf("Artifacts = %+v", a)
	}
	if _, err := os.Stat(filepath.Join(out, LibDir, "libluajit.a")); err != nil {
		t.Errorf("library missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, IncludeDir, "luajit.h")); err != nil {
		t.Errorf("header missing: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale file survived: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, BuildDir, ".git")); !os.IsNotExist(err) {
		t.Errorf(".git was staged: %v", err)
	}
	fi, err := os.Stat(filepath.Join(out, BuildDir, ".relver"))
	if err != nil {
		t.Fatalf("relver not staged: %v", err)
	}
	if fi.Mode().Perm()&0o200 == 0 {
		t.Errorf(".relver mode = %v, want owner-writable", fi.Mode())
	}

	data, err := os.ReadFile(record)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	for _, want := range []string{
		"args=-e\n",
		"TARGET_SYS=Linux\n",
		"XCFLAGS=-fPIC\n",
		"BUILDMODE=static\n",
		"TARGET_AR=" + filepath.Join(bin, "ar") + " rcus\n",
		"TARGET_STRIP=" + filepath.Join(bin, "strip") + "\n",
		"HOST_CC=\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("make saw no %q:\n%s", want, got)
		}
	}
	if !strings.Contains(got, "STATIC_CC="+filepath.Join(bin, "cc")+" ") {
		t.Errorf("STATIC_CC not the resolved compiler:\n%s", got)
	}
	if os.Getenv("TARGET_SYS") != "" {
		t.Error("TARGET_SYS leaked into the process environment")
	}
}

func TestBuildUsesMakeFromEnvPath(t *testing.T) {
	bin, record := fakeTools(t)
	vendor := vendorTree(t)
	const triple = "x86_64-unknown-linux-gnu"

	// A different make on the process PATH must not be picked up.
	decoy := t.TempDir()
	if err := os.WriteFile(filepath.Join(decoy, "make"), []byte("#!/bin/sh\nexit 9\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", decoy)

	b := New(WithEnv([]string{"PATH=" + bin})).
		OutDir(t.TempDir()).Target(triple).Host(triple).VendorDir(vendor).Stdout(&bytes.Buffer{})
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := os.Stat(record); err != nil {
		t.Errorf("make from the build's PATH did not run: %v", err)
	}
}

func TestBuildQuietAtInfoLevel(t *testing.T) {
	bin, _ := fakeTools(t)
	vendor := vendorTree(t)
	const triple = "x86_64-unknown-linux-gnu"

	var logged bytes.Buffer
	level := log.GetOutputLevel()
	log.SetOutput(&logged)
	log.SetOutputLevel(log.Linfo)
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetOutputLevel(level)
	}()

	b := New(WithEnv([]string{"PATH=" + bin})).
		OutDir(t.TempDir()).Target(triple).Host(triple).VendorDir(vendor).Stdout(&bytes.Buffer{})
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if logged.Len() != 0 {
		t.Errorf("successful build logged at info level:\n%s", logged.String())
	}
}

func TestBuildDebugCompat(t *testing.T) {
	bin, record := fakeTools(t)
	vendor := vendorTree(t)
	const triple = "x86_64-unknown-linux-gnu"
	b := New(WithEnv([]string{"PATH=" + bin, "PROFILE=debug"})).
		OutDir(t.TempDir()).Target(triple).Host(triple).VendorDir(vendor).
		Lua52Compat(true).Stdout(&bytes.Buffer{})
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := os.ReadFile(record)
	if err != nil {
		t.Fatal(err)
	}
	want := "XCFLAGS=-fPIC -DLUAJIT_ENABLE_LUA52COMPAT -DLUA_USE_ASSERT -DLUA_USE_APICHECK -g\n"
	if !strings.Contains(string(data), want) {
		t.Errorf("make saw:\n%s\nwant %q", data, want)
	}
}

func TestBuildOverridesReachMake(t *testing.T) {
	bin, record := fakeTools(t)
	vendor := vendorTree(t)
	const triple = "x86_64-unknown-linux-gnu"
	b := New(WithEnv([]string{
		"PATH=" + bin,
		"TARGET_AR=my-ar rcus",
		"TARGET_STRIP=my-strip",
	})).OutDir(t.TempDir()).Target(triple).Host(triple).VendorDir(vendor).Stdout(&bytes.Buffer{})
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := os.ReadFile(record)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"TARGET_AR=my-ar rcus\n", "TARGET_STRIP=my-strip\n"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("make saw no %q:\n%s", want, data)
		}
	}
}

func TestBuildMissingLibrary(t *testing.T) {
	bin, _ := fakeTools(t)
	if err := os.WriteFile(filepath.Join(bin, "make"), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	vendor := vendorTree(t)
	const triple = "x86_64-unknown-linux-gnu"
	b := New(WithEnv([]string{"PATH=" + bin})).
		OutDir(t.TempDir()).Target(triple).Host(triple).VendorDir(vendor)
	a, err := b.Build(context.Background())
	if !errors.Is(err, artifact.ErrMissingLibrary) {
		t.Fatalf("err = %v, want ErrMissingLibrary", err)
	}
	if a != nil {
		t.Errorf("Artifacts = %+v, want nil", a)
	}
}

func TestBuildMakeFailure(t *testing.T) {
	bin, _ := fakeTools(t)
	if err := os.WriteFile(filepath.Join(bin, "make"), []byte("#!/bin/sh\nexit 2\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	vendor := vendorTree(t)
	const triple = "x86_64-unknown-linux-gnu"
	b := New(WithEnv([]string{"PATH=" + bin})).
		OutDir(t.TempDir()).Target(triple).Host(triple).VendorDir(vendor)
	_, err := b.Build(context.Background())
	var ee *buildsys.ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *buildsys.ExitError", err)
	}
	if ee.ExitCode() != 2 {
		t.Errorf("ExitCode = %d, want 2", ee.ExitCode())
	}
}

func TestBuildConfigErrors(t *testing.T) {
	vendor := vendorTree(t)
	const triple = "x86_64-unknown-linux-gnu"
	tests := []struct {
		name  string
		setup func(b *Build, out string)
		want  string
	}{
		{"no out dir", func(b *Build, out string) { b.OutDir("") }, "OUT_DIR"},
		{"no target", func(b *Build, out string) { b.Target("") }, "TARGET"},
		{"no host", func(b *Build, out string) { b.Host("") }, "HOST"},
		{"no vendor", func(b *Build, out string) { b.VendorDir("") }, "LUAJIT_VENDOR_DIR"},
		{"missing sources", func(b *Build, out string) { b.VendorDir(t.TempDir()) }, "vendored sources"},
		{"unknown pointer width", func(b *Build, out string) {
			b.Target("xtensa-esp32-none-elf")
		}, "CARGO_CFG_TARGET_POINTER_WIDTH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "out")
			b := New(WithEnv(nil)).OutDir(out).Target(triple).Host(triple).VendorDir(vendor)
			tt.setup(b, out)
			_, err := b.Build(context.Background())
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("err = %v, want ErrConfig", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want mention of %s", err, tt.want)
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Errorf("output dir touched before validation failed: %v", err)
			}
		})
	}
}

func TestBuildToolNotFound(t *testing.T) {
	vendor := vendorTree(t)
	out := filepath.Join(t.TempDir(), "out")
	const triple = "x86_64-unknown-linux-gnu"
	b := New(WithEnv([]string{"PATH=" + t.TempDir()})).
		OutDir(out).Target(triple).Host(triple).VendorDir(vendor)
	_, err := b.Build(context.Background())
	var nf *toolchain.ToolNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *toolchain.ToolNotFoundError", err)
	}
	if nf.Tool != "make" {
		t.Errorf("Tool = %q, want make", nf.Tool)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output dir created despite discovery failure: %v", err)
	}
}

type fakeLocator struct {
	target string
	vars   map[string]string
	err    error
}

func (l *fakeLocator) Find(ctx context.Context, target string) (map[string]string, error) {
	l.target = target
	return l.vars, l.err
}

func TestBuildMSVCDispatch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("msvcbuild.bat would run for real")
	}
	vendor := vendorTree(t)
	out := t.TempDir()
	loc := &fakeLocator{vars: map[string]string{"INCLUDE": `C:\VC\include`}}
	const triple = "x86_64-pc-windows-msvc"
	b := New(WithEnv(nil), WithMSVC(loc)).
		OutDir(out).Target(triple).Host(triple).VendorDir(vendor).Lua52Compat(true)

	_, err := b.Build(context.Background())
	var ee *buildsys.ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *buildsys.ExitError from the batch script", err)
	}
	if loc.target != triple {
		t.Errorf("locator asked for %q", loc.target)
	}
	wantArgv := []string{filepath.Join(out, BuildDir, "src", "msvcbuild.bat"), "lua52compat", "static"}
	if strings.Join(ee.Argv, "|") != strings.Join(wantArgv, "|") {
		t.Errorf("Argv = %q, want %q", ee.Argv, wantArgv)
	}
	if ee.Env["INCLUDE"] != `C:\VC\include` {
		t.Errorf("Env = %v, want locator variables", ee.Env)
	}
}

func TestBuildMSVCLocatorError(t *testing.T) {
	vendor := vendorTree(t)
	out := filepath.Join(t.TempDir(), "out")
	loc := &fakeLocator{err: &toolchain.ToolNotFoundError{Tool: "cl.exe"}}
	const triple = "i686-pc-windows-msvc"
	b := New(WithEnv(nil), WithMSVC(loc)).OutDir(out).Target(triple).Host(triple).VendorDir(vendor)
	_, err := b.Build(context.Background())
	var nf *toolchain.ToolNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *toolchain.ToolNotFoundError", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output dir created despite locator failure: %v", err)
	}
}
