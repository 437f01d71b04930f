package toolchain

import (
	"errors"
	"strings"
)

// ErrNoHost is returned when a host triple is required but empty.
var ErrNoHost = errors.New("host triple is not set")

// IsMSVC reports whether target uses the MSVC toolchain family.
func IsMSVC(target string) bool {
	return strings.Contains(target, "msvc")
}

// IsApple reports whether target is an Apple platform.
func IsApple(target string) bool {
	return strings.Contains(target, "-apple-")
}

// MakeDriver returns the make binary to drive the build on host.
// The BSDs ship BSD make as "make"; GNU make is packaged as "gmake".
func MakeDriver(host string) (string, error) {
	if host == "" {
		return "", ErrNoHost
	}
	for _, bsd := range []string{"freebsd", "dragonfly", "netbsd", "openbsd"} {
		if strings.Contains(host, bsd) {
			return "gmake", nil
		}
	}
	return "make", nil
}

// Arch returns the architecture component of a triple.
func Arch(triple string) string {
	arch, _, _ := strings.Cut(triple, "-")
	return arch
}

// PointerWidth infers the pointer width in bits from the triple's
// architecture. It returns 0 when the architecture is not recognized.
func PointerWidth(triple string) int {
	arch := Arch(triple)
	switch {
	case strings.HasSuffix(triple, "gnux32"), strings.HasPrefix(arch, "arm64_32"):
		return 32
	case arch == "x86_64", arch == "aarch64", arch == "aarch64_be", arch == "arm64e",
		strings.HasPrefix(arch, "powerpc64"), strings.HasPrefix(arch, "mips64"),
		strings.HasPrefix(arch, "riscv64"), arch == "s390x", arch == "sparc64",
		arch == "sparcv9", arch == "loongarch64", arch == "wasm64", arch == "bpfel", arch == "bpfeb":
		return 64
	case arch == "x86", len(arch) == 4 && arch[0] == 'i' && strings.HasSuffix(arch, "86"),
		strings.HasPrefix(arch, "arm"), strings.HasPrefix(arch, "thumb"),
		arch == "mips", arch == "mipsel", strings.HasPrefix(arch, "mipsisa32"),
		arch == "powerpc", strings.HasPrefix(arch, "riscv32"), arch == "wasm32",
		arch == "sparc", arch == "hexagon", arch == "m68k", arch == "csky":
		return 32
	}
	return 0
}

var targetSystems = []struct {
	substr string
	sys    string
}{
	{"linux", "Linux"},
	{"windows", "Windows"},
	{"darwin", "Darwin"},
	{"apple-ios", "iOS"},
	{"solaris", "SunOS"},
	{"illumos", "SunOS"},
	{"haiku", "Haiku"},
}

// TargetSys maps a target triple to the TARGET_SYS value LuaJIT's makefile
// understands. ok is false when the makefile's host detection should be left
// alone.
func TargetSys(target string) (sys string, ok bool) {
	for _, ts := range targetSystems {
		if strings.Contains(target, ts.substr) {
			return ts.sys, true
		}
	}
	return "", false
}

// minimum macOS versions pinned when the caller sets none
var deploymentTargets = map[string]string{
	"x86_64-apple-darwin":  "10.14",
	"aarch64-apple-darwin": "11.0",
}

// DeploymentTarget returns the MACOSX_DEPLOYMENT_TARGET pinned for target.
func DeploymentTarget(target string) (string, bool) {
	v, ok := deploymentTargets[target]
	return v, ok
}

// gnuTriple turns a Rust-style target triple into the prefix GNU cross
// toolchains are conventionally installed under.
func gnuTriple(target string) string {
	parts := strings.Split(target, "-")
	if len(parts) < 3 {
		return target
	}
	arch, vendor, rest := parts[0], parts[1], parts[2:]
	switch {
	case strings.HasPrefix(arch, "armv7"), strings.HasPrefix(arch, "armv6"), strings.HasPrefix(arch, "armv5te"):
		arch = "arm"
	case strings.HasPrefix(arch, "riscv64"):
		arch = "riscv64"
	case strings.HasPrefix(arch, "riscv32"):
		arch = "riscv32"
	}
	if len(rest) == 2 && rest[0] == "windows" && rest[1] == "gnu" {
		return arch + "-w64-mingw32"
	}
	if vendor == "unknown" || vendor == "pc" {
		return arch + "-" + strings.Join(rest, "-")
	}
	return arch + "-" + vendor + "-" + strings.Join(rest, "-")
}

// appleArch returns the -arch value clang expects for an Apple target.
func appleArch(target string) string {
	switch arch := Arch(target); arch {
	case "aarch64":
		return "arm64"
	case "i686", "i386":
		return "i386"
	default:
		return arch
	}
}
