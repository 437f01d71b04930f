package internal

import "runtime"

var goarchs = map[string]string{
	"amd64":    "x86_64",
	"arm64":    "aarch64",
	"386":      "i686",
	"arm":      "armv7",
	"riscv64":  "riscv64gc",
	"ppc64":    "powerpc64",
	"ppc64le":  "powerpc64le",
	"s390x":    "s390x",
	"loong64":  "loongarch64",
	"mips64le": "mips64el",
}

// hostTriple returns the target triple of the running machine.
func hostTriple() string {
	return triple(runtime.GOOS, runtime.GOARCH)
}

// triple maps a GOOS/GOARCH pair to the equivalent target triple. Unknown
// architectures are passed through unchanged.
func triple(goos, goarch string) string {
	arch, ok := goarchs[goarch]
	if !ok {
		arch = goarch
	}
	switch goos {
	case "linux":
		if goarch == "arm" {
			return arch + "-unknown-linux-gnueabihf"
		}
		return arch + "-unknown-linux-gnu"
	case "android":
		if goarch == "arm" {
			return arch + "-linux-androideabi"
		}
		return arch + "-linux-android"
	case "darwin":
		return arch + "-apple-darwin"
	case "ios":
		return arch + "-apple-ios"
	case "windows":
		return arch + "-pc-windows-msvc"
	case "solaris":
		return arch + "-pc-solaris"
	}
	return arch + "-unknown-" + goos
}
