//go:build !windows

package toolchain

import (
	"io/fs"

	"golang.org/x/sys/unix"
)

func isExecutable(path string, info fs.FileInfo) bool {
	if info.Mode().Perm()&0o111 == 0 {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}

func withExts(path string) []string {
	return []string{path}
}
