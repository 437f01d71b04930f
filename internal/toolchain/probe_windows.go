//go:build windows

package toolchain

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

func isExecutable(path string, info fs.FileInfo) bool {
	attrs, err := windows.GetFileAttributes(windows.StringToUTF16Ptr(path))
	if err != nil || attrs&windows.FILE_ATTRIBUTE_DIRECTORY != 0 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range pathExts() {
		if ext == e {
			return true
		}
	}
	return false
}

func withExts(path string) []string {
	if filepath.Ext(path) != "" {
		return []string{path}
	}
	exts := pathExts()
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		out = append(out, path+e)
	}
	return out
}

func pathExts() []string {
	v := os.Getenv("PATHEXT")
	if v == "" {
		return []string{".com", ".exe", ".bat", ".cmd"}
	}
	var exts []string
	for _, e := range filepath.SplitList(strings.ToLower(v)) {
		if e == "" {
			continue
		}
		if e[0] != '.' {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}
