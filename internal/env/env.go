// Package env provides an immutable snapshot of the process environment.
//
// Build configuration reads its defaults and overrides from an Env instead of
// calling os.Getenv, so callers and tests can substitute a synthetic
// environment. Nothing in this package writes to the real process environment.
package env

import (
	"os"
	"runtime"
	"sort"
	"strings"
)

// Env is a read-only set of environment variables.
// The zero value is an empty environment.
type Env struct {
	vars map[string]string
}

// OS returns a snapshot of the current process environment.
func OS() Env {
	return FromList(os.Environ())
}

// FromList builds an Env from "KEY=VALUE" pairs, as returned by os.Environ.
// Later duplicates win. Entries without '=' are ignored.
func FromList(kvs []string) Env {
	vars := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			vars[fold(k)] = v
		}
	}
	return Env{vars: vars}
}

// FromMap builds an Env from a map. The map is copied.
func FromMap(m map[string]string) Env {
	vars := make(map[string]string, len(m))
	for k, v := range m {
		vars[fold(k)] = v
	}
	return Env{vars: vars}
}

// Lookup returns the value of key and whether it is set.
func (e Env) Lookup(key string) (string, bool) {
	v, ok := e.vars[fold(key)]
	return v, ok
}

// Get returns the value of key, or "" if unset.
func (e Env) Get(key string) string {
	return e.vars[fold(key)]
}

// Has reports whether key is set, even to an empty value.
func (e Env) Has(key string) bool {
	_, ok := e.vars[fold(key)]
	return ok
}

// With returns a copy of e with the given variables added or replaced.
func (e Env) With(override map[string]string) Env {
	vars := make(map[string]string, len(e.vars)+len(override))
	for k, v := range e.vars {
		vars[k] = v
	}
	for k, v := range override {
		vars[fold(k)] = v
	}
	return Env{vars: vars}
}

// Environ returns the variables as sorted "KEY=VALUE" pairs,
// suitable for exec.Cmd.Env.
func (e Env) Environ() []string {
	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e.vars[k])
	}
	return out
}

// Merge returns Environ of e with override applied on top.
func (e Env) Merge(override map[string]string) []string {
	return e.With(override).Environ()
}

// Windows treats variable names case-insensitively.
func fold(key string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(key)
	}
	return key
}
