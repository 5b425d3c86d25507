package mcp

import (
	"fmt"
	"slices"
	"strings"
)

// GetEnv is the placeholder value that copies a variable from the parent environment.
const GetEnv = "GET_ENV"

// DefaultInherited lists the variables a server gets when its config has no env.
var DefaultInherited = []string{"HOME", "LOGNAME", "PATH", "SHELL", "TERM", "USER"}

// ResolveEnv builds the explicit environment of a server process from its
// configured variables and the parent environment (os.Environ form).
//
// An empty configured env inherits DefaultInherited. A GET_ENV value is
// replaced by the parent's value and must exist there. PATH is copied from the
// parent when the result lacks it. Values starting with "()" are skipped in the
// inherited set, they are exported shell functions. The result is sorted.
func ResolveEnv(configured map[string]string, parent []string) ([]string, error) {
	lookup := environMap(parent)
	env := make(map[string]string, len(configured)+1)
	if len(configured) == 0 {
		for _, k := range DefaultInherited {
			if v, ok := lookup[k]; ok && !strings.HasPrefix(v, "()") {
				env[k] = v
			}
		}
	}
	for k, v := range configured {
		if v == GetEnv {
			pv, ok := lookup[k]
			if !ok {
				return nil, fmt.Errorf("env %s: %s requested but not set in the parent environment", k, GetEnv)
			}
			v = pv
		}
		env[k] = v
	}
	if _, ok := env["PATH"]; !ok {
		if pv, ok := lookup["PATH"]; ok {
			env["PATH"] = pv
		}
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out, nil
}

func environMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		m[k] = v
	}
	return m
}
