package collector

import (
	"os"
	"strings"
)

// EnvironmentSource supplies the variables recorded in the environment section
type EnvironmentSource interface {
	Environ() (map[string]string, error)
}

// ProcessEnvironment reads the environment of the running process
type ProcessEnvironment struct{}

func (ProcessEnvironment) Environ() (map[string]string, error) {
	entries := os.Environ()
	env := make(map[string]string, len(entries))
	for _, entry := range entries {
		name, value, _ := strings.Cut(entry, "=")
		// Windows keeps hidden per-drive entries such as "=C:=C:\"
		if name == "" {
			continue
		}
		env[name] = value
	}
	return env, nil
}

// StaticEnvironment is a fixed set of variables
type StaticEnvironment map[string]string

func (s StaticEnvironment) Environ() (map[string]string, error) {
	env := make(map[string]string, len(s))
	for k, v := range s {
		env[k] = v
	}
	return env, nil
}
