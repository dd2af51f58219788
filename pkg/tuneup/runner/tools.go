package runner

import (
	"os/exec"
)

// Tools reports which programs are installed.
type Tools interface {
	Has(name string) bool
}

// PathTools looks programs up on $PATH.
type PathTools struct{}

// Has implements Tools.
func (PathTools) Has(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// FirstOf returns the first name tools has, or "" when none is installed.
func FirstOf(tools Tools, names ...string) string {
	for _, name := range names {
		if tools.Has(name) {
			return name
		}
	}
	return ""
}
