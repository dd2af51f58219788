// Package distro maps Linux distribution identifiers to package managers.
package distro

import (
	"bufio"
	"os"
	"sort"
	"strings"

	"github.com/jamesainslie/tuneup/pkg/tuneup/runner"
)

// PackageManager is the closed set of package managers tuneup drives.
type PackageManager int

// Known package managers. None is used for unsupported distributions.
const (
	None PackageManager = iota
	Apt
	Dnf
	Pacman
	Zypper
	Xbps
	Petget
)

// String returns the package manager name.
func (pm PackageManager) String() string {
	switch pm {
	case Apt:
		return "apt"
	case Dnf:
		return "dnf"
	case Pacman:
		return "pacman"
	case Zypper:
		return "zypper"
	case Xbps:
		return "xbps"
	case Petget:
		return "petget"
	default:
		return "none"
	}
}

// Commands is the update/install/query triple of a package manager.
// A zero Command means the manager has no such operation.
type Commands struct {
	Update  runner.Command
	Install runner.Command
	Query   runner.Command
}

// Commands returns the command triple for pm. Install and Query take
// package names as extra arguments.
func (pm PackageManager) Commands() Commands {
	switch pm {
	case Apt:
		return Commands{
			Update:  runner.NewPrivileged("apt-get", "update"),
			Install: runner.NewPrivileged("apt-get", "install", "-y"),
			Query:   runner.New("dpkg", "-s"),
		}
	case Dnf:
		return Commands{
			Update:  runner.NewPrivileged("dnf", "makecache"),
			Install: runner.NewPrivileged("dnf", "install", "-y"),
			Query:   runner.New("rpm", "-q"),
		}
	case Pacman:
		return Commands{
			Update:  runner.NewPrivileged("pacman", "-Sy"),
			Install: runner.NewPrivileged("pacman", "-S", "--noconfirm", "--needed"),
			Query:   runner.New("pacman", "-Q"),
		}
	case Zypper:
		return Commands{
			Update:  runner.NewPrivileged("zypper", "--non-interactive", "refresh"),
			Install: runner.NewPrivileged("zypper", "--non-interactive", "install"),
			Query:   runner.New("rpm", "-q"),
		}
	case Xbps:
		return Commands{
			Update:  runner.NewPrivileged("xbps-install", "-S"),
			Install: runner.NewPrivileged("xbps-install", "-y"),
			Query:   runner.New("xbps-query"),
		}
	case Petget:
		return Commands{
			Install: runner.NewPrivileged("petget"),
		}
	case None:
		return Commands{}
	default:
		return Commands{}
	}
}

// Profile is the detected distribution and its package manager commands.
type Profile struct {
	ID             string
	PackageManager PackageManager
	Commands
}

// CanInstall reports whether the profile has an install command.
func (p Profile) CanInstall() bool {
	return !p.Install.IsZero()
}

// CanQuery reports whether the profile can check for an installed package.
func (p Profile) CanQuery() bool {
	return !p.Query.IsZero()
}

var supported = map[string]PackageManager{
	"ubuntu":     Apt,
	"debian":     Apt,
	"linuxmint":  Apt,
	"pop":        Apt,
	"elementary": Apt,
	"zorin":      Apt,
	"kali":       Apt,
	"raspbian":   Apt,

	"fedora":    Dnf,
	"rhel":      Dnf,
	"centos":    Dnf,
	"rocky":     Dnf,
	"almalinux": Dnf,

	"arch":        Pacman,
	"manjaro":     Pacman,
	"endeavouros": Pacman,
	"garuda":      Pacman,

	"opensuse":            Zypper,
	"opensuse-leap":       Zypper,
	"opensuse-tumbleweed": Zypper,
	"sles":                Zypper,

	"void": Xbps,

	"puppy": Petget,
}

// IsSupported reports whether id is in the supported distribution set.
func IsSupported(id string) bool {
	_, ok := supported[id]
	return ok
}

// Managers returns every package manager except None, in enum order.
func Managers() []PackageManager {
	return []PackageManager{Apt, Dnf, Pacman, Zypper, Xbps, Petget}
}

// SupportedIDs returns the sorted supported distribution ids for pm.
func SupportedIDs(pm PackageManager) []string {
	var ids []string
	for id, m := range supported {
		if m == pm {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Lookup returns the profile for id. Unknown ids get PackageManager None
// and empty commands.
func Lookup(id string) Profile {
	pm := supported[id]
	return Profile{
		ID:             id,
		PackageManager: pm,
		Commands:       pm.Commands(),
	}
}

// ReadID returns the ID= value of an os-release file, or "" when the file
// is missing, unreadable or has no ID line.
func ReadID(path string) string {
	return ReadOSRelease(path)["ID"]
}

// ReadOSRelease parses an os-release file into its key/value pairs.
// Missing or unreadable files yield an empty map.
func ReadOSRelease(path string) map[string]string {
	values := make(map[string]string)

	f, err := os.Open(path)
	if err != nil {
		return values
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}

	return values
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
