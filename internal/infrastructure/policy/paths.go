package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Flavor selects the path grammar being canonicalized.
type Flavor int

const (
	FlavorPOSIX Flavor = iota
	FlavorWindows
)

// HostFlavor returns the flavor of the running platform.
func HostFlavor() Flavor {
	if runtime.GOOS == "windows" {
		return FlavorWindows
	}
	return FlavorPOSIX
}

// LinkResolver resolves symbolic links on an absolute, cleaned path.
type LinkResolver interface {
	EvalSymlinks(path string) (string, error)
}

// OSLinks resolves links against the real filesystem.
type OSLinks struct{}

// EvalSymlinks implements LinkResolver.
func (OSLinks) EvalSymlinks(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

// Canonicalizer turns raw path arguments into a single canonical form, or
// refuses when the path is ambiguous.
type Canonicalizer struct {
	Flavor Flavor
	Home   string
	Lookup func(string) (string, bool)
	Links  LinkResolver
}

// NewHostCanonicalizer builds a canonicalizer for the running platform that
// resolves symlinks on disk.
func NewHostCanonicalizer(home string) Canonicalizer {
	return Canonicalizer{
		Flavor: HostFlavor(),
		Home:   home,
		Lookup: os.LookupEnv,
		Links:  OSLinks{},
	}
}

var (
	errEmptyPath = errors.New("path is empty")

	percentVar = regexp.MustCompile(`%([^%]*)%`)
	dollarVar  = regexp.MustCompile(`\$\{([^}]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)
	shortName  = regexp.MustCompile(`~[0-9]`)
	driveAbs   = regexp.MustCompile(`^[A-Za-z]:\\`)
	driveOnly  = regexp.MustCompile(`^[A-Za-z]:`)

	reservedDevices = map[string]bool{
		"CON": true, "PRN": true, "AUX": true, "NUL": true,
		"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
		"COM6": true, "COM7": true, "COM8": true, "COM9": true,
		"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
		"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
	}
)

// Canonicalize expands, cleans and resolves raw. Any ambiguity is an error.
func (c Canonicalizer) Canonicalize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errEmptyPath
	}
	if strings.ContainsRune(raw, 0) {
		return "", errors.New("path contains NUL byte")
	}
	expanded, err := c.expand(raw)
	if err != nil {
		return "", err
	}

	var cleaned string
	if c.Flavor == FlavorWindows {
		cleaned, err = cleanWindows(expanded)
	} else {
		cleaned, err = cleanPOSIX(expanded)
	}
	if err != nil {
		return "", err
	}

	if c.Links != nil {
		cleaned, err = c.resolveLinks(cleaned)
		if err != nil {
			return "", err
		}
	}
	return norm.NFC.String(cleaned), nil
}

func (c Canonicalizer) expand(raw string) (string, error) {
	path := raw
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if c.Home == "" {
			return "", errors.New("home directory unknown")
		}
		path = c.Home + path[1:]
	}

	var missing string
	lookup := func(name string) string {
		if c.Lookup == nil {
			missing = name
			return ""
		}
		value, ok := c.Lookup(name)
		if !ok || value == "" {
			missing = name
		}
		return value
	}

	if c.Flavor == FlavorWindows {
		path = percentVar.ReplaceAllStringFunc(path, func(m string) string {
			name := m[1 : len(m)-1]
			if name == "" {
				missing = "%%"
				return ""
			}
			return lookup(name)
		})
	} else {
		path = dollarVar.ReplaceAllStringFunc(path, func(m string) string {
			name := strings.TrimPrefix(m, "$")
			name = strings.TrimSuffix(strings.TrimPrefix(name, "{"), "}")
			return lookup(name)
		})
	}
	if missing != "" {
		return "", fmt.Errorf("environment variable %q is not set", missing)
	}
	return path, nil
}

func cleanWindows(path string) (string, error) {
	path = strings.ReplaceAll(path, "/", `\`)
	switch {
	case strings.HasPrefix(path, `\\?\`), strings.HasPrefix(path, `\\.\`), strings.HasPrefix(path, `\??\`):
		return "", errors.New("device paths are not allowed")
	case strings.HasPrefix(path, `\\`):
		return "", errors.New("UNC paths are not allowed")
	case strings.HasPrefix(path, `\`):
		return "", errors.New("path has no drive letter")
	case driveOnly.MatchString(path) && !driveAbs.MatchString(path):
		return "", errors.New("drive-relative paths are not allowed")
	case !driveAbs.MatchString(path):
		return "", errors.New("path must be absolute")
	}

	drive := strings.ToUpper(path[:1]) + ":"
	var parts []string
	for _, part := range strings.Split(path[3:], `\`) {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(parts) == 0 {
				return "", errors.New("path escapes the volume root")
			}
			parts = parts[:len(parts)-1]
			continue
		}
		if err := checkWindowsComponent(part); err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return drive + `\` + strings.Join(parts, `\`), nil
}

func checkWindowsComponent(part string) error {
	if strings.ContainsAny(part, `:<>"|?*`) {
		return fmt.Errorf("component %q contains a reserved character", part)
	}
	if strings.HasSuffix(part, ".") || strings.HasSuffix(part, " ") {
		return fmt.Errorf("component %q has a trailing dot or space", part)
	}
	if shortName.MatchString(part) {
		return fmt.Errorf("component %q looks like an 8.3 short name", part)
	}
	base := strings.ToUpper(part)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if reservedDevices[base] {
		return fmt.Errorf("component %q is a reserved device name", part)
	}
	return nil
}

func cleanPOSIX(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", errors.New("path must be absolute")
	}
	var parts []string
	for _, part := range strings.Split(path, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(parts) == 0 {
				return "", errors.New("path escapes the filesystem root")
			}
			parts = parts[:len(parts)-1]
			continue
		}
		parts = append(parts, part)
	}
	return "/" + strings.Join(parts, "/"), nil
}

// resolveLinks resolves the longest existing prefix and re-appends the rest.
func (c Canonicalizer) resolveLinks(path string) (string, error) {
	sep := c.separator()
	prefix := path
	var suffix []string
	for {
		resolved, err := c.Links.EvalSymlinks(prefix)
		if err == nil {
			if len(suffix) == 0 {
				return c.reclean(resolved)
			}
			return c.reclean(strings.TrimSuffix(resolved, sep) + sep + strings.Join(suffix, sep))
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("resolve %s: %w", prefix, err)
		}
		i := strings.LastIndex(prefix, sep)
		if i < 0 || prefix == c.root(prefix) {
			return path, nil
		}
		suffix = append([]string{prefix[i+1:]}, suffix...)
		prefix = prefix[:i]
		if prefix == "" || strings.HasSuffix(prefix, ":") {
			prefix += sep
		}
	}
}

func (c Canonicalizer) reclean(path string) (string, error) {
	if c.Flavor == FlavorWindows {
		return cleanWindows(path)
	}
	return cleanPOSIX(path)
}

func (c Canonicalizer) separator() string {
	if c.Flavor == FlavorWindows {
		return `\`
	}
	return "/"
}

func (c Canonicalizer) root(path string) string {
	if c.Flavor == FlavorWindows && len(path) >= 3 {
		return path[:3]
	}
	return "/"
}

// Within reports whether path equals root or lies beneath it. Both must be
// canonical. The comparison is separator aware, so C:\Users\Al does not
// contain C:\Users\Alice.
func (c Canonicalizer) Within(path, root string, caseInsensitive bool) bool {
	if caseInsensitive {
		folder := cases.Fold()
		path = folder.String(path)
		root = folder.String(root)
	}
	if path == root {
		return true
	}
	sep := c.separator()
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
