package policy

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func windowsCanon() Canonicalizer {
	env := map[string]string{
		"USERPROFILE": `C:\Users\Alice`,
		"EMPTY":       "",
	}
	return Canonicalizer{
		Flavor: FlavorWindows,
		Home:   `C:\Users\Alice`,
		Lookup: func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		},
	}
}

func TestCanonicalizeWindowsTraversal(t *testing.T) {
	c := windowsCanon()
	got, err := c.Canonicalize(`C:\Users\Alice\Downloads\..\..\Windows\System32`)
	require.NoError(t, err)
	require.Equal(t, `C:\Windows\System32`, got)
	require.False(t, c.Within(got, `C:\Users\Alice`, true))
}

func TestCanonicalizeWindowsAccepted(t *testing.T) {
	c := windowsCanon()
	tests := map[string]string{
		`c:/users/alice/Documents/./report.docx`: `C:\users\alice\Documents\report.docx`,
		`%USERPROFILE%\Downloads`:                `C:\Users\Alice\Downloads`,
		`~\Desktop\notes.txt`:                    `C:\Users\Alice\Desktop\notes.txt`,
		`C:\`:                                    `C:\`,
	}
	for raw, want := range tests {
		got, err := c.Canonicalize(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
}

func TestCanonicalizeWindowsDeniesAmbiguity(t *testing.T) {
	c := windowsCanon()
	denied := []string{
		"",
		`\\fileserver\share\report.docx`,
		`\\?\C:\Users\Alice\file.txt`,
		`\\.\PhysicalDrive0`,
		`\Windows\System32`,
		`C:Users\Alice`,
		`Downloads\file.txt`,
		`C:\..\Windows`,
		`C:\Users\Alice\file.txt:hidden`,
		`C:\Users\Alice\trailing.`,
		`C:\Users\Alice\trailing `,
		`C:\PROGRA~1\App`,
		`C:\Users\Alice\NUL.txt`,
		`%MISSING%\x`,
		`%EMPTY%\x`,
		`%%\x`,
		"C:\\Users\\Alice\\a\x00b",
	}
	for _, raw := range denied {
		_, err := c.Canonicalize(raw)
		require.Error(t, err, "expected %q to be denied", raw)
	}
}

func TestWithinIsSeparatorAware(t *testing.T) {
	c := windowsCanon()
	require.True(t, c.Within(`C:\Users\Alice`, `C:\Users\Alice`, true))
	require.True(t, c.Within(`C:\Users\Alice\a`, `C:\Users\Alice`, true))
	require.False(t, c.Within(`C:\Users\Alice2\a`, `C:\Users\Alice`, true))
	require.True(t, c.Within(`C:\USERS\ALICE\a`, `C:\Users\Alice`, true))
	require.False(t, c.Within(`C:\USERS\ALICE\a`, `C:\Users\Alice`, false))
	require.True(t, c.Within(`C:\anything`, `C:\`, true))

	p := Canonicalizer{Flavor: FlavorPOSIX}
	require.True(t, p.Within("/home/alice/a", "/home/alice", false))
	require.False(t, p.Within("/home/alicesmith", "/home/alice", false))
	require.True(t, p.Within("/etc", "/", false))
}

func TestCanonicalizePOSIX(t *testing.T) {
	c := Canonicalizer{
		Flavor: FlavorPOSIX,
		Home:   "/home/alice",
		Lookup: func(name string) (string, bool) {
			if name == "DATA" {
				return "/srv/data", true
			}
			return "", false
		},
	}
	got, err := c.Canonicalize("~/docs/../notes//a.txt")
	require.NoError(t, err)
	require.Equal(t, "/home/alice/notes/a.txt", got)

	got, err = c.Canonicalize("${DATA}/x")
	require.NoError(t, err)
	require.Equal(t, "/srv/data/x", got)

	for _, raw := range []string{"relative/x", "/../etc", "$NOPE/x"} {
		_, err := c.Canonicalize(raw)
		require.Error(t, err, raw)
	}
}

func TestCanonicalizeNormalizesUnicode(t *testing.T) {
	c := Canonicalizer{Flavor: FlavorPOSIX}
	decomposed := "/home/Cafe\u0301"
	got, err := c.Canonicalize(decomposed)
	require.NoError(t, err)
	require.Equal(t, "/home/Caf\u00e9", got)
}

func TestCanonicalizeResolvesSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}
	base := t.TempDir()
	base, err := filepath.EvalSymlinks(base)
	require.NoError(t, err)
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	c := Canonicalizer{Flavor: FlavorPOSIX, Links: OSLinks{}}

	got, err := c.Canonicalize(filepath.Join(root, "link", "new-file.txt"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(outside, "new-file.txt"), got)
	require.False(t, c.Within(got, root, false))

	got, err = c.Canonicalize(filepath.Join(root, "missing", "deeper.txt"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "missing", "deeper.txt"), got)
}
