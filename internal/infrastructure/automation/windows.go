package automation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/doeshing/deskgate/internal/domain"
)

// DefaultSystemContainers are shell surfaces that are never a target window.
// The taskbar in particular shows buttons labelled with other applications'
// titles, so a title-only match would pick it.
var DefaultSystemContainers = domain.SystemContainers{
	Classes: []string{
		"Shell_TrayWnd",
		"Shell_SecondaryTrayWnd",
		"Progman",
		"WorkerW",
		"NotifyIconOverflowWindow",
		"TopLevelWindowForOverflowXamlIsland",
	},
	Processes: []string{"StartMenuExperienceHost", "ShellExperienceHost", "SearchHost"},
	Titles:    []string{"Taskbar", "Program Manager", "Start"},
}

// WindowSelector picks the window that owns a target. Candidates are
// filtered against the system container denylist, then matched by owning
// process; a bare title match is only accepted when it is exact.
type WindowSelector struct {
	containers  domain.SystemContainers
	knownOwners map[string][]string
}

// NewWindowSelector merges containers with DefaultSystemContainers.
func NewWindowSelector(settings domain.AutomationSettings) WindowSelector {
	c := DefaultSystemContainers
	c.Classes = append(append([]string{}, c.Classes...), settings.SystemContainers.Classes...)
	c.Processes = append(append([]string{}, c.Processes...), settings.SystemContainers.Processes...)
	c.Titles = append(append([]string{}, c.Titles...), settings.SystemContainers.Titles...)
	return WindowSelector{containers: c, knownOwners: settings.KnownOwners}
}

// IsSystemContainer reports whether w belongs to the shell chrome.
func (s WindowSelector) IsSystemContainer(w domain.Window) bool {
	if strings.TrimSpace(w.Title) == "" {
		return true
	}
	return containsFold(s.containers.Classes, w.ClassName) ||
		containsFold(s.containers.Processes, processName(w.Process)) ||
		containsFold(s.containers.Titles, w.Title)
}

// Owners returns the process names allowed to own the target's window.
func (s WindowSelector) Owners(target domain.Target) []string {
	var owners []string
	if target.Process != "" {
		owners = append(owners, target.Process)
	}
	if target.Window != "" {
		for title, procs := range s.knownOwners {
			if strings.EqualFold(title, target.Window) {
				owners = append(owners, procs...)
			}
		}
	}
	return owners
}

// Select returns the best window for target.
func (s WindowSelector) Select(windows []domain.Window, target domain.Target) (domain.Window, bool) {
	candidates := make([]domain.Window, 0, len(windows))
	for _, w := range windows {
		if !s.IsSystemContainer(w) {
			candidates = append(candidates, w)
		}
	}

	owners := s.Owners(target)
	if len(owners) > 0 {
		var owned []domain.Window
		for _, w := range candidates {
			if containsFold(owners, processName(w.Process)) {
				owned = append(owned, w)
			}
		}
		if len(owned) == 0 {
			return domain.Window{}, false
		}
		if target.Window == "" {
			return owned[0], true
		}
		want := normalize(target.Window)
		for _, w := range owned {
			if normalize(w.Title) == want {
				return w, true
			}
		}
		// An owned window whose title carries extra context, such as
		// "Settings - Bluetooth & devices", still belongs to the process.
		for _, w := range owned {
			if strings.Contains(normalize(w.Title), want) {
				return w, true
			}
		}
		if target.Process != "" {
			return owned[0], true
		}
		return domain.Window{}, false
	}

	if target.Window == "" {
		return domain.Window{}, false
	}
	want := normalize(target.Window)
	for _, w := range candidates {
		if normalize(w.Title) == want {
			return w, true
		}
	}
	return domain.Window{}, false
}

func processName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > 4 && strings.EqualFold(name[len(name)-4:], ".exe") {
		return name[:len(name)-4]
	}
	return name
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(processName(item), value) || strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

// normalize folds case and composes Unicode so UI labels compare reliably.
func normalize(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.Join(strings.Fields(s), " ")))
}
