package actions

import (
	"context"
	"fmt"

	"github.com/doeshing/deskgate/internal/domain"
)

// Settings pages are hosted by SystemSettings.exe, whose frame window is
// titled "Settings".
const (
	settingsProcess = "SystemSettings"
	settingsWindow  = "Settings"
)

type guiActions struct {
	env *env
}

func targetFromArgs(action domain.Action, op domain.Operation) domain.Target {
	t := domain.Target{Operation: op}
	t.Window, _ = action.StringArg("window")
	t.Process, _ = action.StringArg("process")
	t.Element, _ = action.StringArg("element")
	t.Role, _ = action.StringArg("role")
	t.Template, _ = action.StringArg("template")
	return t
}

func (g *guiActions) clickElement(_ context.Context, action domain.Action) (domain.Target, error) {
	t := targetFromArgs(action, domain.OpClick)
	if !t.Locates() {
		return domain.Target{}, fmt.Errorf("click_element: element or template is required")
	}
	return t, nil
}

func (g *guiActions) setToggle(_ context.Context, action domain.Action) (domain.Target, error) {
	t := targetFromArgs(action, domain.OpToggle)
	raw, ok := action.Args["state"].(bool)
	if !ok {
		return domain.Target{}, fmt.Errorf("set_toggle: state must be a boolean")
	}
	t.State = &raw
	if t.Role == "" {
		t.Role = "ToggleButton"
	}
	return t, nil
}

func (g *guiActions) typeText(_ context.Context, action domain.Action) (domain.Target, error) {
	t := targetFromArgs(action, domain.OpType)
	text, ok := action.StringArg("text")
	if !ok {
		return domain.Target{}, fmt.Errorf("type_text: text is required")
	}
	t.Text = text
	return t, nil
}

// navigateSettings opens an ms-settings: page and, when an element is named,
// targets it inside the Settings window.
func (g *guiActions) navigateSettings(_ context.Context, action domain.Action) (domain.Target, error) {
	uri, err := requireString(action, "uri")
	if err != nil {
		return domain.Target{}, err
	}
	if g.env.goos != "windows" {
		return domain.Target{}, fmt.Errorf("navigate_settings: %w", domain.ErrDesktopUnavailable)
	}
	if _, err := g.env.runner.Start(domain.Command{Name: "explorer.exe", Args: []string{uri}}); err != nil {
		return domain.Target{}, err
	}
	t := domain.Target{Window: settingsWindow, Process: settingsProcess, Operation: domain.OpClick}
	t.Element, _ = action.StringArg("element")
	t.Role, _ = action.StringArg("role")
	return t, nil
}
