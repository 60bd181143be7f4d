package actions

import (
	"context"
	"fmt"
	"os"

	"github.com/doeshing/deskgate/internal/domain"
)

type desktopActions struct {
	env *env
}

// opener returns the command that hands path to the desktop shell.
func (d *desktopActions) opener(path string) domain.Command {
	switch d.env.goos {
	case "windows":
		return domain.Command{Name: "explorer.exe", Args: []string{path}}
	case "darwin":
		return domain.Command{Name: "open", Args: []string{path}}
	default:
		return domain.Command{Name: "xdg-open", Args: []string{path}}
	}
}

func (d *desktopActions) openFolder(_ context.Context, action domain.Action) (string, error) {
	path, err := requireString(action, "path")
	if err != nil {
		return "", err
	}
	if err := requireDir(path); err != nil {
		return "", err
	}
	if _, err := d.env.runner.Start(d.opener(path)); err != nil {
		return "", err
	}
	return "Opened folder: " + path, nil
}

func (d *desktopActions) openFile(_ context.Context, action domain.Action) (string, error) {
	path, err := requireString(action, "path")
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("open_file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("open_file: %s is a directory", path)
	}
	if _, err := d.env.runner.Start(d.opener(path)); err != nil {
		return "", err
	}
	return "Opened file: " + path, nil
}

// launchApp starts an application the validator matched against the app
// allowlist. The child is detached so the plan does not wait on it.
func (d *desktopActions) launchApp(_ context.Context, action domain.Action) (string, error) {
	command, err := requireString(action, "command")
	if err != nil {
		return "", err
	}
	pid, err := d.env.runner.Start(domain.Command{Name: command, Args: stringList(action.Args["args"])})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Launched %s (pid %d)", command, pid), nil
}
