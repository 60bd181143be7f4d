// Package actions implements the catalog handlers: direct actions that run in
// process, script builders for privileged actions, and target builders for
// interactive GUI actions.
package actions

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

// Registry implements ports.HandlerRegistry.
type Registry struct {
	direct      map[string]ports.ActionHandler
	privileged  map[string]ports.ScriptBuilder
	interactive map[string]ports.InteractiveHandler
}

// Option customises the registry.
type Option func(*env)

// WithGOOS overrides the target platform used to pick commands and scripts.
func WithGOOS(goos string) Option {
	return func(e *env) { e.goos = goos }
}

// WithProcessLister replaces the process table source.
func WithProcessLister(lister ProcessLister) Option {
	return func(e *env) { e.processes = lister }
}

// env carries what handlers need from the host.
type env struct {
	runner    ports.ProcessRunner
	goos      string
	processes ProcessLister
}

// NewRegistry builds handlers for every catalog action.
func NewRegistry(runner ports.ProcessRunner, opts ...Option) *Registry {
	e := &env{runner: runner, goos: runtime.GOOS}
	for _, opt := range opts {
		opt(e)
	}
	if e.processes == nil {
		e.processes = hostProcessLister(e)
	}

	files := &fileActions{}
	desktop := &desktopActions{env: e}
	system := &systemActions{env: e}
	scripts := &scriptBuilders{goos: e.goos}
	gui := &guiActions{env: e}

	return &Registry{
		direct: map[string]ports.ActionHandler{
			"chat":                        handler{chat, describeChat},
			"open_folder":                 handler{desktop.openFolder, describePath("Open folder")},
			"open_file":                   handler{desktop.openFile, describePath("Open file")},
			"list_files":                  handler{files.listFiles, describePath("List files in")},
			"find_file":                   handler{files.findFile, describeFind},
			"get_top_processes_by_memory": handler{system.topProcesses, describeTopProcesses},
			"bluetooth_state":             handler{system.bluetoothState, describeFixed("Report Bluetooth state")},
			"create_file":                 handler{files.createFile, describePath("Create file")},
			"copy_file":                   handler{files.copyFile, describeTransfer("Copy")},
			"launch_app":                  handler{desktop.launchApp, describeLaunch},
			"move_file":                   handler{files.moveFile, describeTransfer("Move")},
			"delete_file":                 handler{files.deleteFile, describePath("Delete file")},
		},
		privileged: map[string]ports.ScriptBuilder{
			"bluetooth_on":     scriptBuilder{scripts.bluetoothOn, describeFixed("Turn Bluetooth on")},
			"bluetooth_off":    scriptBuilder{scripts.bluetoothOff, describeFixed("Turn Bluetooth off")},
			"bluetooth_toggle": scriptBuilder{scripts.bluetoothToggle, describeFixed("Toggle Bluetooth")},
			"run_powershell":   scriptBuilder{scripts.runPowerShell, describeScript},
		},
		interactive: map[string]ports.InteractiveHandler{
			"click_element":     interactiveHandler{gui.clickElement, describeTarget("Click")},
			"set_toggle":        interactiveHandler{gui.setToggle, describeToggle},
			"type_text":         interactiveHandler{gui.typeText, describeTarget("Type into")},
			"navigate_settings": interactiveHandler{gui.navigateSettings, describeSettings},
		},
	}
}

// Direct implements ports.HandlerRegistry.
func (r *Registry) Direct(name string) (ports.ActionHandler, bool) {
	h, ok := r.direct[name]
	return h, ok
}

// Privileged implements ports.HandlerRegistry.
func (r *Registry) Privileged(name string) (ports.ScriptBuilder, bool) {
	h, ok := r.privileged[name]
	return h, ok
}

// Interactive implements ports.HandlerRegistry.
func (r *Registry) Interactive(name string) (ports.InteractiveHandler, bool) {
	h, ok := r.interactive[name]
	return h, ok
}

// Describe implements ports.HandlerRegistry.
func (r *Registry) Describe(action domain.Action, kind domain.ActionKind) string {
	switch kind {
	case domain.KindDirect:
		if h, ok := r.direct[action.Name]; ok {
			return h.Describe(action)
		}
	case domain.KindPrivileged:
		if h, ok := r.privileged[action.Name]; ok {
			return h.Describe(action)
		}
	case domain.KindInteractive:
		if h, ok := r.interactive[action.Name]; ok {
			return h.Describe(action)
		}
	}
	return describeGeneric(action)
}

// Names returns every registered action name with its kind.
func (r *Registry) Names() map[string]domain.ActionKind {
	out := make(map[string]domain.ActionKind, len(r.direct)+len(r.privileged)+len(r.interactive))
	for name := range r.direct {
		out[name] = domain.KindDirect
	}
	for name := range r.privileged {
		out[name] = domain.KindPrivileged
	}
	for name := range r.interactive {
		out[name] = domain.KindInteractive
	}
	return out
}

type handler struct {
	run      func(ctx context.Context, action domain.Action) (string, error)
	describe func(action domain.Action) string
}

func (h handler) Execute(ctx context.Context, action domain.Action) (string, error) {
	return h.run(ctx, action)
}

func (h handler) Describe(action domain.Action) string { return h.describe(action) }

type scriptBuilder struct {
	build    func(action domain.Action) (string, error)
	describe func(action domain.Action) string
}

func (s scriptBuilder) Script(action domain.Action) (string, error) { return s.build(action) }

func (s scriptBuilder) Describe(action domain.Action) string { return s.describe(action) }

type interactiveHandler struct {
	prepare  func(ctx context.Context, action domain.Action) (domain.Target, error)
	describe func(action domain.Action) string
}

func (h interactiveHandler) Prepare(ctx context.Context, action domain.Action) (domain.Target, error) {
	return h.prepare(ctx, action)
}

func (h interactiveHandler) Describe(action domain.Action) string { return h.describe(action) }

func requireString(action domain.Action, key string) (string, error) {
	value, ok := action.StringArg(key)
	if !ok || value == "" {
		return "", fmt.Errorf("%s: missing required argument %q", action.Name, key)
	}
	return value, nil
}

func describeGeneric(action domain.Action) string {
	if len(action.Args) == 0 {
		return action.Name
	}
	keys := make([]string, 0, len(action.Args))
	for k := range action.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, action.Args[k]))
	}
	return action.Name + " " + strings.Join(parts, " ")
}

func describeFixed(text string) func(domain.Action) string {
	return func(domain.Action) string { return text }
}

func describePath(verb string) func(domain.Action) string {
	return func(a domain.Action) string {
		path, _ := a.StringArg("path")
		return fmt.Sprintf("%s %s", verb, path)
	}
}

func describeTransfer(verb string) func(domain.Action) string {
	return func(a domain.Action) string {
		src, _ := a.StringArg("source")
		dst, _ := a.StringArg("destination")
		return fmt.Sprintf("%s %s to %s", verb, src, dst)
	}
}

func describeChat(a domain.Action) string {
	msg, _ := a.StringArg("message")
	return "Reply: " + truncate(msg, 60)
}

func describeFind(a domain.Action) string {
	path, _ := a.StringArg("path")
	pattern, _ := a.StringArg("pattern")
	desc := fmt.Sprintf("Find %s in %s", pattern, path)
	if a.BoolArg("recursive", false) {
		desc += " (recursive)"
	}
	if a.BoolArg("latest", false) {
		desc += " (latest only)"
	}
	return desc
}

func describeTopProcesses(a domain.Action) string {
	return fmt.Sprintf("List the top %d processes by memory", a.IntArg("limit", domain.DefaultTopProcesses))
}

func describeLaunch(a domain.Action) string {
	command, _ := a.StringArg("command")
	args := stringList(a.Args["args"])
	if len(args) == 0 {
		return "Launch " + command
	}
	return fmt.Sprintf("Launch %s %s", command, strings.Join(args, " "))
}

func describeScript(a domain.Action) string {
	script, _ := a.StringArg("script")
	return "Run PowerShell: " + truncate(strings.Join(strings.Fields(script), " "), 80)
}

func describeTarget(verb string) func(domain.Action) string {
	return func(a domain.Action) string {
		return fmt.Sprintf("%s %s", verb, targetFromArgs(a, domain.OpClick).Describe())
	}
}

func describeToggle(a domain.Action) string {
	state := "off"
	if a.BoolArg("state", false) {
		state = "on"
	}
	return fmt.Sprintf("Switch %s %s", targetFromArgs(a, domain.OpToggle).Describe(), state)
}

func describeSettings(a domain.Action) string {
	uri, _ := a.StringArg("uri")
	if element, ok := a.StringArg("element"); ok && element != "" {
		return fmt.Sprintf("Open %s and click %q", uri, element)
	}
	return "Open " + uri
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func stringList(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

var _ ports.HandlerRegistry = (*Registry)(nil)
