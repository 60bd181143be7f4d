package domain

import "sort"

// ActionSpec is the static, non-overridable description of a catalog action.
type ActionSpec struct {
	Name     string
	Kind     ActionKind
	Risk     RiskLevel
	PathArgs []string
	Schema   string
	Summary  string
}

// catalog is the closed world of actions the pipeline will execute.
var catalog = map[string]ActionSpec{
	"chat": {
		Name: "chat", Kind: KindDirect, Risk: RiskLow,
		Summary: "Reply with a message, no side effects",
		Schema: `{"type":"object","additionalProperties":false,"required":["message"],
			"properties":{"message":{"type":"string"}}}`,
	},
	"open_folder": {
		Name: "open_folder", Kind: KindDirect, Risk: RiskLow, PathArgs: []string{"path"},
		Summary: "Open a folder in the file manager",
		Schema: `{"type":"object","additionalProperties":false,"required":["path"],
			"properties":{"path":{"type":"string","minLength":1}}}`,
	},
	"open_file": {
		Name: "open_file", Kind: KindDirect, Risk: RiskLow, PathArgs: []string{"path"},
		Summary: "Open a file with its default application",
		Schema: `{"type":"object","additionalProperties":false,"required":["path"],
			"properties":{"path":{"type":"string","minLength":1}}}`,
	},
	"list_files": {
		Name: "list_files", Kind: KindDirect, Risk: RiskLow, PathArgs: []string{"path"},
		Summary: "List directory entries",
		Schema: `{"type":"object","additionalProperties":false,"required":["path"],
			"properties":{"path":{"type":"string","minLength":1},"limit":{"type":"integer","minimum":1,"maximum":1000}}}`,
	},
	"find_file": {
		Name: "find_file", Kind: KindDirect, Risk: RiskLow, PathArgs: []string{"path"},
		Summary: "Find files matching a glob, newest first",
		Schema: `{"type":"object","additionalProperties":false,"required":["path","pattern"],
			"properties":{"path":{"type":"string","minLength":1},"pattern":{"type":"string","minLength":1},
			"recursive":{"type":"boolean"},"latest":{"type":"boolean"},"limit":{"type":"integer","minimum":1,"maximum":1000}}}`,
	},
	"get_top_processes_by_memory": {
		Name: "get_top_processes_by_memory", Kind: KindDirect, Risk: RiskLow,
		Summary: "List processes using the most memory",
		Schema: `{"type":"object","additionalProperties":false,
			"properties":{"limit":{"type":"integer","minimum":1,"maximum":100}}}`,
	},
	"bluetooth_state": {
		Name: "bluetooth_state", Kind: KindDirect, Risk: RiskLow,
		Summary: "Report Bluetooth adapter status",
		Schema:  `{"type":"object","additionalProperties":false}`,
	},
	"create_file": {
		Name: "create_file", Kind: KindDirect, Risk: RiskMedium, PathArgs: []string{"path"},
		Summary: "Create a text file",
		Schema: `{"type":"object","additionalProperties":false,"required":["path"],
			"properties":{"path":{"type":"string","minLength":1},"content":{"type":"string"},"overwrite":{"type":"boolean"}}}`,
	},
	"copy_file": {
		Name: "copy_file", Kind: KindDirect, Risk: RiskMedium, PathArgs: []string{"source", "destination"},
		Summary: "Copy a file",
		Schema: `{"type":"object","additionalProperties":false,"required":["source","destination"],
			"properties":{"source":{"type":"string","minLength":1},"destination":{"type":"string","minLength":1},"overwrite":{"type":"boolean"}}}`,
	},
	"launch_app": {
		Name: "launch_app", Kind: KindDirect, Risk: RiskMedium,
		Summary: "Start an allowlisted application",
		Schema: `{"type":"object","additionalProperties":false,"required":["command"],
			"properties":{"command":{"type":"string","minLength":1},"args":{"type":"array","items":{"type":"string"},"maxItems":16}}}`,
	},
	"move_file": {
		Name: "move_file", Kind: KindDirect, Risk: RiskHigh, PathArgs: []string{"source", "destination"},
		Summary: "Move or rename a file",
		Schema: `{"type":"object","additionalProperties":false,"required":["source","destination"],
			"properties":{"source":{"type":"string","minLength":1},"destination":{"type":"string","minLength":1},"overwrite":{"type":"boolean"}}}`,
	},
	"delete_file": {
		Name: "delete_file", Kind: KindDirect, Risk: RiskHigh, PathArgs: []string{"path"},
		Summary: "Delete a single file",
		Schema: `{"type":"object","additionalProperties":false,"required":["path"],
			"properties":{"path":{"type":"string","minLength":1}}}`,
	},
	"bluetooth_on": {
		Name: "bluetooth_on", Kind: KindPrivileged, Risk: RiskMedium,
		Summary: "Enable Bluetooth adapters",
		Schema:  `{"type":"object","additionalProperties":false}`,
	},
	"bluetooth_off": {
		Name: "bluetooth_off", Kind: KindPrivileged, Risk: RiskMedium,
		Summary: "Disable Bluetooth adapters",
		Schema:  `{"type":"object","additionalProperties":false}`,
	},
	"bluetooth_toggle": {
		Name: "bluetooth_toggle", Kind: KindPrivileged, Risk: RiskMedium,
		Summary: "Toggle Bluetooth adapters",
		Schema:  `{"type":"object","additionalProperties":false}`,
	},
	"run_powershell": {
		Name: "run_powershell", Kind: KindPrivileged, Risk: RiskHigh,
		Summary: "Run a PowerShell script, elevating when it touches protected settings",
		Schema: `{"type":"object","additionalProperties":false,"required":["script"],
			"properties":{"script":{"type":"string","minLength":1,"maxLength":20000}}}`,
	},
	"click_element": {
		Name: "click_element", Kind: KindInteractive, Risk: RiskMedium, PathArgs: []string{"template"},
		Summary: "Click a UI element inside an application window",
		Schema:  interactiveSchema(`"required":["element"]`, ``),
	},
	"set_toggle": {
		Name: "set_toggle", Kind: KindInteractive, Risk: RiskMedium, PathArgs: []string{"template"},
		Summary: "Switch a toggle control on or off",
		Schema:  interactiveSchema(`"required":["element","state"]`, `,"state":{"type":"boolean"}`),
	},
	"type_text": {
		Name: "type_text", Kind: KindInteractive, Risk: RiskMedium, PathArgs: []string{"template"},
		Summary: "Type text into a UI element",
		Schema:  interactiveSchema(`"required":["element","text"]`, `,"text":{"type":"string","maxLength":4000}`),
	},
	"navigate_settings": {
		Name: "navigate_settings", Kind: KindInteractive, Risk: RiskMedium,
		Summary: "Open a Settings page and optionally click an element on it",
		Schema: `{"type":"object","additionalProperties":false,"required":["uri"],
			"properties":{"uri":{"type":"string","pattern":"^ms-settings:[A-Za-z0-9-]*$"},
			"element":{"type":"string","minLength":1},"role":{"type":"string"}}}`,
	},
}

func interactiveSchema(required, extra string) string {
	return `{"type":"object","additionalProperties":false,` + required + `,
		"properties":{"window":{"type":"string"},"process":{"type":"string"},
		"element":{"type":"string","minLength":1},"role":{"type":"string"},
		"template":{"type":"string","minLength":1}` + extra + `},
		"anyOf":[{"required":["window"]},{"required":["process"]}]}`
}

// LookupAction returns the catalog entry for name.
func LookupAction(name string) (ActionSpec, bool) {
	spec, ok := catalog[name]
	return spec, ok
}

// Catalog returns every catalog entry sorted by name.
func Catalog() []ActionSpec {
	out := make([]ActionSpec, 0, len(catalog))
	for _, spec := range catalog {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
